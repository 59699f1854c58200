package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/klinikhygiene/begehung/internal/domain"
	"github.com/klinikhygiene/begehung/internal/score"
)

// Service owns session lifecycle outside a single open controller:
// creation, listing, deletion, and report export.
type Service struct {
	store    SessionStore
	renderer ReportRenderer
	sender   ReportSender
	idGen    IDGenerator
	clock    Clock
	logger   Logger
}

// ServiceConfig holds the collaborators a Service needs.
type ServiceConfig struct {
	Renderer ReportRenderer
	Sender   ReportSender
	Logger   Logger
}

// NewService constructs a new service.
func NewService(store SessionStore, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	return &Service{
		store:    store,
		renderer: cfg.Renderer,
		sender:   cfg.Sender,
		idGen:    idGen,
		clock:    clock,
		logger:   cfg.Logger,
	}
}

// CreateSessionInput holds input values for session creation.
type CreateSessionInput struct {
	Department domain.Department
	Location   string
	Reviewer   string
	Questions  []domain.Question
}

// CreateSession builds a new session aggregate from department and question
// snapshots, scores it (nothing answered yet), and persists it.
func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (domain.Session, error) {
	session, err := domain.NewSession(domain.SessionInput{
		ID:         s.idGen(),
		Department: in.Department,
		Location:   in.Location,
		Reviewer:   in.Reviewer,
		Questions:  in.Questions,
	}, s.clock())
	if err != nil {
		return domain.Session{}, err
	}
	session.Result = score.Evaluate(session.Items)

	if err := s.store.Create(ctx, session); err != nil {
		return domain.Session{}, fmt.Errorf("persist session: %w", err)
	}
	s.logger.Info("session created", "session_id", session.ID, "department", session.Department.Name, "items", len(session.Items))
	return session, nil
}

// OpenController loads a stored session into a fresh controller.
func (s *Service) OpenController(ctx context.Context, sessionID string) (*Controller, error) {
	return OpenController(ctx, s.store, sessionID, ControllerOptions{
		Logger: s.logger,
		IDGen:  s.idGen,
		Clock:  s.clock,
	})
}

// GetSession returns one stored session.
func (s *Service) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.store.GetByID(ctx, sessionID)
}

// ListSessions returns all stored sessions, newest first. The store gives
// no ordering guarantee, so the sort happens here.
func (s *Service) ListSessions(ctx context.Context) ([]domain.Session, error) {
	sessions, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(sessions, func(a, b domain.Session) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(a.ID, b.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return sessions, nil
}

// DeleteSession removes one session from local storage.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.logger.Info("session deleted", "session_id", sessionID)
	return nil
}

// DeleteAllSessions clears every stored session.
func (s *Service) DeleteAllSessions(ctx context.Context) error {
	if err := s.store.DeleteAll(ctx); err != nil {
		return err
	}
	s.logger.Info("all sessions deleted")
	return nil
}

// RenderReport renders the stored session into a report document.
func (s *Service) RenderReport(ctx context.Context, sessionID string) ([]byte, error) {
	if s.renderer == nil {
		return nil, fmt.Errorf("no report renderer configured")
	}
	session, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.renderer.Render(session)
}

// SendReport renders the stored session and mails it to the recipient.
func (s *Service) SendReport(ctx context.Context, sessionID, recipient string) error {
	if s.sender == nil {
		return fmt.Errorf("no report sender configured")
	}
	if s.renderer == nil {
		return fmt.Errorf("no report renderer configured")
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return fmt.Errorf("recipient is required")
	}
	session, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	report, err := s.renderer.Render(session)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	meta := ReportMeta{
		Subject:  fmt.Sprintf("Hygiene audit %s – %s", session.Department.Name, session.CreatedAt.Format("2006-01-02")),
		Filename: ReportFilename(session),
	}
	if err := s.sender.Send(ctx, recipient, report, meta); err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	s.logger.Info("report sent", "session_id", sessionID, "recipient", recipient)
	return nil
}

// ReportFilename derives a stable report file name for a session.
func ReportFilename(session domain.Session) string {
	slug := strings.ToLower(strings.TrimSpace(session.Department.Name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, slug)
	slug = strings.Trim(strings.Join(strings.FieldsFunc(slug, func(r rune) bool { return r == '-' }), "-"), "-")
	if slug == "" {
		slug = "session"
	}
	return fmt.Sprintf("begehung-%s-%s.md", slug, session.CreatedAt.Format("2006-01-02"))
}
