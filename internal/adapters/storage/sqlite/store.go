// Package sqlite persists audit sessions on the local device. Each session
// aggregate is stored denormalized as one JSON document keyed by its
// identifier; there is no relational decomposition at this tier.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klinikhygiene/begehung/internal/app"
	"github.com/klinikhygiene/begehung/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Store implements app.SessionStore on a local sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the session database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// OpenInMemory opens a throwaway in-memory store, used by tests.
func OpenInMemory() (*Store, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate handles migrate.
func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			payload TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// Create inserts a new session keyed by its identifier.
func (s *Store) Create(ctx context.Context, session domain.Session) error {
	payload, err := encodeSession(session)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions(id, created_at, payload)
		VALUES (?, ?, ?)
	`, session.ID, ts(session.CreatedAt), payload)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("session %q: %w", session.ID, app.ErrDuplicateID)
		}
		return fmt.Errorf("insert session: %w (%v)", app.ErrStorageUnavailable, err)
	}
	return nil
}

// Update replaces the stored session with the same identifier.
func (s *Store) Update(ctx context.Context, session domain.Session) error {
	payload, err := encodeSession(session)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET created_at = ?, payload = ?
		WHERE id = ?
	`, ts(session.CreatedAt), payload, session.ID)
	if err != nil {
		return fmt.Errorf("update session: %w (%v)", app.ErrStorageUnavailable, err)
	}
	return translateNoRows(res)
}

// GetByID returns one stored session.
func (s *Store) GetByID(ctx context.Context, id string) (domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM sessions WHERE id = ?`, id)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, fmt.Errorf("session %q: %w", id, app.ErrNotFound)
		}
		return domain.Session{}, fmt.Errorf("get session: %w (%v)", app.ErrStorageUnavailable, err)
	}
	return decodeSession(payload)
}

// ListAll returns every stored session. Ordering is not guaranteed;
// callers sort by creation date.
func (s *Store) ListAll(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w (%v)", app.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	out := []domain.Session{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		session, err := decodeSession(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

// Delete removes one session; deleting an absent id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w (%v)", app.ErrStorageUnavailable, err)
	}
	return nil
}

// DeleteAll clears all stored sessions.
func (s *Store) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions`)
	if err != nil {
		return fmt.Errorf("delete sessions: %w (%v)", app.ErrStorageUnavailable, err)
	}
	return nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether the driver error is a primary-key
// collision.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// sessionDoc is the stored JSON shape of a session aggregate. Domain types
// stay tag-free; this DTO owns the wire layout.
type sessionDoc struct {
	ID         string `json:"id"`
	Department struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"department"`
	Location  string    `json:"location"`
	Reviewer  string    `json:"reviewer"`
	CreatedAt time.Time `json:"created_at"`
	Lifecycle string    `json:"lifecycle"`
	Items     []itemDoc `json:"items"`
	Result    resultDoc `json:"result"`
}

type itemDoc struct {
	Question     questionDoc      `json:"question"`
	Status       string           `json:"status"`
	Comment      string           `json:"comment,omitempty"`
	Observations []observationDoc `json:"observations,omitempty"`
}

type questionDoc struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Critical    bool   `json:"critical"`
	Kind        string `json:"kind"`
	Subcategory struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Category struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"category"`
	} `json:"subcategory"`
}

type observationDoc struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Status  string `json:"status"`
	Comment string `json:"comment,omitempty"`
}

type resultDoc struct {
	Color          string `json:"color"`
	Percentage     int    `json:"percentage"`
	CriticalFailed int    `json:"critical_failed"`
	Description    string `json:"description"`
}

// encodeSession handles encode session.
func encodeSession(session domain.Session) (string, error) {
	doc := sessionDoc{
		ID:        session.ID,
		Location:  session.Location,
		Reviewer:  session.Reviewer,
		CreatedAt: session.CreatedAt.UTC(),
		Lifecycle: string(session.Lifecycle),
		Items:     make([]itemDoc, 0, len(session.Items)),
		Result: resultDoc{
			Color:          string(session.Result.Color),
			Percentage:     session.Result.Percentage,
			CriticalFailed: session.Result.CriticalFailed,
			Description:    session.Result.Description,
		},
	}
	doc.Department.ID = session.Department.ID
	doc.Department.Name = session.Department.Name

	for _, item := range session.Items {
		entry := itemDoc{
			Status:  string(item.Status),
			Comment: item.Comment,
			Question: questionDoc{
				ID:       item.Question.ID,
				Text:     item.Question.Text,
				Critical: item.Question.Critical,
				Kind:     string(item.Question.Kind),
			},
		}
		entry.Question.Subcategory.ID = item.Question.Subcategory.ID
		entry.Question.Subcategory.Name = item.Question.Subcategory.Name
		entry.Question.Subcategory.Category.ID = item.Question.Subcategory.Category.ID
		entry.Question.Subcategory.Category.Name = item.Question.Subcategory.Category.Name
		for _, o := range item.Observations {
			entry.Observations = append(entry.Observations, observationDoc{
				ID:      o.ID,
				Role:    o.Role,
				Status:  string(o.Status),
				Comment: o.Comment,
			})
		}
		doc.Items = append(doc.Items, entry)
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode session payload: %w", err)
	}
	return string(payload), nil
}

// decodeSession handles decode session.
func decodeSession(payload string) (domain.Session, error) {
	var doc sessionDoc
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return domain.Session{}, fmt.Errorf("decode session payload: %w", err)
	}

	session := domain.Session{
		ID: doc.ID,
		Department: domain.Department{
			ID:   doc.Department.ID,
			Name: doc.Department.Name,
		},
		Location:  doc.Location,
		Reviewer:  doc.Reviewer,
		CreatedAt: doc.CreatedAt.UTC(),
		Lifecycle: domain.Lifecycle(doc.Lifecycle),
		Items:     make([]domain.ChecklistItem, 0, len(doc.Items)),
		Result: domain.Result{
			Color:          domain.ResultColor(doc.Result.Color),
			Percentage:     doc.Result.Percentage,
			CriticalFailed: doc.Result.CriticalFailed,
			Description:    doc.Result.Description,
		},
	}
	if session.Lifecycle == "" {
		session.Lifecycle = domain.LifecycleIncomplete
	}

	for _, entry := range doc.Items {
		item := domain.ChecklistItem{
			Status:  domain.Status(entry.Status),
			Comment: entry.Comment,
			Question: domain.Question{
				ID:       entry.Question.ID,
				Text:     entry.Question.Text,
				Critical: entry.Question.Critical,
				Kind:     domain.ObservationKind(entry.Question.Kind),
				Subcategory: domain.Subcategory{
					ID:   entry.Question.Subcategory.ID,
					Name: entry.Question.Subcategory.Name,
					Category: domain.Category{
						ID:   entry.Question.Subcategory.Category.ID,
						Name: entry.Question.Subcategory.Category.Name,
					},
				},
			},
		}
		if item.Status == "" {
			item.Status = domain.StatusNotReviewed
		}
		for _, o := range entry.Observations {
			item.Observations = append(item.Observations, domain.Observation{
				ID:      o.ID,
				Role:    o.Role,
				Status:  domain.Status(o.Status),
				Comment: o.Comment,
			})
		}
		session.Items = append(session.Items, item)
	}
	return session, nil
}
