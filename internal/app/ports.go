package app

import (
	"context"
	"time"

	"github.com/klinikhygiene/begehung/internal/domain"
)

// SessionStore is the durable local keyed storage for session aggregates.
// Implementations report failures as tagged errors (ErrNotFound,
// ErrDuplicateID, ErrStorageUnavailable); they never swallow them.
type SessionStore interface {
	Create(context.Context, domain.Session) error
	Update(context.Context, domain.Session) error
	GetByID(context.Context, string) (domain.Session, error)
	// ListAll returns every stored session in no guaranteed order; callers
	// sort by creation date.
	ListAll(context.Context) ([]domain.Session, error)
	Delete(context.Context, string) error
	DeleteAll(context.Context) error
}

// ReportRenderer turns a session into a formatted report document.
type ReportRenderer interface {
	Render(domain.Session) ([]byte, error)
}

// ReportMeta carries delivery metadata alongside a rendered report.
type ReportMeta struct {
	Subject  string
	Filename string
}

// ReportSender delivers a rendered report to a recipient.
type ReportSender interface {
	Send(ctx context.Context, recipient string, report []byte, meta ReportMeta) error
}

// QuestionFilter narrows a catalogue query.
type QuestionFilter struct {
	DepartmentID string
	ExcludeIDs   []string
	SearchText   string
	SingleID     string
}

// ReferenceDirectory is the external reference-data backend. Any failure
// means "unavailable"; the core never retries.
type ReferenceDirectory interface {
	ListQuestions(context.Context, QuestionFilter) ([]domain.Question, error)
	ListDepartments(context.Context) ([]domain.Department, error)
	ListLocations(context.Context) ([]string, error)
	IsCurrentUserAdmin(context.Context) (bool, error)
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Logger is the minimal structured logging surface the app layer needs.
// *log.Logger from charmbracelet/log satisfies it.
type Logger interface {
	Debug(msg interface{}, keyvals ...interface{})
	Info(msg interface{}, keyvals ...interface{})
	Warn(msg interface{}, keyvals ...interface{})
	Error(msg interface{}, keyvals ...interface{})
}

// nopLogger discards everything; used when no logger is injected.
type nopLogger struct{}

func (nopLogger) Debug(interface{}, ...interface{}) {}
func (nopLogger) Info(interface{}, ...interface{})  {}
func (nopLogger) Warn(interface{}, ...interface{})  {}
func (nopLogger) Error(interface{}, ...interface{}) {}
