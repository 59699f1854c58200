package domain

import (
	"strings"
	"time"
)

// Session is the aggregate root for one walkthrough audit. It lives on a
// single device and is the unit of persistence: items and observations are
// stored denormalized inside it.
type Session struct {
	ID         string
	Department Department
	Location   string
	Reviewer   string
	CreatedAt  time.Time
	Lifecycle  Lifecycle
	Items      []ChecklistItem
	Result     Result
}

type SessionInput struct {
	ID         string
	Department Department
	Location   string
	Reviewer   string
	Questions  []Question
}

func NewSession(in SessionInput, now time.Time) (Session, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Department.ID = strings.TrimSpace(in.Department.ID)
	in.Department.Name = strings.TrimSpace(in.Department.Name)
	in.Location = strings.TrimSpace(in.Location)
	in.Reviewer = strings.TrimSpace(in.Reviewer)

	if in.ID == "" {
		return Session{}, ErrInvalidID
	}
	if in.Department.ID == "" || in.Department.Name == "" {
		return Session{}, ErrInvalidDepartment
	}
	if in.Location == "" {
		return Session{}, ErrInvalidLocation
	}
	if in.Reviewer == "" {
		return Session{}, ErrInvalidReviewer
	}

	items := make([]ChecklistItem, 0, len(in.Questions))
	seen := map[string]struct{}{}
	for _, q := range in.Questions {
		item, err := NewChecklistItem(q)
		if err != nil {
			return Session{}, err
		}
		if _, ok := seen[item.ID()]; ok {
			return Session{}, ErrDuplicateItem
		}
		seen[item.ID()] = struct{}{}
		items = append(items, item)
	}

	return Session{
		ID:         in.ID,
		Department: in.Department,
		Location:   in.Location,
		Reviewer:   in.Reviewer,
		CreatedAt:  now.UTC(),
		Lifecycle:  LifecycleIncomplete,
		Items:      items,
	}, nil
}

// Item returns a pointer into the live item list; callers mutate through it.
func (s *Session) Item(id string) (*ChecklistItem, bool) {
	for idx := range s.Items {
		if s.Items[idx].ID() == id {
			return &s.Items[idx], true
		}
	}
	return nil, false
}

// AddItems appends additional checklist items, each reset to not-reviewed.
// Item identifiers must stay unique within the session.
func (s *Session) AddItems(items []ChecklistItem) error {
	seen := make(map[string]struct{}, len(s.Items))
	for _, existing := range s.Items {
		seen[existing.ID()] = struct{}{}
	}
	appended := make([]ChecklistItem, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.ID()) == "" {
			return ErrInvalidID
		}
		if _, ok := seen[item.ID()]; ok {
			return ErrDuplicateItem
		}
		seen[item.ID()] = struct{}{}
		item.Status = StatusNotReviewed
		appended = append(appended, item.clone())
	}
	s.Items = append(s.Items, appended...)
	return nil
}

// Unanswered returns the identifiers of items still at not-reviewed,
// preserving item order.
func (s *Session) Unanswered() []string {
	out := make([]string, 0)
	for _, item := range s.Items {
		if !item.Status.Answered() {
			out = append(out, item.ID())
		}
	}
	return out
}

// Complete transitions the session lifecycle. Every item must carry an
// answered status; completed sessions are frozen.
func (s *Session) Complete() error {
	if s.Completed() {
		return ErrSessionComplete
	}
	if len(s.Unanswered()) > 0 {
		return ErrUnansweredItems
	}
	s.Lifecycle = LifecycleComplete
	return nil
}

func (s *Session) Completed() bool {
	return s.Lifecycle == LifecycleComplete
}

// Clone returns a deep copy of the aggregate. Snapshots handed to storage
// or external readers must not alias the controller's live state.
func (s Session) Clone() Session {
	out := s
	out.Items = make([]ChecklistItem, len(s.Items))
	for idx, item := range s.Items {
		out.Items[idx] = item.clone()
	}
	return out
}
