package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/klinikhygiene/begehung/internal/domain"
)

type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	updates  int
	failNext error
	gate     chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: map[string]domain.Session{}}
}

func (f *fakeStore) Create(_ context.Context, s domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[s.ID]; ok {
		return ErrDuplicateID
	}
	f.sessions[s.ID] = s.Clone()
	return nil
}

func (f *fakeStore) Update(_ context.Context, s domain.Session) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failNext; err != nil {
		f.failNext = nil
		return err
	}
	if _, ok := f.sessions[s.ID]; !ok {
		return ErrNotFound
	}
	f.sessions[s.ID] = s.Clone()
	f.updates++
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return domain.Session{}, ErrNotFound
	}
	return s.Clone(), nil
}

func (f *fakeStore) ListAll(_ context.Context) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s.Clone())
	}
	return out, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func (f *fakeStore) DeleteAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = map[string]domain.Session{}
	return nil
}

func (f *fakeStore) stored(t *testing.T, id string) domain.Session {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		t.Fatalf("session %q not stored", id)
	}
	return s
}

func sequentialIDs(prefix string) IDGenerator {
	n := 0
	var mu sync.Mutex
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func catalogueQuestion(id, category string, critical bool) domain.Question {
	return domain.Question{
		ID:       id,
		Text:     "Is the protocol followed for " + id + "?",
		Critical: critical,
		Kind:     domain.ObservationKindGeneral,
		Subcategory: domain.Subcategory{
			ID:       "sub-" + category,
			Name:     category + " details",
			Category: domain.Category{ID: "cat-" + category, Name: category},
		},
	}
}

func seedSession(t *testing.T, store *fakeStore, questions ...domain.Question) domain.Session {
	t.Helper()
	now := time.Date(2026, 3, 12, 9, 30, 0, 0, time.UTC)
	session, err := domain.NewSession(domain.SessionInput{
		ID:         "s1",
		Department: domain.Department{ID: "d1", Name: "Intensive Care"},
		Location:   "Ward 3",
		Reviewer:   "m.keller",
		Questions:  questions,
	}, now)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if err := store.Create(context.Background(), session); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return session
}

func openTestController(t *testing.T, store *fakeStore) *Controller {
	t.Helper()
	c, err := OpenController(context.Background(), store, "s1", ControllerOptions{IDGen: sequentialIDs("obs")})
	if err != nil {
		t.Fatalf("OpenController() error = %v", err)
	}
	return c
}

func TestOpenControllerUnknownSession(t *testing.T) {
	store := newFakeStore()
	if _, err := OpenController(context.Background(), store, "missing", ControllerOptions{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestControllerSetItemStatusPersistsAndRescores(t *testing.T) {
	store := newFakeStore()
	seedSession(t, store, catalogueQuestion("q1", "Hygiene", false), catalogueQuestion("q2", "Hygiene", false))
	c := openTestController(t, store)

	if err := c.SetItemStatus("q1", domain.StatusApproved); err != nil {
		t.Fatalf("SetItemStatus() error = %v", err)
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if got := c.Result(); got.Percentage != 100 {
		t.Fatalf("unexpected percentage %d", got.Percentage)
	}
	stored := store.stored(t, "s1")
	if stored.Items[0].Status != domain.StatusApproved {
		t.Fatalf("status not persisted, got %q", stored.Items[0].Status)
	}
	if stored.Result.Percentage != 100 {
		t.Fatalf("derived result not persisted, got %+v", stored.Result)
	}
	if !c.Saved() {
		t.Fatal("expected controller to report saved state")
	}
}

func TestControllerUnknownItemIsNotFound(t *testing.T) {
	store := newFakeStore()
	seedSession(t, store, catalogueQuestion("q1", "Hygiene", false))
	c := openTestController(t, store)

	if err := c.SetItemStatus("nope", domain.StatusApproved); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := c.SetItemComment("nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := c.AddObservation("nope", ObservationInput{Role: "nurse", Status: domain.StatusApproved}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := c.RemoveObservation("q1", "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestControllerObservationLifecycle(t *testing.T) {
	store := newFakeStore()
	seedSession(t, store, catalogueQuestion("q1", "Hygiene", false))
	c := openTestController(t, store)

	created, err := c.AddObservation("q1", ObservationInput{Role: "nurse", Status: domain.StatusFailed, Comment: "no gloves"})
	if err != nil {
		t.Fatalf("AddObservation() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated observation id")
	}
	if _, err := c.AddObservation("q1", ObservationInput{Role: "nurse", Status: domain.StatusNotReviewed}); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus for unanswered observation, got %v", err)
	}

	if err := c.RemoveObservation("q1", created.ID); err != nil {
		t.Fatalf("RemoveObservation() error = %v", err)
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if got := len(store.stored(t, "s1").Items[0].Observations); got != 0 {
		t.Fatalf("expected no observations persisted, got %d", got)
	}
}

func TestControllerAddItemsGeneratesIDsAndRegroups(t *testing.T) {
	store := newFakeStore()
	seedSession(t, store, catalogueQuestion("q1", "Hygiene", false))
	c := openTestController(t, store)

	adHoc := domain.Question{
		Text: "Ad-hoc finding on the corridor?",
		Kind: domain.ObservationKindGeneral,
		Subcategory: domain.Subcategory{
			Category: domain.Category{ID: "cat-extra", Name: "Extra"},
		},
	}
	if err := c.AddItems([]domain.Question{adHoc}); err != nil {
		t.Fatalf("AddItems() error = %v", err)
	}

	session := c.Session()
	if len(session.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(session.Items))
	}
	if session.Items[1].ID() == "" {
		t.Fatal("expected generated item id")
	}
	if session.Items[1].Status != domain.StatusNotReviewed {
		t.Fatalf("new item must start not-reviewed, got %q", session.Items[1].Status)
	}

	groups := c.Groups()
	if len(groups) != 2 || groups[0].Category != "Hygiene" || groups[1].Category != "Extra" {
		t.Fatalf("unexpected grouping %+v", groups)
	}
}

func TestControllerCompleteEnforcesPrecondition(t *testing.T) {
	store := newFakeStore()
	seedSession(t, store, catalogueQuestion("q1", "Hygiene", false), catalogueQuestion("q2", "Hygiene", false))
	c := openTestController(t, store)

	if err := c.SetItemStatus("q1", domain.StatusApproved); err != nil {
		t.Fatalf("SetItemStatus() error = %v", err)
	}

	err := c.Complete()
	var incomplete *IncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteError, got %v", err)
	}
	if len(incomplete.Unanswered) != 1 || incomplete.Unanswered[0] != "q2" {
		t.Fatalf("unexpected unanswered list %v", incomplete.Unanswered)
	}
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("IncompleteError must unwrap to ErrInvalidTransition, got %v", err)
	}

	if err := c.SetItemStatus("q2", domain.StatusFailed); err != nil {
		t.Fatalf("SetItemStatus() error = %v", err)
	}
	if err := c.Complete(); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if store.stored(t, "s1").Lifecycle != domain.LifecycleComplete {
		t.Fatal("completed lifecycle not persisted")
	}
}

func TestControllerCompletedSessionIsFrozen(t *testing.T) {
	store := newFakeStore()
	seedSession(t, store, catalogueQuestion("q1", "Hygiene", false))
	c := openTestController(t, store)

	if err := c.SetItemStatus("q1", domain.StatusApproved); err != nil {
		t.Fatalf("SetItemStatus() error = %v", err)
	}
	if err := c.Complete(); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if err := c.SetItemStatus("q1", domain.StatusFailed); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := c.SetItemComment("q1", "late edit"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := c.AddObservation("q1", ObservationInput{Role: "nurse", Status: domain.StatusApproved}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := c.AddItems([]domain.Question{catalogueQuestion("q9", "Hygiene", false)}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := c.Complete(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func TestControllerKeepsEditOnPersistFailure(t *testing.T) {
	store := newFakeStore()
	seedSession(t, store, catalogueQuestion("q1", "Hygiene", false))
	c := openTestController(t, store)

	store.mu.Lock()
	store.failNext = ErrStorageUnavailable
	store.mu.Unlock()

	if err := c.SetItemStatus("q1", domain.StatusApproved); err != nil {
		t.Fatalf("SetItemStatus() error = %v", err)
	}
	if err := c.Flush(); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable from Flush, got %v", err)
	}

	// The edit stays visible in memory even though the write failed.
	if got := c.Session().Items[0].Status; got != domain.StatusApproved {
		t.Fatalf("in-memory edit lost, got %q", got)
	}
	if c.Saved() {
		t.Fatal("expected unsaved state after persist failure")
	}

	// The next successful write clears the dirty flag.
	if err := c.SetItemComment("q1", "retry"); err != nil {
		t.Fatalf("SetItemComment() error = %v", err)
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if !c.Saved() {
		t.Fatal("expected saved state after successful write")
	}
}

func TestControllerRapidMutationsLastWriteWins(t *testing.T) {
	store := newFakeStore()
	seedSession(t, store, catalogueQuestion("q1", "Hygiene", false))

	gate := make(chan struct{})
	store.gate = gate
	c := openTestController(t, store)

	// First mutation starts a write that blocks on the gate; the following
	// mutations pile up behind it and coalesce into one final snapshot.
	if err := c.SetItemStatus("q1", domain.StatusFailed); err != nil {
		t.Fatalf("SetItemStatus() error = %v", err)
	}
	if err := c.SetItemComment("q1", "first"); err != nil {
		t.Fatalf("SetItemComment() error = %v", err)
	}
	if err := c.SetItemComment("q1", "second"); err != nil {
		t.Fatalf("SetItemComment() error = %v", err)
	}
	if err := c.SetItemStatus("q1", domain.StatusApproved); err != nil {
		t.Fatalf("SetItemStatus() error = %v", err)
	}
	// A closed gate lets every later write through immediately.
	close(gate)

	if err := c.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	stored := store.stored(t, "s1")
	if stored.Items[0].Status != domain.StatusApproved || stored.Items[0].Comment != "second" {
		t.Fatalf("last write did not win: %+v", stored.Items[0])
	}
	store.mu.Lock()
	updates := store.updates
	store.mu.Unlock()
	if updates > 2 {
		t.Fatalf("expected coalesced writes, got %d updates", updates)
	}
}
