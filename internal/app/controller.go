package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/klinikhygiene/begehung/internal/domain"
	"github.com/klinikhygiene/begehung/internal/score"
)

// ControllerOptions configures a session controller.
type ControllerOptions struct {
	Logger Logger
	IDGen  IDGenerator
	Clock  Clock
}

// Controller is the single authoritative in-memory handle for one active
// session. Every mutation updates the in-memory aggregate, recomputes the
// grouping and the score, and schedules an asynchronous persist through the
// per-session write queue before returning. One controller exists per open
// session view; there is no process-wide instance.
type Controller struct {
	logger Logger
	idGen  IDGenerator
	clock  Clock
	queue  *writeQueue

	mu      sync.Mutex
	session domain.Session
	groups  []ItemGroup
}

// OpenController loads a stored session and returns a ready controller.
// Mutations are only reachable once the load has succeeded, so a
// half-loaded session can never be edited.
func OpenController(ctx context.Context, store SessionStore, sessionID string, opts ControllerOptions) (*Controller, error) {
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.IDGen == nil {
		opts.IDGen = func() string { return "" }
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	session, err := store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %q: %w", sessionID, err)
	}

	c := &Controller{
		logger:  opts.Logger,
		idGen:   opts.IDGen,
		clock:   opts.Clock,
		queue:   newWriteQueue(store, opts.Logger),
		session: session,
	}
	c.session.Result = score.Evaluate(c.session.Items)
	c.groups = GroupItems(c.session.Items)
	return c, nil
}

// Session returns a deep copy of the current aggregate.
func (c *Controller) Session() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// Groups returns the current category grouping.
func (c *Controller) Groups() []ItemGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ItemGroup, len(c.groups))
	copy(out, c.groups)
	return out
}

// Result returns the current derived score.
func (c *Controller) Result() domain.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Result
}

// Saved reports whether the latest in-memory state has reached storage.
func (c *Controller) Saved() bool {
	return c.queue.saved()
}

// Flush blocks until all scheduled writes have settled and returns the last
// persistence error, if any.
func (c *Controller) Flush() error {
	return c.queue.flush()
}

// SetItemStatus sets a checklist item's outcome status.
func (c *Controller) SetItemStatus(itemID string, status domain.Status) error {
	return c.mutate(func() error {
		item, ok := c.session.Item(itemID)
		if !ok {
			return fmt.Errorf("item %q: %w", itemID, ErrNotFound)
		}
		return item.SetStatus(status)
	})
}

// SetItemComment replaces a checklist item's free-text comment.
func (c *Controller) SetItemComment(itemID, comment string) error {
	return c.mutate(func() error {
		item, ok := c.session.Item(itemID)
		if !ok {
			return fmt.Errorf("item %q: %w", itemID, ErrNotFound)
		}
		item.SetComment(comment)
		return nil
	})
}

// ObservationInput describes a new per-person observation.
type ObservationInput struct {
	Role    string
	Status  domain.Status
	Comment string
}

// AddObservation appends an observation to the named item. The observation
// identifier is generated locally.
func (c *Controller) AddObservation(itemID string, in ObservationInput) (domain.Observation, error) {
	var created domain.Observation
	err := c.mutate(func() error {
		item, ok := c.session.Item(itemID)
		if !ok {
			return fmt.Errorf("item %q: %w", itemID, ErrNotFound)
		}
		observation, err := domain.NewObservation(c.idGen(), in.Role, in.Status, in.Comment)
		if err != nil {
			return err
		}
		if err := item.AddObservation(observation); err != nil {
			return err
		}
		created = observation
		return nil
	})
	if err != nil {
		return domain.Observation{}, err
	}
	return created, nil
}

// RemoveObservation removes one observation by identifier.
func (c *Controller) RemoveObservation(itemID, observationID string) error {
	return c.mutate(func() error {
		item, ok := c.session.Item(itemID)
		if !ok {
			return fmt.Errorf("item %q: %w", itemID, ErrNotFound)
		}
		if err := item.RemoveObservation(observationID); err != nil {
			return fmt.Errorf("observation %q: %w", observationID, ErrNotFound)
		}
		return nil
	})
}

// AddItems extends the in-progress audit with ad-hoc questions. Questions
// without an identifier get a locally generated one; every new item starts
// at not-reviewed.
func (c *Controller) AddItems(questions []domain.Question) error {
	return c.mutate(func() error {
		items := make([]domain.ChecklistItem, 0, len(questions))
		for _, q := range questions {
			if q.ID == "" {
				q.ID = c.idGen()
			}
			item, err := domain.NewChecklistItem(q)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		return c.session.AddItems(items)
	})
}

// Complete transitions the session to its frozen completed state. Every
// item must carry an answered status; otherwise the transition fails with
// an IncompleteError naming the open items.
func (c *Controller) Complete() error {
	return c.mutate(func() error {
		if unanswered := c.session.Unanswered(); len(unanswered) > 0 {
			return &IncompleteError{Unanswered: unanswered}
		}
		return c.session.Complete()
	})
}

// mutate runs one mutation under the controller lock, then rederives
// grouping and score and schedules the persist. Completed sessions reject
// all mutations.
func (c *Controller) mutate(apply func() error) error {
	c.mu.Lock()

	if c.session.Completed() {
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrInvalidTransition, domain.ErrSessionComplete)
	}
	if err := apply(); err != nil {
		c.mu.Unlock()
		return err
	}

	c.groups = GroupItems(c.session.Items)
	c.session.Result = score.Evaluate(c.session.Items)
	snapshot := c.session.Clone()
	c.mu.Unlock()

	c.queue.enqueue(snapshot)
	return nil
}
