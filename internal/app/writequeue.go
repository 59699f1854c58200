package app

import (
	"context"
	"sync"

	"github.com/klinikhygiene/begehung/internal/domain"
)

// writeQueue serializes persistence for one session: at most one write is in
// flight, and a newer snapshot supersedes an older one that has not started
// yet. The last mutation therefore always wins and no write interleaves.
//
// Failures are logged and remembered; the in-memory state is never rolled
// back. The session stays marked unsaved until a later write succeeds.
type writeQueue struct {
	store  SessionStore
	logger Logger

	mu       sync.Mutex
	cond     *sync.Cond
	pending  *domain.Session
	inflight bool
	lastErr  error
	dirty    bool
}

func newWriteQueue(store SessionStore, logger Logger) *writeQueue {
	q := &writeQueue{store: store, logger: logger}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// enqueue schedules a snapshot for persistence and returns immediately.
func (q *writeQueue) enqueue(snapshot domain.Session) {
	q.mu.Lock()
	q.pending = &snapshot
	q.dirty = true
	if !q.inflight {
		q.inflight = true
		go q.drain()
	}
	q.mu.Unlock()
}

// drain writes snapshots until none are pending. Runs on its own goroutine;
// only one drain loop exists per queue.
func (q *writeQueue) drain() {
	for {
		q.mu.Lock()
		next := q.pending
		q.pending = nil
		if next == nil {
			q.inflight = false
			q.cond.Broadcast()
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()

		err := q.store.Update(context.Background(), *next)

		q.mu.Lock()
		q.lastErr = err
		if err != nil {
			q.logger.Error("session persist failed", "session_id", next.ID, "err", err)
		} else if q.pending == nil {
			q.dirty = false
		}
		q.mu.Unlock()
	}
}

// flush blocks until the queue is idle and returns the last write error.
func (q *writeQueue) flush() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.inflight || q.pending != nil {
		q.cond.Wait()
	}
	return q.lastErr
}

// saved reports whether the latest in-memory state has reached storage.
func (q *writeQueue) saved() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.dirty
}
