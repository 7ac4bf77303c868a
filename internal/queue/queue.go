// Package queue implements the gateway's Job Queue: a slot-bounded
// admission queue whose capacity is governed by the size of the active
// run-id set, not by channel depth, so a slow consumer can't mask
// saturation.
package queue

import (
	"context"
	"sync"

	"github.com/agentsdashboard/runtime-gateway/internal/dispatch"
)

// CancelHandle cancels the context associated with an admitted job.
type CancelHandle = context.CancelFunc

// QueuedJob pairs a DispatchRequest with its cancellation handle. Unique
// by RunID.
type QueuedJob struct {
	Request dispatch.DispatchRequest
	Cancel  CancelHandle
}

// Queue is the bounded admission queue. State: a configured max_slots,
// a run_id -> cancel-handle active set, and a buffered internal
// channel (depth 4096) of admitted jobs.
type Queue struct {
	maxSlots int

	mu     sync.Mutex
	active map[string]CancelHandle

	ch chan QueuedJob
}

// New creates a Queue admitting at most maxSlots concurrently-active jobs.
func New(maxSlots int) *Queue {
	return &Queue{
		maxSlots: maxSlots,
		active:   make(map[string]CancelHandle),
		ch:       make(chan QueuedJob, 4096),
	}
}

// CanAccept reports whether the active set has room for another job.
func (q *Queue) CanAccept() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active) < q.maxSlots
}

// Enqueue admits job, inserting it into the active set before publishing
// to the internal channel. Returns ErrRejected if the queue is at
// capacity, ErrDuplicate if run_id is already admitted.
func (q *Queue) Enqueue(job QueuedJob) error {
	runID := job.Request.RunID

	q.mu.Lock()
	if _, exists := q.active[runID]; exists {
		q.mu.Unlock()
		return dispatch.ErrDuplicate
	}
	if len(q.active) >= q.maxSlots {
		q.mu.Unlock()
		return dispatch.ErrRejected
	}
	q.active[runID] = job.Cancel
	q.mu.Unlock()

	q.ch <- job
	return nil
}

// ReadAll returns the channel of admitted jobs in FIFO order. There is a
// single intended consumer (the Job Processor).
func (q *Queue) ReadAll() <-chan QueuedJob {
	return q.ch
}

// Cancel signals the stored cancel handle for run_id, if active.
// Idempotent; returns whether the id was active.
func (q *Queue) Cancel(runID string) bool {
	q.mu.Lock()
	cancel, ok := q.active[runID]
	q.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// MarkCompleted removes run_id from the active set. Idempotent.
func (q *Queue) MarkCompleted(runID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.active, runID)
}

// ActiveSlots returns |active set|, the invariant maintained by Enqueue/
// MarkCompleted.
func (q *Queue) ActiveSlots() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

// ActiveRunIDs returns a snapshot of currently active run ids, used by the
// orphan reconciler to compute the active set without holding the queue's
// lock across a container listing call.
func (q *Queue) ActiveRunIDs() map[string]bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]bool, len(q.active))
	for id := range q.active {
		out[id] = true
	}
	return out
}

// Close closes the internal channel. Call only after no further Enqueue
// calls will be made (e.g. during service shutdown).
func (q *Queue) Close() {
	close(q.ch)
}
