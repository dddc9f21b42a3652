package core

// tracker.go holds the live state of every import batch.
//
// Counters and progress of a batch change together under the batch's own
// mutex, so readers always see a consistent snapshot: done rows never
// decrease and progress always matches the counters. Subscribers receive
// a snapshot after every change; slow subscribers skip intermediate
// updates but always see the terminal one before their channel closes.

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// trackedBatch is the mutable state behind one batch id.
type trackedBatch struct {
	id string

	mu        sync.Mutex
	snap      BatchSnapshot
	listeners []chan BatchSnapshot
	done      chan struct{}
}

// Tracker is the registry of batches.
type Tracker struct {
	mu      sync.RWMutex
	batches map[string]*trackedBatch
	active  map[string]string // job id -> non-terminal batch id
	now     func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		batches: make(map[string]*trackedBatch),
		active:  make(map[string]string),
		now:     time.Now,
	}
}

// register creates a queued batch for a job. It fails with
// ErrBatchAlreadyRunning while another batch for the job is not terminal.
func (t *Tracker) register(jobID, salonID string, total int) (*trackedBatch, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.active[jobID]; ok {
		return nil, fmt.Errorf("%w: batch %s", ErrBatchAlreadyRunning, id)
	}

	b := &trackedBatch{
		id: uuid.New().String(),
		snap: BatchSnapshot{
			JobID:     jobID,
			SalonID:   salonID,
			Status:    BatchQueued,
			TotalRows: total,
			CreatedAt: t.now().UTC(),
		},
		done: make(chan struct{}),
	}
	b.snap.BatchID = b.id

	t.batches[b.id] = b
	t.active[jobID] = b.id
	return b, nil
}

func (t *Tracker) get(batchID string) (*trackedBatch, error) {
	t.mu.RLock()
	b, ok := t.batches[batchID]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	return b, nil
}

// Snapshot returns a copy of a batch's current state.
func (t *Tracker) Snapshot(batchID string) (BatchSnapshot, error) {
	b, err := t.get(batchID)
	if err != nil {
		return BatchSnapshot{}, err
	}
	return b.snapshot(), nil
}

// ActiveBatch returns the non-terminal batch of a job, if any.
func (t *Tracker) ActiveBatch(jobID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.active[jobID]
	return id, ok
}

// Subscribe returns a channel of snapshots for a batch. The current state
// is sent immediately; the channel closes once the batch is terminal. Call
// the returned function to stop listening early.
func (t *Tracker) Subscribe(batchID string) (<-chan BatchSnapshot, func(), error) {
	b, err := t.get(batchID)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan BatchSnapshot, 16)

	b.mu.Lock()
	defer b.mu.Unlock()

	ch <- b.copyLocked()
	if b.snap.Status.IsTerminal() {
		close(ch)
		return ch, func() {}, nil
	}
	b.listeners = append(b.listeners, ch)

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, l := range b.listeners {
			if l == ch {
				b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe, nil
}

// Done returns a channel closed when the batch reaches a terminal state.
func (t *Tracker) Done(batchID string) (<-chan struct{}, error) {
	b, err := t.get(batchID)
	if err != nil {
		return nil, err
	}
	return b.done, nil
}

// EvictFinished drops terminal batches that finished before cutoff and
// returns their ids.
func (t *Tracker) EvictFinished(cutoff time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var evicted []string
	for id, b := range t.batches {
		snap := b.snapshot()
		if snap.FinishedAt != nil && snap.FinishedAt.Before(cutoff) {
			delete(t.batches, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// begin moves a queued batch to processing.
func (t *Tracker) begin(b *trackedBatch) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.snap.Status != BatchQueued {
		return
	}
	now := t.now().UTC()
	b.snap.Status = BatchProcessing
	b.snap.StartedAt = &now
	b.notifyLocked()
}

// recordSuccess counts one committed row.
func (t *Tracker) recordSuccess(b *trackedBatch) {
	b.record(true)
}

// recordFailure counts one failed row.
func (t *Tracker) recordFailure(b *trackedBatch) {
	b.record(false)
}

// finish moves a batch to a terminal state. Later calls are ignored.
func (t *Tracker) finish(b *trackedBatch, status BatchStatus, errMsg string) BatchSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.snap.Status.IsTerminal() {
		return b.copyLocked()
	}

	now := t.now().UTC()
	b.snap.Status = status
	b.snap.Error = errMsg
	b.snap.FinishedAt = &now
	if status == BatchCompleted && b.snap.TotalRows == 0 {
		b.snap.Progress = 100
	}
	snap := b.copyLocked()
	for _, l := range b.listeners {
		// Make room so the terminal state is never dropped.
		select {
		case l <- snap:
		default:
			select {
			case <-l:
			default:
			}
			l <- snap
		}
		close(l)
	}
	b.listeners = nil

	if t.active[snap.JobID] == b.id {
		delete(t.active, snap.JobID)
	}
	close(b.done)
	return snap
}

func (b *trackedBatch) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.snap.Status.IsTerminal() {
		return
	}
	if b.snap.SuccessfulRows+b.snap.FailedRows >= b.snap.TotalRows {
		return
	}
	if success {
		b.snap.SuccessfulRows++
	} else {
		b.snap.FailedRows++
	}
	b.snap.Progress = progressPercent(b.snap.SuccessfulRows+b.snap.FailedRows, b.snap.TotalRows)
	b.notifyLocked()
}

func (b *trackedBatch) snapshot() BatchSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.copyLocked()
}

func (b *trackedBatch) copyLocked() BatchSnapshot {
	snap := b.snap
	if snap.StartedAt != nil {
		t := *snap.StartedAt
		snap.StartedAt = &t
	}
	if snap.FinishedAt != nil {
		t := *snap.FinishedAt
		snap.FinishedAt = &t
	}
	return snap
}

// notifyLocked sends the current state to every listener without blocking.
func (b *trackedBatch) notifyLocked() {
	snap := b.copyLocked()
	for _, l := range b.listeners {
		select {
		case l <- snap:
		default:
			// Listener is slow; it will catch up on the next update.
		}
	}
}

// progressPercent is round(100 * done / total).
func progressPercent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*done + total) / (2 * total)
}
