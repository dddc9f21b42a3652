package core

// batch_limiter.go caps how many batches process at the same time.
//
// The limiter uses a semaphore pattern. A batch that finds every slot taken
// stays queued for up to maxWait before it fails with ErrTooManyBatches.

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxConcurrentBatches is the default limit for parallel batches.
const DefaultMaxConcurrentBatches = 4

// DefaultQueueWait is how long a queued batch waits for a slot.
const DefaultQueueWait = 10 * time.Minute

// BatchLimiter controls concurrent batch processing.
type BatchLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewBatchLimiter creates a limiter that allows at most maxConcurrent
// batches to process at once.
func NewBatchLimiter(maxConcurrent int, maxWait time.Duration) *BatchLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentBatches
	}
	if maxWait <= 0 {
		maxWait = DefaultQueueWait
	}

	return &BatchLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire waits for a processing slot.
// Returns ErrTooManyBatches if maxWait expires first.
// The caller MUST call Release() when processing ends (use defer).
func (l *BatchLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyBatches
	}
}

// TryAcquire takes a slot without blocking.
func (l *BatchLimiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *BatchLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of batches holding a slot.
func (l *BatchLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Available returns the number of free slots.
func (l *BatchLimiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// BatchLimiterStatus is a snapshot of the limiter for health output.
type BatchLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *BatchLimiter) Status() BatchLimiterStatus {
	return BatchLimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: cap(l.semaphore),
	}
}
