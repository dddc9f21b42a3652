package core

import (
	"fmt"
	"sync"
	"time"
)

// JobStore keeps parsed uploads in memory until they expire.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*storedJob
}

type storedJob struct {
	job  ImportJob
	rows []Row
}

// NewJobStore creates an empty store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*storedJob)}
}

// Put stores a parsed upload under its job id.
func (s *JobStore) Put(job ImportJob, rows []Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = &storedJob{job: job, rows: rows}
}

// Get returns a job and its rows. The rows must not be modified.
func (s *JobStore) Get(jobID string) (ImportJob, []Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return ImportJob{}, nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return j.job, j.rows, nil
}

// Len returns the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// EvictBefore removes jobs created before cutoff, except those keep
// reports true for. It returns the number removed.
func (s *JobStore) EvictBefore(cutoff time.Time, keep func(jobID string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, j := range s.jobs {
		if !j.job.CreatedAt.Before(cutoff) {
			continue
		}
		if keep != nil && keep(id) {
			continue
		}
		delete(s.jobs, id)
		removed++
	}
	return removed
}
