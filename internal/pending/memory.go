package pending

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is the single-process dispatch table: a mutex-guarded map.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]Job
}

// NewMemoryStore creates an empty in-memory dispatch table.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job)}
}

// Put records a pending job. A second Put for the same job id fails.
func (s *MemoryStore) Put(_ context.Context, job Job) error {
	if strings.TrimSpace(job.JobID) == "" {
		return fmt.Errorf("job id is required")
	}
	if job.ExpiresAt.IsZero() {
		return fmt.Errorf("expires_at is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.JobID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.JobID)
	}
	s.jobs[job.JobID] = job
	return nil
}

// TakeAndDelete removes and returns the job for jobID. Exactly one
// concurrent caller wins; the rest observe ErrNotFound.
func (s *MemoryStore) TakeAndDelete(_ context.Context, jobID string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	delete(s.jobs, jobID)
	return job, nil
}

// ExpireBefore removes and returns all jobs expiring at or before cutoff,
// oldest first.
func (s *MemoryStore) ExpireBefore(_ context.Context, cutoff time.Time) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []Job
	for id, job := range s.jobs {
		if !job.ExpiresAt.After(cutoff) {
			expired = append(expired, job)
			delete(s.jobs, id)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	return expired, nil
}

// Len reports the number of pending jobs.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
