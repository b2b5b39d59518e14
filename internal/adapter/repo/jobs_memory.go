package repo

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nollyai/studio-server/internal/domain"
)

// MemoryJobStore keeps jobs in memory for local development and tests. The
// mutex plays the role the conditional SQL updates play in JobStorePG.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
	now  func() time.Time
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[string]*domain.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryJobStore) Create(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := s.now()
	job.Status = domain.JobStatusPending
	if job.Locale == "" {
		job.Locale = "en"
	}
	job.CreatedAt = now
	job.UpdatedAt = now
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *MemoryJobStore) Get(_ context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(job), nil
}

func (s *MemoryJobStore) GetMany(_ context.Context, ids []string) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]*domain.Job, 0, len(ids))
	for _, id := range ids {
		if job, ok := s.jobs[id]; ok {
			jobs = append(jobs, cloneJob(job))
		}
	}
	return jobs, nil
}

func (s *MemoryJobStore) ListByOwner(_ context.Context, owner string, limit int) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]*domain.Job, 0)
	for _, job := range s.jobs {
		if job.Owner == owner {
			jobs = append(jobs, cloneJob(job))
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *MemoryJobStore) ListPending(_ context.Context, limit int) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked(limit), nil
}

func (s *MemoryJobStore) ClaimPending(_ context.Context, limit int) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claimed := s.pendingLocked(limit)
	now := s.now()
	for i, job := range claimed {
		stored := s.jobs[job.ID]
		stored.Status = domain.JobStatusRunning
		stored.UpdatedAt = now
		claimed[i] = cloneJob(stored)
	}
	return claimed, nil
}

func (s *MemoryJobStore) SetHandle(_ context.Context, id, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status != domain.JobStatusRunning {
		return domain.ErrInvalidTransition
	}
	job.Handle = handle
	job.UpdatedAt = s.now()
	return nil
}

func (s *MemoryJobStore) MarkDone(_ context.Context, id string, result json.RawMessage) error {
	return s.finish(id, domain.JobStatusDone, result, "")
}

func (s *MemoryJobStore) MarkError(_ context.Context, id, message string) error {
	return s.finish(id, domain.JobStatusError, nil, message)
}

func (s *MemoryJobStore) Retry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !domain.CanTransition(job.Status, domain.JobStatusPending) {
		return domain.ErrInvalidTransition
	}
	job.Status = domain.JobStatusPending
	job.Result = nil
	job.ErrorMessage = ""
	job.Handle = ""
	job.CompletedAt = nil
	job.UpdatedAt = s.now()
	return nil
}

func (s *MemoryJobStore) finish(id string, status domain.JobStatus, result json.RawMessage, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !domain.CanTransition(job.Status, status) {
		return domain.ErrInvalidTransition
	}
	now := s.now()
	job.Status = status
	job.Result = append(json.RawMessage(nil), result...)
	job.ErrorMessage = message
	job.Handle = ""
	job.UpdatedAt = now
	if job.CompletedAt == nil {
		completed := now
		job.CompletedAt = &completed
	}
	return nil
}

func (s *MemoryJobStore) pendingLocked(limit int) []*domain.Job {
	jobs := make([]*domain.Job, 0)
	for _, job := range s.jobs {
		if job.Status == domain.JobStatusPending {
			jobs = append(jobs, cloneJob(job))
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs
}

func cloneJob(job *domain.Job) *domain.Job {
	if job == nil {
		return nil
	}
	clone := *job
	clone.Payload = append(json.RawMessage(nil), job.Payload...)
	clone.Result = append(json.RawMessage(nil), job.Result...)
	if job.CompletedAt != nil {
		completed := *job.CompletedAt
		clone.CompletedAt = &completed
	}
	return &clone
}

var _ domain.JobStore = (*MemoryJobStore)(nil)
