package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nollyai/studio-server/internal/domain"
	"github.com/nollyai/studio-server/internal/infra"
	"github.com/nollyai/studio-server/internal/sqlinline"
)

// JobStorePG implements domain.JobStore backed by PostgreSQL. Claim and
// transition statements are conditional on the prior status, so the database
// is the arbiter of the legal-transition table under concurrency.
type JobStorePG struct {
	sql infra.SQLExecutor
}

func NewJobStore(sql infra.SQLExecutor) *JobStorePG {
	return &JobStorePG{sql: sql}
}

func (s *JobStorePG) Create(ctx context.Context, job *domain.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = domain.JobStatusPending
	if job.Locale == "" {
		job.Locale = "en"
	}
	row := s.sql.QueryRow(ctx, sqlinline.QInsertJob, job.ID, job.Owner, string(job.Type), job.Payload, job.Locale)
	if err := row.Scan(&job.CreatedAt, &job.UpdatedAt); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *JobStorePG) Get(ctx context.Context, id string) (*domain.Job, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectJob, id)
	job, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query job: %w", err)
	}
	return job, nil
}

func (s *JobStorePG) GetMany(ctx context.Context, ids []string) ([]*domain.Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.sql.Query(ctx, sqlinline.QSelectJobsByID, ids)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (s *JobStorePG) ListByOwner(ctx context.Context, owner string, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.sql.Query(ctx, sqlinline.QListJobsByOwner, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (s *JobStorePG) ListPending(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.sql.Query(ctx, sqlinline.QListPendingJobs, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (s *JobStorePG) ClaimPending(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := s.sql.Query(ctx, sqlinline.QClaimPendingJobs, limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (s *JobStorePG) SetHandle(ctx context.Context, id, handle string) error {
	tag, err := s.sql.Exec(ctx, sqlinline.QSetJobHandle, id, handle)
	if err != nil {
		return fmt.Errorf("set job handle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (s *JobStorePG) MarkDone(ctx context.Context, id string, result json.RawMessage) error {
	tag, err := s.sql.Exec(ctx, sqlinline.QMarkJobDone, id, result)
	if err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (s *JobStorePG) MarkError(ctx context.Context, id, message string) error {
	tag, err := s.sql.Exec(ctx, sqlinline.QMarkJobError, id, message)
	if err != nil {
		return fmt.Errorf("mark job error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (s *JobStorePG) Retry(ctx context.Context, id string) error {
	tag, err := s.sql.Exec(ctx, sqlinline.QRetryJob, id)
	if err != nil {
		return fmt.Errorf("retry job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either missing or not currently errored; disambiguate for 404s.
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
		return domain.ErrInvalidTransition
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job         domain.Job
		jobType     string
		status      string
		payload     []byte
		result      []byte
		completedAt *time.Time
	)
	err := row.Scan(
		&job.ID,
		&job.Owner,
		&jobType,
		&payload,
		&status,
		&result,
		&job.ErrorMessage,
		&job.Handle,
		&job.Locale,
		&job.CreatedAt,
		&job.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Type = domain.JobType(jobType)
	job.Status = domain.JobStatus(status)
	job.Payload = json.RawMessage(payload)
	job.Result = json.RawMessage(result)
	job.CompletedAt = completedAt
	return &job, nil
}

func scanJobs(rows pgx.Rows) ([]*domain.Job, error) {
	jobs := make([]*domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate jobs: %w", rows.Err())
	}
	return jobs, nil
}

var _ domain.JobStore = (*JobStorePG)(nil)
