package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nollyai/studio-server/internal/domain"
	"github.com/nollyai/studio-server/internal/middleware"
)

type submitJobRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type jobDTO struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

func toJobDTO(job *domain.Job) jobDTO {
	return jobDTO{
		ID:           job.ID,
		Type:         string(job.Type),
		Status:       string(job.Status),
		Payload:      job.Payload,
		Result:       job.Result,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
		CompletedAt:  job.CompletedAt,
	}
}

// SubmitJob validates the type and payload, debits the plugin's cost and
// persists a pending job, in that order: a rejected submission never touches
// credits or writes a job row.
func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	p, err := a.Registry.Resolve(domain.JobType(req.Type))
	if err != nil {
		a.error(w, http.StatusBadRequest, "unsupported_job_type", "unsupported job type "+req.Type)
		return
	}
	if len(req.Payload) == 0 {
		req.Payload = json.RawMessage("{}")
	}
	if err := p.Validate(req.Payload); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}

	cost := p.Cost(req.Payload)
	if cost > 0 {
		if err := a.Credits.Debit(r.Context(), userID, cost); err != nil {
			if errors.Is(err, domain.ErrInsufficientCredits) {
				a.error(w, http.StatusPaymentRequired, "insufficient_credits", "not enough credits for this job")
				return
			}
			a.Logger.Error().Err(err).Str("user_id", userID).Msg("submit: debit failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to authorize credits")
			return
		}
	}

	job := &domain.Job{
		Owner:   userID,
		Type:    domain.JobType(req.Type),
		Payload: req.Payload,
		Locale:  middleware.LocaleFromContext(r.Context()),
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		// The debit already went through; hand the credits back.
		if cost > 0 {
			if refundErr := a.Credits.Credit(r.Context(), userID, cost); refundErr != nil {
				a.Logger.Error().Err(refundErr).Str("user_id", userID).Msg("submit: refund failed")
			}
		}
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("submit: create job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
		return
	}
	a.emitter().JobQueued(r.Context(), job)

	status, err := a.Credits.Status(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("submit: read balance failed")
	}
	a.json(w, http.StatusAccepted, map[string]any{
		"job_id":  job.ID,
		"status":  job.Status,
		"cost":    cost,
		"balance": status.CurrentBalance,
	})
}

// JobStatus returns the full job record, owner-scoped.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	job, ok := a.loadJobForOwner(w, r, userID)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, toJobDTO(job))
}

// ListJobs returns the owner's recent jobs, newest first.
func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobs, err := a.Jobs.ListByOwner(r.Context(), userID, 50)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list jobs")
		return
	}
	items := make([]jobDTO, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, toJobDTO(job))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// RetryJob resets an errored job to pending. The original debit is reused;
// no credits change hands.
func (a *App) RetryJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	job, ok := a.loadJobForOwner(w, r, userID)
	if !ok {
		return
	}
	if err := a.Jobs.Retry(r.Context(), job.ID); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			a.error(w, http.StatusConflict, "not_failed", "only failed jobs can be retried")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to retry job")
		return
	}
	job.Status = domain.JobStatusPending
	a.emitter().JobQueued(r.Context(), job)
	a.json(w, http.StatusOK, map[string]string{"job_id": job.ID, "status": string(domain.JobStatusPending)})
}

// WaitJob long-polls until the job reaches a terminal status or the wait
// budget expires, then returns the current record either way.
func (a *App) WaitJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	job, ok := a.loadJobForOwner(w, r, userID)
	if !ok {
		return
	}
	if job.Terminal() || a.Watcher == nil {
		a.json(w, http.StatusOK, toJobDTO(job))
		return
	}

	maxWait := a.WatchMaxWait
	if maxWait <= 0 {
		maxWait = 25 * time.Second
	}

	terminal := make(chan *domain.Job, 1)
	cancel := a.Watcher.Watch(job.ID, nil, func(j *domain.Job) {
		select {
		case terminal <- j:
		default:
		}
	})
	defer cancel()

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	select {
	case <-r.Context().Done():
		return
	case j := <-terminal:
		a.json(w, http.StatusOK, toJobDTO(j))
	case <-timer.C:
		current, err := a.Jobs.Get(r.Context(), job.ID)
		if err != nil {
			a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
			return
		}
		a.json(w, http.StatusOK, toJobDTO(current))
	}
}

func (a *App) loadJobForOwner(w http.ResponseWriter, r *http.Request, userID string) (*domain.Job, bool) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return nil, false
	}
	job, err := a.Jobs.Get(r.Context(), jobID)
	if err != nil || job.Owner != userID {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return nil, false
	}
	return job, true
}
