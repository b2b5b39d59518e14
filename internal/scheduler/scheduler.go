package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/nollyai/studio-server/internal/domain"
	"github.com/nollyai/studio-server/internal/infra"
	"github.com/nollyai/studio-server/internal/notify"
	"github.com/nollyai/studio-server/internal/plugin"
)

// Config bounds one scheduling pass and the per-class execution budgets.
type Config struct {
	BatchSize          int
	Interval           time.Duration
	ShortRunTimeout    time.Duration
	LongRunDeadline    time.Duration
	HandlePollInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 8
	}
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.ShortRunTimeout <= 0 {
		c.ShortRunTimeout = 45 * time.Second
	}
	if c.LongRunDeadline <= 0 {
		c.LongRunDeadline = 10 * time.Minute
	}
	if c.HandlePollInterval <= 0 {
		c.HandlePollInterval = 3 * time.Second
	}
}

// Scheduler drains pending jobs and drives each to a terminal state. The
// claim step is the sole concurrency-safety mechanism: the store only
// transitions jobs whose status is exactly pending, so concurrent schedulers
// never double-execute.
type Scheduler struct {
	store    domain.JobStore
	registry *plugin.Registry
	emitter  notify.Emitter
	logger   infra.Logger
	cfg      Config
	wake     <-chan struct{}
}

func New(store domain.JobStore, registry *plugin.Registry, emitter notify.Emitter, logger infra.Logger, cfg Config) *Scheduler {
	cfg.applyDefaults()
	if emitter == nil {
		emitter = notify.NopEmitter{}
	}
	return &Scheduler{
		store:    store,
		registry: registry,
		emitter:  emitter,
		logger:   logger,
		cfg:      cfg,
	}
}

// SetWake attaches a channel that triggers an immediate pass, typically fed
// by the Redis job event subscription.
func (s *Scheduler) SetWake(wake <-chan struct{}) {
	s.wake = wake
}

// Run loops RunOnce until the context is canceled, waking on the interval or
// on the wake channel. Any batch that claimed work is followed immediately by
// another pass so a burst of submissions drains without interval gaps.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		processed, err := s.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("scheduler: pass failed")
		}
		if processed > 0 && ctx.Err() == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-s.wake:
		}
	}
}

// RunOnce claims one bounded batch of pending jobs and processes them. It is
// safe to invoke from any trigger; each invocation is an independent pass.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	jobs, err := s.store.ClaimPending(ctx, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("claim pending jobs: %w", err)
	}
	for _, job := range jobs {
		s.process(ctx, job)
	}
	return len(jobs), nil
}

// process drives one claimed job to a terminal state. Failures are captured
// into the job record; nothing escapes to abort the rest of the batch.
func (s *Scheduler) process(ctx context.Context, job *domain.Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("job_id", job.ID).Msgf("scheduler: plugin panic: %v", r)
			s.fail(ctx, job, fmt.Sprintf("internal error: %v", r))
		}
	}()

	s.logger.Info().Str("job_id", job.ID).Str("type", string(job.Type)).Msg("scheduler: picked job")

	p, err := s.registry.Resolve(job.Type)
	if err != nil {
		// Submission should have rejected this; defensive terminal state.
		s.fail(ctx, job, "UnsupportedJobType")
		return
	}

	// LongRunDeadline is the total wall-clock ceiling for a long job, anchored
	// at claim time. Run and the subsequent handle polling share it.
	deadline := time.Now().Add(s.cfg.LongRunDeadline)

	runBudget := s.cfg.ShortRunTimeout
	if p.Class() == plugin.ClassLong {
		runBudget = s.cfg.LongRunDeadline
	}
	runCtx, cancel := context.WithTimeout(ctx, runBudget)
	outcome, err := p.Run(runCtx, job)
	cancel()
	if err != nil {
		s.fail(ctx, job, err.Error())
		return
	}

	switch outcome.Status {
	case domain.JobStatusDone:
		s.complete(ctx, job, outcome)
	case domain.JobStatusError:
		s.fail(ctx, job, outcome.ErrorMessage)
	case domain.JobStatusRunning:
		s.pollUntilTerminal(ctx, job, p, outcome.Handle, deadline)
	default:
		s.fail(ctx, job, fmt.Sprintf("plugin returned unknown status %q", outcome.Status))
	}
}

// pollUntilTerminal follows a long-running handle at a fixed interval until
// the plugin reports a terminal outcome or the deadline passes.
func (s *Scheduler) pollUntilTerminal(ctx context.Context, job *domain.Job, p plugin.Plugin, handle string, deadline time.Time) {
	if handle == "" {
		s.fail(ctx, job, "plugin returned running without a handle")
		return
	}
	poller, ok := p.(plugin.HandlePoller)
	if !ok {
		s.fail(ctx, job, fmt.Sprintf("plugin %s cannot poll handles", p.Type()))
		return
	}
	if err := s.store.SetHandle(ctx, job.ID, handle); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("scheduler: persist handle failed")
	}

	ticker := time.NewTicker(s.cfg.HandlePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.fail(ctx, job, "worker interrupted while processing")
			return
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			s.fail(ctx, job, "Timeout")
			return
		}

		pollCtx, cancel := context.WithTimeout(ctx, s.cfg.ShortRunTimeout)
		outcome, err := poller.Poll(pollCtx, handle)
		cancel()
		if err != nil {
			s.fail(ctx, job, err.Error())
			return
		}
		switch outcome.Status {
		case domain.JobStatusDone:
			s.complete(ctx, job, outcome)
			return
		case domain.JobStatusError:
			s.fail(ctx, job, outcome.ErrorMessage)
			return
		case domain.JobStatusRunning:
			// keep polling
		default:
			s.fail(ctx, job, fmt.Sprintf("plugin returned unknown status %q", outcome.Status))
			return
		}
	}
}

// terminalWriteTimeout bounds the detached store writes below.
const terminalWriteTimeout = 10 * time.Second

// complete and fail record the terminal state with a context detached from
// the caller's. Worker shutdown cancels the pass mid-flight; the terminal
// write must still land or the claimed job stays running with nobody
// driving it.
func (s *Scheduler) complete(ctx context.Context, job *domain.Job, outcome plugin.Outcome) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()
	if err := s.store.MarkDone(ctx, job.ID, outcome.Result); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("scheduler: mark done failed")
		return
	}
	job.Status = domain.JobStatusDone
	job.Result = outcome.Result
	job.ErrorMessage = ""
	s.emitter.JobFinished(ctx, job)
	s.logger.Info().Str("job_id", job.ID).Str("type", string(job.Type)).Msg("scheduler: job done")
}

func (s *Scheduler) fail(ctx context.Context, job *domain.Job, message string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()
	if message == "" {
		message = "unknown error"
	}
	if err := s.store.MarkError(ctx, job.ID, message); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("scheduler: mark error failed")
		return
	}
	job.Status = domain.JobStatusError
	job.Result = nil
	job.ErrorMessage = message
	s.emitter.JobFinished(ctx, job)
	s.logger.Warn().Str("job_id", job.ID).Str("type", string(job.Type)).Str("error", message).Msg("scheduler: job failed")
}
