package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/nollyai/studio-server/internal/adapter/repo"
	"github.com/nollyai/studio-server/internal/infra"
	"github.com/nollyai/studio-server/internal/notify"
	"github.com/nollyai/studio-server/internal/plugin"
	"github.com/nollyai/studio-server/internal/scheduler"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("worker: redis unavailable, falling back to interval polling")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	registry := plugin.BuildRegistry(cfg, &logger)
	jobs := repo.NewJobStore(runner)
	emitter := notify.NewNotifier(runner, redisClient, logger)

	sched := scheduler.New(jobs, registry, emitter, logger, scheduler.Config{
		BatchSize:          cfg.WorkerBatchSize,
		Interval:           cfg.WorkerInterval,
		ShortRunTimeout:    cfg.ShortRunTimeout,
		LongRunDeadline:    cfg.LongRunDeadline,
		HandlePollInterval: cfg.HandlePollInterval,
	})
	if wake := notify.Wakeups(ctx, redisClient, logger); wake != nil {
		sched.SetWake(wake)
	}

	logger.Info().Int("batch_size", cfg.WorkerBatchSize).Msg("worker: started")
	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker: run loop failed")
	}
	logger.Info().Msg("worker: stopped")
}
