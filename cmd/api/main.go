package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nollyai/studio-server/internal/adapter/repo"
	"github.com/nollyai/studio-server/internal/http/handlers"
	"github.com/nollyai/studio-server/internal/http/httpapi"
	"github.com/nollyai/studio-server/internal/infra"
	"github.com/nollyai/studio-server/internal/infra/geoip"
	"github.com/nollyai/studio-server/internal/middleware"
	"github.com/nollyai/studio-server/internal/notify"
	"github.com/nollyai/studio-server/internal/plugin"
	"github.com/nollyai/studio-server/internal/poller"
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
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("api: redis unavailable, notifications degrade to database only")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip database unavailable")
	} else if resolver != nil {
		lookup = resolver.CountryCode
	}

	registry := plugin.BuildRegistry(cfg, &logger)
	jobs := repo.NewJobStore(runner)
	credits := repo.NewCreditLedger(runner)
	emitter := notify.NewNotifier(runner, redisClient, logger)
	watcher := poller.NewWatcher(jobs.GetMany, cfg.WatchPollInterval, logger)

	app := &handlers.App{
		Jobs:         jobs,
		Credits:      credits,
		Registry:     registry,
		Emitter:      emitter,
		Watcher:      watcher,
		SQL:          runner,
		Logger:       logger,
		WatchMaxWait: cfg.WatchMaxWait,
	}

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		CountryLookup:  lookup,
		Logger:         logger,
	})

	server := infra.NewHTTPServer(cfg, router)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()
	logger.Info().Str("port", cfg.Port).Msg("api: listening")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: shutdown failed")
	}
	logger.Info().Msg("api: stopped")
}
