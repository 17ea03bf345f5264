package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/hackgods/clinic-scheduling/internal/bootstrap"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("prod", "info", "expiry-worker")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel, "expiry-worker")
	if cfg.Store != config.StorePostgres {
		logger.Fatal().Str("store", cfg.Store).Msg("expiry-worker needs a shared store; the api-server sweeps the memory store itself")
	}
	logger.Info().Dur("interval", cfg.WorkerInterval).Msg("expiry-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(rootCtx, cfg, "clinic-scheduling-expiry-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("tracing setup error")
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	// The worker serves no HTTP, so there is nowhere to expose metrics.
	deps, err := bootstrap.Build(rootCtx, cfg, logger, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup error")
	}
	defer deps.Close()

	deps.Service.RunExpiryLoop(rootCtx, cfg.WorkerInterval)
	logger.Info().Msg("shutdown signal received, expiry worker stopped")
}
