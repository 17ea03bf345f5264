package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/bootstrap"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/identity"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("prod", "info", "api-server")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel, "api-server")
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("store", cfg.Store).
		Str("lock_mode", cfg.LockMode).
		Str("auth_mode", cfg.AuthMode).
		Bool("require_confirmation", cfg.RequireConfirmation).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(rootCtx, cfg, "clinic-scheduling-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("tracing setup error")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "clinic")

	deps, err := bootstrap.Build(rootCtx, cfg, logger, m)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup error")
	}
	defer deps.Close()

	var auth identity.Authenticator = identity.HeaderAuthenticator{}
	if cfg.AuthMode == config.AuthJWT {
		auth = identity.NewJWTAuthenticator([]byte(cfg.JWTSecret))
	} else {
		logger.Warn().Msg("AUTH_MODE=dev trusts X-Actor-ID and X-Actor-Role headers")
	}

	// A memory store is private to this process, so the sweeper runs here.
	if cfg.Store == config.StoreMemory {
		go deps.Service.RunExpiryLoop(rootCtx, cfg.WorkerInterval)
	}

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Service:  deps.Service,
			Auth:     auth,
			Logger:   logger,
			Metrics:  m,
			Gatherer: reg,
			Checks:   deps.Checks,
			Env:      cfg.Env,
			Version:  version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}

	logger.Info().Msg("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracing shutdown error")
	}
}
