package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/notify"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

// Deps is everything a binary needs to run the scheduling core.
type Deps struct {
	Service *appointment.Service
	Repo    appointment.Repository
	Pool    *pgxpool.Pool // nil with the memory store
	Redis   *redis.Client // nil unless LOCK_MODE=redis
	Checks  []api.ReadyCheck

	closers []func()
}

// Build connects the configured store, locker and notifier. Call Close when
// done. On error Build has already released what it acquired.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger, m *metrics.Metrics) (*Deps, error) {
	d := &Deps{}

	switch cfg.Store {
	case config.StorePostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.DBMaxConns)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres connection: %w", err)
		}
		d.Pool = pool
		d.closers = append(d.closers, pool.Close)

		if err := db.EnsureSchema(ctx, pool); err != nil {
			d.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		d.Repo = appointment.NewPgRepository(pool)
		d.Checks = append(d.Checks, api.ReadyCheck{Name: "postgres", Critical: true, Check: pool.Ping})
		logger.Info().Msg("connected to Postgres")
	case config.StoreMemory:
		d.Repo = appointment.NewMemoryRepository()
		logger.Warn().Msg("using in-memory store; data is lost on restart")
	}

	var locker redisclient.Locker
	switch cfg.LockMode {
	case config.LockLocal:
		locker = appointment.NewKeyedLocker()
	case config.LockRedis:
		rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("redis connection: %w", err)
		}
		d.Redis = rdb
		d.closers = append(d.closers, func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		})
		d.Checks = append(d.Checks, api.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		locker = redisclient.NewRedisProviderLocker(rdb, cfg.LockTTL, cfg.LockWait)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	}

	var notifier appointment.Notifier
	switch cfg.Notifier {
	case config.NotifierKafka:
		kn := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		notifier = kn
		d.closers = append(d.closers, func() {
			if err := kn.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing kafka writer")
			}
		})
		d.Checks = append(d.Checks, api.ReadyCheck{Name: "kafka", Check: notify.KafkaReadyCheck(cfg.KafkaBrokers)})
	default:
		notifier = notify.NewLogNotifier(logger)
	}

	d.Service = appointment.NewService(d.Repo, locker, notifier, cfg, logger, m)
	return d, nil
}

// Close releases resources in reverse order of acquisition.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}
