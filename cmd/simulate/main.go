package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/identity"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	BookingRatio    float64
	ConfirmRatio    float64
	CancelRatio     float64
	RescheduleRatio float64
	ReadRatio       float64
	PatientLimit    int
	ProviderLimit   int
	DaysAhead       int
	PostgresDSN     string
	AuthMode        string
	JWTSecret       string
}

type bookedAppointment struct {
	ID          uuid.UUID
	ProviderID  uuid.UUID
	RequesterID uuid.UUID
}

type DataPool struct {
	Patients     []uuid.UUID
	Providers    []uuid.UUID
	mu           sync.RWMutex
	appointments []bookedAppointment
}

func (dp *DataPool) AddAppointment(a bookedAppointment) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, a)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (bookedAppointment, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return bookedAppointment{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	auth    *identity.JWTAuthenticator
	tokens  sync.Map
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	log := logging.New(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"), "simulate")

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("confirm", cfg.ConfirmRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("reschedule", cfg.RescheduleRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 4)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}
	log.Info().Int("patients", len(dataPool.Patients)).Int("providers", len(dataPool.Providers)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
	if cfg.AuthMode == config.AuthJWT {
		sim.auth = identity.NewJWTAuthenticator([]byte(cfg.JWTSecret))
	}

	sim.Run()

	overlaps, err := countOverlaps(context.Background(), pgPool)
	if err != nil {
		log.Error().Err(err).Msg("overlap check failed")
	}
	sim.PrintReport(overlaps)
	if overlaps > 0 {
		os.Exit(1)
	}
}

func loadConfig() (SimConfig, error) {
	baseCfg, err := config.Load()
	if err != nil {
		return SimConfig{}, fmt.Errorf("load base config: %w", err)
	}

	cfg := SimConfig{
		APIBaseURL:      getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		BookingRatio:    getFloat("SIM_BOOKING_RATIO", 0.4),
		ConfirmRatio:    getFloat("SIM_CONFIRM_RATIO", 0.15),
		CancelRatio:     getFloat("SIM_CANCEL_RATIO", 0.05),
		RescheduleRatio: getFloat("SIM_RESCHEDULE_RATIO", 0.1),
		ReadRatio:       getFloat("SIM_READ_RATIO", 0.3),
		PatientLimit:    getInt("SIM_PATIENT_LIMIT", 4000),
		ProviderLimit:   getInt("SIM_PROVIDER_LIMIT", 20),
		DaysAhead:       getInt("SIM_DAYS_AHEAD", 5),
		PostgresDSN:     baseCfg.PostgresDSN,
		AuthMode:        baseCfg.AuthMode,
		JWTSecret:       baseCfg.JWTSecret,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.CancelRatio + cfg.RescheduleRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.CancelRatio /= total
		cfg.RescheduleRatio /= total
		cfg.ReadRatio /= total
	}

	if cfg.PostgresDSN == "" {
		return cfg, fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return cfg, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return cfg, fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return cfg, fmt.Errorf("SIM_DAYS_AHEAD must be > 0")
	}
	return cfg, nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	dataPool.Patients, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	// Only providers with a schedule can be booked.
	rows, err = pool.Query(ctx, `SELECT provider_id FROM provider_schedules LIMIT $1`, cfg.ProviderLimit)
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	dataPool.Providers, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run `seed people` first")
	}
	if len(dataPool.Providers) == 0 {
		return nil, fmt.Errorf("no provider schedules loaded, run `seed schedules` first")
	}
	return dataPool, nil
}

// countOverlaps looks for committed appointments of one provider that
// intersect. Anything above zero is a double booking.
func countOverlaps(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON a.provider_id = b.provider_id
		 AND a.id < b.id
		 AND tstzrange(a.start_time, a.end_time, '[)') && tstzrange(b.start_time, b.end_time, '[)')
		WHERE a.status IN ('pending', 'scheduled')
		  AND b.status IN ('pending', 'scheduled')
	`).Scan(&n)
	return n, err
}
