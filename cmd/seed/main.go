package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

var logger zerolog.Logger

func main() {
	logger = logging.New(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"), "seed")

	rootCmd := &cobra.Command{
		Use:          "seed",
		Short:        "Seed the clinic scheduling database",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(peopleCmd())
	rootCmd.AddCommand(schedulesCmd())
	rootCmd.AddCommand(tokenCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create tables and constraints if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				logger.Info().Msg("schema ready")
				return nil
			})
		},
	}
}

// withPool connects using POSTGRES_DSN and makes sure the schema exists.
func withPool(ctx context.Context, fn func(ctx context.Context, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Store != config.StorePostgres {
		return fmt.Errorf("seed needs STORE=postgres, got %q", cfg.Store)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(connectCtx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	return fn(ctx, pool)
}
