package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

func schedulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "Apply a TOML schedule template to every clinician",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("template")
			overwrite, _ := cmd.Flags().GetBool("overwrite")

			tmpl, err := appointment.LoadScheduleTemplate(path)
			if err != nil {
				return err
			}

			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				return applyTemplate(ctx, pool, tmpl, overwrite)
			})
		},
	}
	cmd.Flags().String("template", "configs/schedule.toml", "path to the schedule template")
	cmd.Flags().Bool("overwrite", false, "replace schedules that already exist")
	return cmd
}

func applyTemplate(ctx context.Context, pool *pgxpool.Pool, tmpl *appointment.ScheduleTemplate, overwrite bool) error {
	rows, err := pool.Query(ctx, `SELECT id FROM clinicians ORDER BY created_at`)
	if err != nil {
		return fmt.Errorf("load clinicians: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return fmt.Errorf("load clinicians: %w", err)
	}

	repo := appointment.NewPgRepository(pool)
	applied, skipped := 0, 0
	for _, id := range ids {
		if !overwrite {
			if _, err := repo.GetSchedule(ctx, id); err == nil {
				skipped++
				continue
			}
		}

		sched, err := tmpl.Build(id)
		if err != nil {
			return err
		}
		if err := repo.PutSchedule(ctx, sched); err != nil {
			return fmt.Errorf("put schedule for %s: %w", id, err)
		}
		applied++
	}

	logger.Info().Int("applied", applied).Int("skipped", skipped).Msg("schedules seeded")
	return nil
}
