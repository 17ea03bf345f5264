package main

import (
	"context"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func peopleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "people",
		Short: "Insert fake clinicians and patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			clinicians, _ := cmd.Flags().GetInt("clinicians")
			patients, _ := cmd.Flags().GetInt("patients")

			gofakeit.Seed(time.Now().UnixNano())

			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
				if err := seedClinicians(ctx, pool, clinicians); err != nil {
					return err
				}
				return seedPatients(ctx, pool, patients)
			})
		},
	}
	cmd.Flags().Int("clinicians", 100, "number of clinicians to insert")
	cmd.Flags().Int("patients", 9000, "number of patients to insert")
	return cmd
}

func seedClinicians(ctx context.Context, pool *pgxpool.Pool, count int) error {
	logger.Info().Int("count", count).Msg("seeding clinicians")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		_, err := tx.Exec(ctx, `
			INSERT INTO clinicians (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, uuid.New(), "Dr. "+gofakeit.LastName(), specialties[gofakeit.Number(0, len(specialties)-1)])
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info().Msg("clinicians seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, uuid.New(), gofakeit.Name(), gofakeit.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		logger.Info().Int("done", end).Int("total", count).Msg("patients batch committed")
	}

	return nil
}
