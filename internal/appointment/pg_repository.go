package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE raised by the appointments_no_overlap exclusion constraint.
const exclusionViolation = "23P01"

const appointmentColumns = `id, provider_id, requester_id, start_time, end_time, status, reason, notes, rescheduled_from, created_at, updated_at`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var notes *string
	var rescheduledFrom *uuid.UUID

	err := row.Scan(
		&a.ID,
		&a.ProviderID,
		&a.RequesterID,
		&a.Start,
		&a.End,
		&a.Status,
		&a.Reason,
		&notes,
		&rescheduledFrom,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Notes = notes
	a.RescheduledFrom = rescheduledFrom
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == exclusionViolation
}

// Interface methods

func (r *PgRepository) GetSchedule(ctx context.Context, providerID uuid.UUID) (*ProviderSchedule, error) {
	s := ProviderSchedule{ProviderID: providerID}
	var granularityMinutes int

	err := r.pool.QueryRow(ctx, `
		SELECT granularity_minutes, timezone, updated_at
		FROM provider_schedules
		WHERE provider_id = $1
	`, providerID).Scan(&granularityMinutes, &s.Timezone, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	s.Granularity = time.Duration(granularityMinutes) * time.Minute

	rows, err := r.pool.Query(ctx, `
		SELECT weekday, start_minute, end_minute
		FROM provider_windows
		WHERE provider_id = $1
		ORDER BY weekday, start_minute
	`, providerID)
	if err != nil {
		return nil, fmt.Errorf("load windows: %w", err)
	}
	for rows.Next() {
		var w WeeklyWindow
		var weekday int
		if err := rows.Scan(&weekday, &w.StartMinute, &w.EndMinute); err != nil {
			rows.Close()
			return nil, err
		}
		w.Weekday = time.Weekday(weekday)
		s.Windows = append(s.Windows, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `
		SELECT id, start_time, end_time, reason
		FROM provider_blackouts
		WHERE provider_id = $1
		ORDER BY start_time
	`, providerID)
	if err != nil {
		return nil, fmt.Errorf("load blackouts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var b Blackout
		if err := rows.Scan(&b.ID, &b.Start, &b.End, &b.Reason); err != nil {
			return nil, err
		}
		s.Blackouts = append(s.Blackouts, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &s, nil
}

func (r *PgRepository) PutSchedule(ctx context.Context, s *ProviderSchedule) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO provider_schedules (provider_id, granularity_minutes, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (provider_id) DO UPDATE
		SET granularity_minutes = EXCLUDED.granularity_minutes,
		    timezone = EXCLUDED.timezone,
		    updated_at = now()
	`, s.ProviderID, int(s.Granularity/time.Minute), s.Timezone)
	if err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM provider_windows WHERE provider_id = $1`, s.ProviderID); err != nil {
		return fmt.Errorf("clear windows: %w", err)
	}
	for _, w := range s.Windows {
		_, err := tx.Exec(ctx, `
			INSERT INTO provider_windows (provider_id, weekday, start_minute, end_minute)
			VALUES ($1, $2, $3, $4)
		`, s.ProviderID, int(w.Weekday), w.StartMinute, w.EndMinute)
		if err != nil {
			return fmt.Errorf("insert window: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM provider_blackouts WHERE provider_id = $1`, s.ProviderID); err != nil {
		return fmt.Errorf("clear blackouts: %w", err)
	}
	for _, b := range s.Blackouts {
		id := b.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO provider_blackouts (id, provider_id, start_time, end_time, reason)
			VALUES ($1, $2, $3, $4, $5)
		`, id, s.ProviderID, b.Start, b.End, b.Reason)
		if err != nil {
			return fmt.Errorf("insert blackout: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) ListCommitted(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND status IN ('pending', 'scheduled')
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time ASC
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, filter ListFilter) (*AppointmentPage, error) {
	filter.normalize()

	where := sq.And{}
	// uuid.UUID is an array, which sq.Eq would expand into an IN list.
	if filter.ProviderID != nil {
		where = append(where, sq.Expr("provider_id = ?", *filter.ProviderID))
	}
	if filter.RequesterID != nil {
		where = append(where, sq.Expr("requester_id = ?", *filter.RequesterID))
	}
	if filter.Status != nil {
		where = append(where, sq.Eq{"status": string(*filter.Status)})
	}
	if filter.From != nil {
		where = append(where, sq.GtOrEq{"start_time": *filter.From})
	}
	if filter.To != nil {
		where = append(where, sq.Lt{"start_time": *filter.To})
	}

	countSQL, countArgs, err := psql.Select("count(*)").From("appointments").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count query: %w", err)
	}
	page := &AppointmentPage{Page: filter.Page, PerPage: filter.PerPage}
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}

	listSQL, listArgs, err := psql.Select(appointmentColumns).
		From("appointments").
		Where(where).
		OrderBy("start_time ASC", "created_at ASC").
		Limit(uint64(filter.PerPage)).
		Offset(uint64(filter.Offset())).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.pool.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	page.Items, err = collectAppointments(rows)
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (r *PgRepository) InsertAppointment(ctx context.Context, a *Appointment) error {
	return insertAppointment(ctx, r.pool, a)
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertAppointment(ctx context.Context, q querier, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	err := q.QueryRow(ctx, `
		INSERT INTO appointments (id, provider_id, requester_id, start_time, end_time, status, reason, notes, rescheduled_from, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING created_at, updated_at
	`, a.ID, a.ProviderID, a.RequesterID, a.Start, a.End, string(a.Status), a.Reason, a.Notes, a.RescheduledFrom).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isExclusionViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, string(to), string(from))

	updated, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, r.missOrChanged(ctx, r.pool, id)
	}
	return updated, err
}

func (r *PgRepository) Reschedule(ctx context.Context, oldID uuid.UUID, from Status, next *Appointment) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Cancel first so the new interval may overlap the one it replaces.
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
	`, oldID, string(from))
	if err != nil {
		return nil, fmt.Errorf("cancel old appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, r.missOrChanged(ctx, tx, oldID)
	}

	if err := insertAppointment(ctx, tx, next); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reschedule: %w", err)
	}
	return next, nil
}

func (r *PgRepository) missOrChanged(ctx context.Context, q querier, id uuid.UUID) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrAppointmentNotFound
	}
	return ErrStatusChanged
}

func (r *PgRepository) FindStalePending(ctx context.Context, now time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'pending'
		  AND start_time <= $1
		ORDER BY start_time ASC
	`, now)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
