package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is idempotent. appointments_no_overlap is what makes concurrent
// inserts for overlapping windows of one provider mutually exclusive.
const schema = `
CREATE EXTENSION IF NOT EXISTS btree_gist;

CREATE TABLE IF NOT EXISTS clinicians (
	id          uuid PRIMARY KEY,
	name        text NOT NULL,
	specialty   text,
	created_at  timestamptz NOT NULL DEFAULT now(),
	updated_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS patients (
	id          uuid PRIMARY KEY,
	name        text NOT NULL,
	email       text,
	created_at  timestamptz NOT NULL DEFAULT now(),
	updated_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS provider_schedules (
	provider_id          uuid PRIMARY KEY,
	granularity_minutes  integer NOT NULL CHECK (granularity_minutes > 0),
	timezone             text NOT NULL DEFAULT 'UTC',
	created_at           timestamptz NOT NULL DEFAULT now(),
	updated_at           timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS provider_windows (
	provider_id   uuid NOT NULL REFERENCES provider_schedules (provider_id) ON DELETE CASCADE,
	weekday       smallint NOT NULL CHECK (weekday BETWEEN 0 AND 6),
	start_minute  integer NOT NULL CHECK (start_minute >= 0),
	end_minute    integer NOT NULL CHECK (end_minute <= 1440),
	PRIMARY KEY (provider_id, weekday, start_minute),
	CHECK (start_minute < end_minute)
);

CREATE TABLE IF NOT EXISTS provider_blackouts (
	id           uuid PRIMARY KEY,
	provider_id  uuid NOT NULL REFERENCES provider_schedules (provider_id) ON DELETE CASCADE,
	start_time   timestamptz NOT NULL,
	end_time     timestamptz NOT NULL,
	reason       text NOT NULL DEFAULT '',
	CHECK (start_time < end_time)
);

CREATE TABLE IF NOT EXISTS appointments (
	id                uuid PRIMARY KEY,
	provider_id       uuid NOT NULL,
	requester_id      uuid NOT NULL,
	start_time        timestamptz NOT NULL,
	end_time          timestamptz NOT NULL,
	status            text NOT NULL CHECK (status IN ('pending', 'scheduled', 'completed', 'cancelled')),
	reason            text NOT NULL DEFAULT '',
	notes             text,
	rescheduled_from  uuid REFERENCES appointments (id),
	created_at        timestamptz NOT NULL DEFAULT now(),
	updated_at        timestamptz NOT NULL DEFAULT now(),
	CHECK (start_time < end_time),
	CONSTRAINT appointments_no_overlap EXCLUDE USING gist (
		provider_id WITH =,
		tstzrange(start_time, end_time, '[)') WITH &&
	) WHERE (status IN ('pending', 'scheduled'))
);

CREATE INDEX IF NOT EXISTS appointments_requester_idx ON appointments (requester_id, start_time);
CREATE INDEX IF NOT EXISTS appointments_pending_idx ON appointments (start_time) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS event_logs (
	id              bigserial PRIMARY KEY,
	event_type      text NOT NULL,
	appointment_id  uuid,
	payload         jsonb,
	created_at      timestamptz NOT NULL DEFAULT now()
);
`

// EnsureSchema creates the tables used by the service if they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
