package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProviderNotFound    = errors.New("provider not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrConflict is returned by InsertAppointment and Reschedule when the new
	// interval overlaps a committed appointment of the same provider.
	ErrConflict = errors.New("overlapping appointment exists")

	// ErrStatusChanged is returned by UpdateStatus when the stored status no
	// longer matches the expected source status.
	ErrStatusChanged = errors.New("appointment status changed concurrently")
)

// Repository contains all storage interactions needed by the service.
type Repository interface {
	// Provider schedules
	GetSchedule(ctx context.Context, providerID uuid.UUID) (*ProviderSchedule, error)
	PutSchedule(ctx context.Context, s *ProviderSchedule) error

	// Committed appointments (pending, scheduled) overlapping [from, to), ordered by start.
	ListCommitted(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error)

	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, filter ListFilter) (*AppointmentPage, error)

	// InsertAppointment is an atomic check-and-insert against the per-provider
	// overlap invariant.
	InsertAppointment(ctx context.Context, a *Appointment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// Reschedule cancels oldID (expected in status from) and inserts next as
	// one unit. Either both are applied or neither.
	Reschedule(ctx context.Context, oldID uuid.UUID, from Status, next *Appointment) (*Appointment, error)

	// Sweeper
	FindStalePending(ctx context.Context, now time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
