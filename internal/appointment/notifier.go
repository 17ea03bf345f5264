package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Notification describes one lifecycle change of an appointment.
type Notification struct {
	Type            string     `json:"type"`
	AppointmentID   uuid.UUID  `json:"appointment_id"`
	ProviderID      uuid.UUID  `json:"provider_id"`
	RequesterID     uuid.UUID  `json:"requester_id"`
	From            Status     `json:"from,omitempty"`
	To              Status     `json:"to"`
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	RescheduledFrom *uuid.UUID `json:"rescheduled_from,omitempty"`
	ActorID         uuid.UUID  `json:"actor_id"`
	ActorRole       Role       `json:"actor_role"`
	OccurredAt      time.Time  `json:"occurred_at"`
}

// Notifier is fire-and-forget. Implementations must not block the caller on
// delivery and must swallow their own failures.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notification) {}
