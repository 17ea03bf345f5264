package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

// LogNotifier writes notifications to the structured log. Used when no broker
// is configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: logger.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, ev appointment.Notification) {
	e := n.log.Info().
		Str("event_type", ev.Type).
		Str("appointment_id", ev.AppointmentID.String()).
		Str("provider_id", ev.ProviderID.String()).
		Str("requester_id", ev.RequesterID.String()).
		Str("to", string(ev.To)).
		Time("start", ev.Start).
		Str("actor_role", string(ev.ActorRole))
	if ev.From != "" {
		e = e.Str("from", string(ev.From))
	}
	if ev.RescheduledFrom != nil {
		e = e.Str("rescheduled_from", ev.RescheduledFrom.String())
	}
	e.Msg("appointment notification")
}
