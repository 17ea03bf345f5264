package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentRescheduled   = "APPOINTMENT_RESCHEDULED"
	EventAppointmentExpired       = "APPOINTMENT_EXPIRED"
)

const tracerName = "github.com/hackgods/clinic-scheduling/internal/appointment"

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
	engine   Engine
	cfg      config.Config
	log      zerolog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

// NewService wires the scheduling core. locker may be nil when repo performs
// atomic conditional inserts on its own. A nil notifier drops notifications.
func NewService(repo Repository, locker redisclient.Locker, notifier Notifier, cfg config.Config, logger zerolog.Logger, m *metrics.Metrics) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		engine:   NewEngine(cfg.RequireConfirmation),
		cfg:      cfg,
		log:      logger.With().Str("component", "appointment").Logger(),
		metrics:  m,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
}

type BookRequest struct {
	ProviderID  uuid.UUID
	RequesterID uuid.UUID
	Start       time.Time
	End         time.Time
	Reason      string
	Notes       *string
}

type RescheduleRequest struct {
	AppointmentID uuid.UUID
	Start         time.Time
	End           time.Time
}

// Availability returns the open slots of a provider on a calendar date. Only
// the year, month and day of date are used; they are interpreted in the
// provider's timezone.
func (s *Service) Availability(ctx context.Context, providerID uuid.UUID, date time.Time) (slots []Slot, err error) {
	ctx, span := s.tracer.Start(ctx, "appointment.Availability", trace.WithAttributes(
		attribute.String("provider.id", providerID.String()),
		attribute.String("date", date.Format(time.DateOnly)),
	))
	defer func() { finishSpan(span, err) }()

	started := time.Now()
	defer func() { s.metrics.ObserveAvailability(time.Since(started)) }()

	sched, err := s.repo.GetSchedule(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, sched.Location())
	return s.openSlots(ctx, sched, day, uuid.Nil)
}

// openSlots computes the free slots of the local day containing day. The
// committed appointment with id ignore, if any, is treated as free time.
func (s *Service) openSlots(ctx context.Context, sched *ProviderSchedule, day time.Time, ignore uuid.UUID) ([]Slot, error) {
	dayStart, dayEnd := sched.DayBounds(day)

	committed, err := s.repo.ListCommitted(ctx, sched.ProviderID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list committed appointments: %w", err)
	}
	if err := checkNoOverlap(committed); err != nil {
		s.log.Error().
			Err(err).
			Str("provider_id", sched.ProviderID.String()).
			Time("day", dayStart).
			Msg("committed appointments overlap")
		return nil, err
	}

	busy := sched.BlackoutsOn(dayStart)
	for i := range committed {
		if committed[i].ID == ignore {
			continue
		}
		busy = append(busy, committed[i].Interval())
	}

	return FreeSlots(sched.WorkingHours(dayStart), busy, sched.Granularity), nil
}

// unavailableReason tells a window held by another appointment apart from one
// the schedule never offers.
func unavailableReason(sched *ProviderSchedule, want Interval) error {
	dayStart, _ := sched.DayBounds(want.Start)
	offered := FreeSlots(sched.WorkingHours(dayStart), sched.BlackoutsOn(dayStart), sched.Granularity)
	if Covers(offered, want) {
		return ErrSlotUnavailable
	}
	return ErrOutsideAvailability
}

// Book creates an appointment if the requested window is entirely open.
func (s *Service) Book(ctx context.Context, actor Actor, req BookRequest) (created *Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "appointment.Book", trace.WithAttributes(
		attribute.String("provider.id", req.ProviderID.String()),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer func() {
		s.metrics.ObserveBooking(Outcome(err))
		finishSpan(span, err)
	}()

	if req.RequesterID == uuid.Nil && actor.Role == RolePatient {
		req.RequesterID = actor.ID
	}
	if req.ProviderID == uuid.Nil || req.RequesterID == uuid.Nil {
		return nil, fmt.Errorf("%w: provider and requester are required", ErrInvalidRequest)
	}
	if !req.Start.Before(req.End) {
		return nil, fmt.Errorf("%w: start must be before end", ErrInvalidRequest)
	}
	if err := s.engine.AuthorizeBooking(actor, req.RequesterID); err != nil {
		return nil, err
	}

	sched, err := s.repo.GetSchedule(ctx, req.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	appt := &Appointment{
		ProviderID:  req.ProviderID,
		RequesterID: req.RequesterID,
		Start:       req.Start,
		End:         req.End,
		Status:      s.engine.InitialStatus(actor),
		Reason:      req.Reason,
		Notes:       req.Notes,
	}

	err = s.withProviderLock(ctx, req.ProviderID, func(lockCtx context.Context) error {
		slots, err := s.openSlots(lockCtx, sched, req.Start, uuid.Nil)
		if err != nil {
			return err
		}
		if !Covers(slots, appt.Interval()) {
			return unavailableReason(sched, appt.Interval())
		}

		if err := s.repo.InsertAppointment(lockCtx, appt); err != nil {
			if errors.Is(err, ErrConflict) {
				return ErrSlotUnavailable
			}
			return fmt.Errorf("insert appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, appt.ID, EventAppointmentCreated, map[string]any{
		"provider_id":  appt.ProviderID.String(),
		"requester_id": appt.RequesterID.String(),
		"start":        appt.Start,
		"end":          appt.End,
		"status":       appt.Status,
		"actor_id":     actor.ID.String(),
		"actor_role":   actor.Role,
	})
	s.notify(ctx, EventAppointmentCreated, appt, "", actor)

	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("provider_id", appt.ProviderID.String()).
		Str("status", string(appt.Status)).
		Msg("appointment booked")
	return appt, nil
}

// Transition moves an appointment to target on behalf of actor.
func (s *Service) Transition(ctx context.Context, actor Actor, id uuid.UUID, target Status) (updated *Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "appointment.Transition", trace.WithAttributes(
		attribute.String("appointment.id", id.String()),
		attribute.String("target", string(target)),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer func() {
		s.metrics.ObserveTransition(string(target), Outcome(err))
		finishSpan(span, err)
	}()

	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return s.applyTransition(ctx, actor, appt, target, EventAppointmentStatusChanged)
}

func (s *Service) applyTransition(ctx context.Context, actor Actor, appt *Appointment, target Status, eventType string) (*Appointment, error) {
	if err := s.engine.Check(appt, actor, target, s.now()); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, appt.ID, appt.Status, target)
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.logEvent(ctx, updated.ID, eventType, map[string]any{
		"from":       appt.Status,
		"to":         target,
		"actor_id":   actor.ID.String(),
		"actor_role": actor.Role,
	})
	s.notify(ctx, eventType, updated, appt.Status, actor)
	return updated, nil
}

// Reschedule replaces an appointment with one at a new window. The old
// appointment is cancelled and the new one created as a single unit; on any
// error the old appointment is left untouched.
func (s *Service) Reschedule(ctx context.Context, actor Actor, req RescheduleRequest) (created *Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "appointment.Reschedule", trace.WithAttributes(
		attribute.String("appointment.id", req.AppointmentID.String()),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer func() {
		s.metrics.ObserveReschedule(Outcome(err))
		finishSpan(span, err)
	}()

	if !req.Start.Before(req.End) {
		return nil, fmt.Errorf("%w: start must be before end", ErrInvalidRequest)
	}

	old, err := s.repo.GetAppointment(ctx, req.AppointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if err := s.engine.Check(old, actor, StatusCancelled, s.now()); err != nil {
		return nil, err
	}

	sched, err := s.repo.GetSchedule(ctx, old.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	oldID := old.ID
	next := &Appointment{
		ProviderID:      old.ProviderID,
		RequesterID:     old.RequesterID,
		Start:           req.Start,
		End:             req.End,
		Status:          old.Status,
		Reason:          old.Reason,
		Notes:           old.Notes,
		RescheduledFrom: &oldID,
	}

	err = s.withProviderLock(ctx, old.ProviderID, func(lockCtx context.Context) error {
		slots, err := s.openSlots(lockCtx, sched, req.Start, old.ID)
		if err != nil {
			return err
		}
		if !Covers(slots, next.Interval()) {
			return unavailableReason(sched, next.Interval())
		}

		created, err = s.repo.Reschedule(lockCtx, old.ID, old.Status, next)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrConflict):
			return ErrSlotUnavailable
		case errors.Is(err, ErrStatusChanged):
			return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		default:
			return fmt.Errorf("reschedule appointment: %w", err)
		}
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, created.ID, EventAppointmentRescheduled, map[string]any{
		"rescheduled_from": old.ID.String(),
		"old_start":        old.Start,
		"old_end":          old.End,
		"start":            created.Start,
		"end":              created.End,
		"actor_id":         actor.ID.String(),
		"actor_role":       actor.Role,
	})

	cancelled := *old
	cancelled.Status = StatusCancelled
	s.notify(ctx, EventAppointmentStatusChanged, &cancelled, old.Status, actor)
	s.notify(ctx, EventAppointmentRescheduled, created, "", actor)
	return created, nil
}

// GetAppointment returns an appointment visible to actor.
func (s *Service) GetAppointment(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if !canView(actor, appt) {
		return nil, fmt.Errorf("%w: appointment %s belongs to someone else", ErrForbidden, id)
	}
	return appt, nil
}

// ListAppointments scopes filter to what actor may see. Patients only see
// their own requests and doctors only their own calendar.
func (s *Service) ListAppointments(ctx context.Context, actor Actor, filter ListFilter) (*AppointmentPage, error) {
	switch actor.Role {
	case RolePatient:
		if filter.RequesterID != nil && *filter.RequesterID != actor.ID {
			return nil, fmt.Errorf("%w: patients may only list their own appointments", ErrForbidden)
		}
		id := actor.ID
		filter.RequesterID = &id
	case RoleDoctor:
		if filter.ProviderID != nil && *filter.ProviderID != actor.ID {
			return nil, fmt.Errorf("%w: doctors may only list their own calendar", ErrForbidden)
		}
		id := actor.ID
		filter.ProviderID = &id
	}

	page, err := s.repo.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return page, nil
}

func (s *Service) GetSchedule(ctx context.Context, providerID uuid.UUID) (*ProviderSchedule, error) {
	sched, err := s.repo.GetSchedule(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return sched, nil
}

// PutSchedule replaces a provider's weekly template and blackouts. Existing
// appointments are not re-validated against the new template.
func (s *Service) PutSchedule(ctx context.Context, actor Actor, sched *ProviderSchedule) (*ProviderSchedule, error) {
	switch actor.Role {
	case RoleAdmin, RoleSecretary:
	case RoleDoctor:
		if actor.ID != sched.ProviderID {
			return nil, fmt.Errorf("%w: doctors may only edit their own schedule", ErrForbidden)
		}
	default:
		return nil, fmt.Errorf("%w: role %s may not edit schedules", ErrForbidden, actor.Role)
	}

	if sched.Granularity == 0 {
		sched.Granularity = s.cfg.DefaultGranularity
	}
	if sched.Timezone == "" {
		sched.Timezone = "UTC"
	}
	if err := sched.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.PutSchedule(ctx, sched); err != nil {
		return nil, fmt.Errorf("put schedule: %w", err)
	}
	s.log.Info().
		Str("provider_id", sched.ProviderID.String()).
		Int("windows", len(sched.Windows)).
		Int("blackouts", len(sched.Blackouts)).
		Msg("schedule updated")
	return s.repo.GetSchedule(ctx, sched.ProviderID)
}

func (s *Service) withProviderLock(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	err := s.locker.WithProviderLock(ctx, providerID, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return fmt.Errorf("%w: %v", ErrProviderBusy, err)
	}
	return err
}

func (s *Service) notify(ctx context.Context, eventType string, appt *Appointment, from Status, actor Actor) {
	s.notifier.Notify(ctx, Notification{
		Type:            eventType,
		AppointmentID:   appt.ID,
		ProviderID:      appt.ProviderID,
		RequesterID:     appt.RequesterID,
		From:            from,
		To:              appt.Status,
		Start:           appt.Start,
		End:             appt.End,
		RescheduledFrom: appt.RescheduledFrom,
		ActorID:         actor.ID,
		ActorRole:       actor.Role,
		OccurredAt:      s.now(),
	})
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().
			Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}

func canView(actor Actor, appt *Appointment) bool {
	switch actor.Role {
	case RoleAdmin, RoleSecretary, RoleNurse:
		return true
	case RoleDoctor:
		return actor.ID == appt.ProviderID
	case RolePatient:
		return actor.ID == appt.RequesterID
	}
	return false
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
