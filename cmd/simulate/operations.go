package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/identity"
)

type slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	c := s.config

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < c.BookingRatio:
				s.doBooking(ctx, rng)
			case r < c.BookingRatio+c.ConfirmRatio:
				s.doTransition(ctx, rng, appointment.StatusScheduled, &s.metrics.Confirm)
			case r < c.BookingRatio+c.ConfirmRatio+c.CancelRatio:
				s.doTransition(ctx, rng, appointment.StatusCancelled, &s.metrics.Cancel)
			case r < c.BookingRatio+c.ConfirmRatio+c.CancelRatio+c.RescheduleRatio:
				s.doReschedule(ctx, rng)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doReadByID(ctx, rng)
				case 1:
					s.doListByPatient(ctx, rng)
				case 2:
					s.doAvailability(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	providerID := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
	patient := appointment.Actor{ID: s.pool.Patients[rng.Intn(len(s.pool.Patients))], Role: appointment.RolePatient}

	target, ok := s.pickSlot(ctx, rng, patient, providerID)
	if !ok {
		return
	}

	start := time.Now()
	status, body, err := s.call(ctx, patient, http.MethodPost, "/appointments", map[string]any{
		"provider_id": providerID.String(),
		"start":       target.Start,
		"end":         target.End,
		"reason":      "simulated visit",
	})
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	if success {
		var resp struct {
			ID uuid.UUID `json:"id"`
		}
		if json.Unmarshal(body, &resp) == nil && resp.ID != uuid.Nil {
			s.pool.AddAppointment(bookedAppointment{ID: resp.ID, ProviderID: providerID, RequesterID: patient.ID})
		}
	}
	s.metrics.Booking.Record(latency, success, isConflict(status))
}

func (s *Simulator) doTransition(ctx context.Context, rng *rand.Rand, target appointment.Status, om *OperationMetrics) {
	appt, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	actor := appointment.Actor{ID: appt.ProviderID, Role: appointment.RoleDoctor}
	if target == appointment.StatusCancelled && rng.Intn(2) == 0 {
		actor = appointment.Actor{ID: appt.RequesterID, Role: appointment.RolePatient}
	}

	start := time.Now()
	status, _, err := s.call(ctx, actor, http.MethodPost, fmt.Sprintf("/appointments/%s/transitions", appt.ID),
		map[string]string{"status": string(target)})
	om.Record(time.Since(start), err == nil && status == http.StatusOK, isConflict(status))
}

func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	patient := appointment.Actor{ID: appt.RequesterID, Role: appointment.RolePatient}

	target, ok := s.pickSlot(ctx, rng, patient, appt.ProviderID)
	if !ok {
		return
	}

	start := time.Now()
	status, body, err := s.call(ctx, patient, http.MethodPost, fmt.Sprintf("/appointments/%s/reschedule", appt.ID), target)
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	if success {
		var resp struct {
			ID uuid.UUID `json:"id"`
		}
		if json.Unmarshal(body, &resp) == nil && resp.ID != uuid.Nil {
			s.pool.AddAppointment(bookedAppointment{ID: resp.ID, ProviderID: appt.ProviderID, RequesterID: appt.RequesterID})
		}
	}
	s.metrics.Reschedule.Record(latency, success, isConflict(status))
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	admin := appointment.Actor{ID: uuid.New(), Role: appointment.RoleAdmin}

	start := time.Now()
	status, _, err := s.call(ctx, admin, http.MethodGet, "/appointments/"+appt.ID.String(), nil)
	s.metrics.ReadByID.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	patient := appointment.Actor{ID: s.pool.Patients[rng.Intn(len(s.pool.Patients))], Role: appointment.RolePatient}

	start := time.Now()
	status, _, err := s.call(ctx, patient, http.MethodGet, "/appointments?per_page=20&page=1", nil)
	s.metrics.ListByPatient.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	providerID := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
	patient := appointment.Actor{ID: s.pool.Patients[rng.Intn(len(s.pool.Patients))], Role: appointment.RolePatient}

	start := time.Now()
	_, err := s.availability(ctx, patient, providerID, s.randomDay(rng))
	s.metrics.Availability.Record(time.Since(start), err == nil, false)
}

// pickSlot fetches availability for a random upcoming day and picks one slot.
func (s *Simulator) pickSlot(ctx context.Context, rng *rand.Rand, actor appointment.Actor, providerID uuid.UUID) (slot, bool) {
	slots, err := s.availability(ctx, actor, providerID, s.randomDay(rng))
	if err != nil || len(slots) == 0 {
		return slot{}, false
	}
	return slots[rng.Intn(len(slots))], true
}

func (s *Simulator) availability(ctx context.Context, actor appointment.Actor, providerID uuid.UUID, day time.Time) ([]slot, error) {
	path := fmt.Sprintf("/providers/%s/availability?date=%s", providerID, day.Format(time.DateOnly))
	status, body, err := s.call(ctx, actor, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("availability returned %d", status)
	}
	var resp struct {
		Slots []slot `json:"slots"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return resp.Slots, nil
}

func (s *Simulator) randomDay(rng *rand.Rand) time.Time {
	return time.Now().UTC().AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead))
}

func (s *Simulator) call(ctx context.Context, actor appointment.Actor, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := s.authorize(req, actor); err != nil {
		return 0, nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

func (s *Simulator) authorize(req *http.Request, actor appointment.Actor) error {
	if s.auth == nil {
		req.Header.Set(identity.HeaderActorID, actor.ID.String())
		req.Header.Set(identity.HeaderActorRole, string(actor.Role))
		return nil
	}

	if token, ok := s.tokens.Load(actor); ok {
		req.Header.Set("Authorization", "Bearer "+token.(string))
		return nil
	}
	token, err := s.auth.Issue(actor, s.config.Duration+time.Hour)
	if err != nil {
		return err
	}
	s.tokens.Store(actor, token)
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// isConflict covers both lost races (409) and windows that closed between the
// availability read and the booking (422).
func isConflict(status int) bool {
	// 503 is provider lock contention.
	return status == http.StatusConflict || status == http.StatusUnprocessableEntity || status == http.StatusServiceUnavailable
}
