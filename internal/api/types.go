package api

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

type BookAppointmentRequest struct {
	ProviderID  string    `json:"provider_id"`
	RequesterID string    `json:"requester_id,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Reason      string    `json:"reason"`
	Notes       *string   `json:"notes,omitempty"`
}

type TransitionRequest struct {
	Status string `json:"status"`
}

type RescheduleRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	ProviderID      uuid.UUID  `json:"provider_id"`
	RequesterID     uuid.UUID  `json:"requester_id"`
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	Status          string     `json:"status"`
	Reason          string     `json:"reason"`
	Notes           *string    `json:"notes,omitempty"`
	RescheduledFrom *uuid.UUID `json:"rescheduled_from,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type AppointmentListResponse struct {
	Items   []AppointmentResponse `json:"items"`
	Total   int                   `json:"total"`
	Page    int                   `json:"page"`
	PerPage int                   `json:"per_page"`
}

type SlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type AvailabilityResponse struct {
	ProviderID uuid.UUID      `json:"provider_id"`
	Date       string         `json:"date"`
	Slots      []SlotResponse `json:"slots"`
}

// WindowDTO is one weekly working block, e.g. {"weekday":"monday","start":"09:00","end":"12:00"}.
type WindowDTO struct {
	Weekday string `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type BlackoutDTO struct {
	ID     *uuid.UUID `json:"id,omitempty"`
	Start  time.Time  `json:"start"`
	End    time.Time  `json:"end"`
	Reason string     `json:"reason,omitempty"`
}

type ScheduleRequest struct {
	Timezone           string        `json:"timezone"`
	GranularityMinutes int           `json:"granularity_minutes"`
	Windows            []WindowDTO   `json:"windows"`
	Blackouts          []BlackoutDTO `json:"blackouts"`
}

type ScheduleResponse struct {
	ProviderID         uuid.UUID     `json:"provider_id"`
	Timezone           string        `json:"timezone"`
	GranularityMinutes int           `json:"granularity_minutes"`
	Windows            []WindowDTO   `json:"windows"`
	Blackouts          []BlackoutDTO `json:"blackouts"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		ProviderID:      a.ProviderID,
		RequesterID:     a.RequesterID,
		Start:           a.Start,
		End:             a.End,
		Status:          string(a.Status),
		Reason:          a.Reason,
		Notes:           a.Notes,
		RescheduledFrom: a.RescheduledFrom,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func toScheduleResponse(s *appointment.ProviderSchedule) ScheduleResponse {
	resp := ScheduleResponse{
		ProviderID:         s.ProviderID,
		Timezone:           s.Timezone,
		GranularityMinutes: int(s.Granularity / time.Minute),
		Windows:            make([]WindowDTO, 0, len(s.Windows)),
		Blackouts:          make([]BlackoutDTO, 0, len(s.Blackouts)),
		UpdatedAt:          s.UpdatedAt,
	}
	for _, w := range s.Windows {
		resp.Windows = append(resp.Windows, WindowDTO{
			Weekday: strings.ToLower(w.Weekday.String()),
			Start:   appointment.FormatClock(w.StartMinute),
			End:     appointment.FormatClock(w.EndMinute),
		})
	}
	for _, b := range s.Blackouts {
		id := b.ID
		resp.Blackouts = append(resp.Blackouts, BlackoutDTO{ID: &id, Start: b.Start, End: b.End, Reason: b.Reason})
	}
	return resp
}

func (req ScheduleRequest) toSchedule(providerID uuid.UUID) (*appointment.ProviderSchedule, error) {
	s := &appointment.ProviderSchedule{
		ProviderID:  providerID,
		Timezone:    req.Timezone,
		Granularity: time.Duration(req.GranularityMinutes) * time.Minute,
	}
	for _, w := range req.Windows {
		day, err := appointment.ParseWeekday(w.Weekday)
		if err != nil {
			return nil, err
		}
		start, err := appointment.ParseClock(w.Start)
		if err != nil {
			return nil, err
		}
		end, err := appointment.ParseClock(w.End)
		if err != nil {
			return nil, err
		}
		s.Windows = append(s.Windows, appointment.WeeklyWindow{Weekday: day, StartMinute: start, EndMinute: end})
	}
	for _, b := range req.Blackouts {
		bo := appointment.Blackout{Start: b.Start, End: b.End, Reason: b.Reason}
		if b.ID != nil {
			bo.ID = *b.ID
		}
		s.Blackouts = append(s.Blackouts, bo)
	}
	return s, nil
}
