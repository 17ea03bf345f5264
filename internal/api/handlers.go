package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/identity"
)

func availabilityHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := uuidParam(w, r, "providerID")
		if !ok {
			return
		}

		rawDate := r.URL.Query().Get("date")
		date, err := time.Parse(time.DateOnly, rawDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slots, err := svc.Availability(r.Context(), providerID, date)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		resp := AvailabilityResponse{
			ProviderID: providerID,
			Date:       rawDate,
			Slots:      make([]SlotResponse, 0, len(slots)),
		}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, SlotResponse{Start: s.Start, End: s.End})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getScheduleHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := uuidParam(w, r, "providerID")
		if !ok {
			return
		}

		sched, err := svc.GetSchedule(r.Context(), providerID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toScheduleResponse(sched))
	}
}

func putScheduleHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := uuidParam(w, r, "providerID")
		if !ok {
			return
		}

		var req ScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		sched, err := req.toSchedule(providerID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_schedule", err.Error())
			return
		}

		saved, err := svc.PutSchedule(r.Context(), actorFrom(r), sched)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toScheduleResponse(saved))
	}
}

func bookAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}

		var requesterID uuid.UUID
		if req.RequesterID != "" {
			requesterID, err = uuid.Parse(req.RequesterID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_requester_id", "requester_id must be a valid UUID")
				return
			}
		}

		appt, err := svc.Book(r.Context(), actorFrom(r), appointment.BookRequest{
			ProviderID:  providerID,
			RequesterID: requesterID,
			Start:       req.Start,
			End:         req.End,
			Reason:      req.Reason,
			Notes:       req.Notes,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseListFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}

		page, err := svc.ListAppointments(r.Context(), actorFrom(r), filter)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		resp := AppointmentListResponse{
			Items:   make([]AppointmentResponse, 0, len(page.Items)),
			Total:   page.Total,
			Page:    page.Page,
			PerPage: page.PerPage,
		}
		for i := range page.Items {
			resp.Items = append(resp.Items, toAppointmentResponse(&page.Items[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), actorFrom(r), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func transitionHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		target, err := appointment.ParseStatus(req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
			return
		}

		appt, err := svc.Transition(r.Context(), actorFrom(r), id, target)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Reschedule(r.Context(), actorFrom(r), appointment.RescheduleRequest{
			AppointmentID: id,
			Start:         req.Start,
			End:           req.End,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func parseListFilter(r *http.Request) (appointment.ListFilter, error) {
	q := r.URL.Query()
	var f appointment.ListFilter

	for key, dst := range map[string]**uuid.UUID{"provider_id": &f.ProviderID, "requester_id": &f.RequesterID} {
		if v := q.Get(key); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return f, errors.New(key + " must be a valid UUID")
			}
			*dst = &id
		}
	}

	if v := q.Get("status"); v != "" {
		st, err := appointment.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}

	for key, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		if v := q.Get(key); v != "" {
			t, err := parseTimeParam(v)
			if err != nil {
				return f, errors.New(key + " must be RFC3339 or YYYY-MM-DD")
			}
			*dst = &t
		}
	}

	for key, dst := range map[string]*int{"page": &f.Page, "per_page": &f.PerPage} {
		if v := q.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return f, errors.New(key + " must be a non-negative integer")
			}
			*dst = n
		}
	}
	return f, nil
}

func parseTimeParam(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// actorFrom is only called behind identity.Middleware.
func actorFrom(r *http.Request) appointment.Actor {
	actor, _ := identity.ActorFromContext(r.Context())
	return actor
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		writeError(w, status, code, "an unexpected error occurred")
		return
	}
	writeError(w, status, code, err.Error())
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		return http.StatusNotFound, "appointment_not_found"
	case errors.Is(err, appointment.ErrProviderNotFound):
		return http.StatusNotFound, "provider_not_found"
	case errors.Is(err, appointment.ErrOutsideAvailability):
		return http.StatusUnprocessableEntity, "outside_availability"
	case errors.Is(err, appointment.ErrSlotUnavailable):
		return http.StatusConflict, "slot_unavailable"
	case errors.Is(err, appointment.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, appointment.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, appointment.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, appointment.ErrProviderBusy):
		return http.StatusServiceUnavailable, "provider_busy"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
