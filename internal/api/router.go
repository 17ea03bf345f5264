package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/identity"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
)

// AppointmentService is the scheduling core as seen by the HTTP layer.
type AppointmentService interface {
	Availability(ctx context.Context, providerID uuid.UUID, date time.Time) ([]appointment.Slot, error)
	GetSchedule(ctx context.Context, providerID uuid.UUID) (*appointment.ProviderSchedule, error)
	PutSchedule(ctx context.Context, actor appointment.Actor, sched *appointment.ProviderSchedule) (*appointment.ProviderSchedule, error)
	Book(ctx context.Context, actor appointment.Actor, req appointment.BookRequest) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, actor appointment.Actor, id uuid.UUID) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context, actor appointment.Actor, filter appointment.ListFilter) (*appointment.AppointmentPage, error)
	Transition(ctx context.Context, actor appointment.Actor, id uuid.UUID, target appointment.Status) (*appointment.Appointment, error)
	Reschedule(ctx context.Context, actor appointment.Actor, req appointment.RescheduleRequest) (*appointment.Appointment, error)
}

type RouterConfig struct {
	Service  AppointmentService
	Auth     identity.Authenticator
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer // nil disables /metrics
	Checks   []ReadyCheck
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(AccessLogMiddleware(cfg.Logger, cfg.Metrics))
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(cfg.Auth, func(w http.ResponseWriter, err error) {
			writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		}))

		// Provider endpoints
		r.Get("/providers/{providerID}/availability", availabilityHandler(cfg.Service))
		r.Get("/providers/{providerID}/schedule", getScheduleHandler(cfg.Service))
		r.Put("/providers/{providerID}/schedule", putScheduleHandler(cfg.Service))

		// Appointment endpoints
		r.Post("/appointments", bookAppointmentHandler(cfg.Service))
		r.Get("/appointments", listAppointmentsHandler(cfg.Service))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/transitions", transitionHandler(cfg.Service))
		r.Post("/appointments/{id}/reschedule", rescheduleHandler(cfg.Service))
	})

	return otelhttp.NewHandler(r, "clinic-scheduling",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics" && r.URL.Path != "/health/live"
		}),
	)
}
