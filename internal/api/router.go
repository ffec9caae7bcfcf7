package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/bedimand/atendimento-acessivel/internal/scheduling"
)

type RouterConfig struct {
	Engine   *scheduling.Engine
	Postgres Pinger
	Redis    Pinger
	Metrics  http.Handler
	Logger   *zap.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	h := &handlers{engine: cfg.Engine, logger: logger}

	r.Get("/availability", h.availability)

	r.Route("/tools", func(r chi.Router) {
		r.Post("/list_available_slots", h.listAvailableSlots)
		r.Post("/suggest_alternative_slot", h.suggestAlternativeSlot)
		r.Post("/plan_appointment", h.planAppointment)
		r.Post("/book_appointment", h.bookAppointment)
		r.Post("/cancel_booking", h.cancelBooking)
		r.Post("/optimize_schedule", h.optimizeSchedule)
		r.Post("/check_capacity", h.checkCapacity)
		r.Post("/doctor_status", h.doctorStatus)
		r.Post("/resource_status", h.resourceStatus)
		r.Post("/list_bookings", h.listBookings)
		r.Post("/patient_requirements", h.patientRequirements)
		r.Post("/triage_score", h.triageScore)
	})

	return r
}
