package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/notify"
)

type RouterConfig struct {
	Service       *appointment.Service
	Notifications *notify.Service
	Verifier      *auth.Verifier
	PgPool        *pgxpool.Pool
	Redis         *redis.Client
	InMemory      bool
	Env           string
	Version       string
	Logger        zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	log := cfg.Logger
	svc := cfg.Service

	// Apply middleware
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(AuthMiddleware(cfg.Verifier))

	// Health endpoints
	health := NewHealthHandler(cfg)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Public booking surface
	r.Get("/available-slots", availableSlotsHandler(svc, log))
	r.Post("/appointments", createAppointmentHandler(svc, log))

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth)

		r.Post("/appointments/create-authenticated", createAuthenticatedAppointmentHandler(svc, log))
		r.Get("/appointments", listAppointmentsHandler(svc, log))
		r.Get("/appointments/my-calendar", myCalendarHandler(svc, log))

		r.Route("/appointments/{id}", func(r chi.Router) {
			r.Get("/", getAppointmentHandler(svc, log))
			r.Patch("/", updateAppointmentHandler(svc, log))
			r.With(RequireRole(auth.RoleAdmin)).Delete("/", deleteAppointmentHandler(svc, log))
			r.Post("/cancel", transitionHandler(svc, log, appointment.StatusCancelled, "Cita cancelada exitosamente"))
			r.Post("/confirm", transitionHandler(svc, log, appointment.StatusConfirmed, "Cita confirmada exitosamente"))
			r.Post("/complete", transitionHandler(svc, log, appointment.StatusCompleted, "Cita completada exitosamente"))
			r.Patch("/change-status", changeStatusHandler(svc, log))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", listNotificationsHandler(cfg.Notifications, log, false))
			r.Get("/unread", listNotificationsHandler(cfg.Notifications, log, true))
			r.Get("/unread-count", unreadCountHandler(cfg.Notifications, log))
			r.Post("/mark-all-read", markAllReadHandler(cfg.Notifications, log))
			r.Post("/{id}/mark-read", markReadHandler(cfg.Notifications, log))
			r.Delete("/{id}", deleteNotificationHandler(cfg.Notifications, log))
		})
	})

	// Medical staff endpoints
	r.Group(func(r chi.Router) {
		r.Use(RequireRole(auth.RoleDoctor, auth.RoleAssistant))

		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", listSchedulesHandler(svc, log))
			r.Post("/", createScheduleHandler(svc, log))
			r.Get("/by_doctor/{doctorID}", schedulesByDoctorHandler(svc, log))
			r.Get("/{id}", getScheduleHandler(svc, log))
			r.Patch("/{id}", updateScheduleHandler(svc, log))
			r.Delete("/{id}", deleteScheduleHandler(svc, log))
		})

		r.Route("/blocked-slots", func(r chi.Router) {
			r.Get("/", listBlocksHandler(svc, log))
			r.Post("/", createBlockHandler(svc, log))
			r.Get("/{id}", getBlockHandler(svc, log))
			r.Delete("/{id}", deleteBlockHandler(svc, log))
		})
	})

	return r
}
