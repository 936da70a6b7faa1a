package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/insurego/claims-gateway/internal/auth"
	"github.com/insurego/claims-gateway/internal/claim"
	"github.com/insurego/claims-gateway/internal/policy"
	"github.com/insurego/claims-gateway/internal/visit"
)

type RouterConfig struct {
	Claims    *claim.Coordinator
	Policies  *policy.Service
	Visits    *visit.Service
	Redis     *redis.Client
	Upstreams map[string]string // service name -> base URL, for readiness pings
	JWTSecret string
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints stay outside auth
	health := NewHealthHandler(cfg.Redis, cfg.Upstreams, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.With(RequireRole(auth.RolePatient)).Get("/policies", listPoliciesHandler(cfg.Policies))
		r.With(RequireRole(auth.RolePatient)).Put("/policies/{policyNumber}/renew", renewPolicyHandler(cfg.Policies))
		r.With(RequireRole(auth.RoleDoctor)).Post("/policies/{policyNumber}/verify", verifyPolicyHandler(cfg.Claims))

		r.Get("/claims", listClaimsHandler(cfg.Claims))
		r.With(RequireRole(auth.RoleDoctor, auth.RolePatient)).Post("/claims", createClaimHandler(cfg.Claims))
		r.With(RequireRole(auth.RoleProvider)).Put("/claims/{id}/review", reviewClaimHandler(cfg.Claims))
		r.With(RequireRole(auth.RoleProvider)).Get("/claims/metrics", claimMetricsHandler(cfg.Claims))
		r.With(RequireRole(auth.RoleProvider)).Get("/claims/highvalue", highValueClaimsHandler(cfg.Claims))

		r.With(RequireRole(auth.RolePatient, auth.RoleDoctor)).Get("/appointments", listAppointmentsHandler(cfg.Visits))
		r.With(RequireRole(auth.RolePatient)).Post("/appointments", bookAppointmentHandler(cfg.Visits))
		r.With(RequireRole(auth.RolePatient)).Put("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Visits))
		r.With(RequireRole(auth.RolePatient, auth.RoleDoctor)).Put("/appointments/{id}/status", appointmentStatusHandler(cfg.Visits))
	})

	return r
}
