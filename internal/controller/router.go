package controller

import (
	"time"

	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/cassiomorais/edi-gateway/internal/infrastructure/config"
	"github.com/cassiomorais/edi-gateway/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/edi-gateway/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	HealthChecks     []HealthCheck
	Enqueuer         MessageEnqueuer
	Peeker           Peeker
	Dequeuer         Dequeuer
	IdempotencyStore customMW.IdempotencyStore
	IdempotencyTTL   time.Duration
	Metrics          *observability.Metrics
	CORSConfig       config.CORSConfig
	JWTSecret        string
	// RateLimit is requests per minute per actor; 0 disables limiting.
	RateLimit int
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{MessageIDHeader, "X-Idempotency-Replayed"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.HealthChecks...)
	deliveryH := NewDeliveryController(deps.Peeker, deps.Dequeuer)
	messageH := NewMessageController(deps.Enqueuer)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(customMW.RequireAuth(deps.JWTSecret))
		if deps.RateLimit > 0 {
			r.Use(customMW.RateLimit(deps.RateLimit))
		}

		// Actor pull protocol.
		r.Get("/peek", deliveryH.PeekAll)
		r.Get("/peek/{category}", deliveryH.Peek)
		r.Delete("/dequeue/{messageId}", deliveryH.Dequeue)

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(customMW.RequireRole(actor.RoleDataHubAdministrator))
			r.With(customMW.Idempotency(deps.IdempotencyStore, deps.IdempotencyTTL)).
				Post("/outgoing-messages", messageH.Enqueue)
		})
	})

	return r
}
