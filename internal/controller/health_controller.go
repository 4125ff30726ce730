package controller

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

const readinessTimeout = 2 * time.Second

// HealthCheck probes one dependency for readiness.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// ReadinessResponse lists the outcome of every check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type HealthController struct {
	checks []HealthCheck
}

func NewHealthController(checks ...HealthCheck) *HealthController {
	return &HealthController{checks: checks}
}

func (h *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthController) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Readiness runs every check in parallel. One failing dependency makes the
// instance not ready, since every delivery operation needs all of them.
func (h *HealthController) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	resp := ReadinessResponse{Status: "ready", Checks: make(map[string]string, len(h.checks))}
	var mu sync.Mutex
	var wg conc.WaitGroup
	for _, c := range h.checks {
		wg.Go(func() {
			status := "ok"
			if err := c.Ping(ctx); err != nil {
				log.Warn().Err(err).Str("check", c.Name).Msg("readiness check failed")
				status = "unavailable"
			}
			mu.Lock()
			defer mu.Unlock()
			resp.Checks[c.Name] = status
			if status != "ok" {
				resp.Status = "not ready"
			}
		})
	}
	wg.Wait()

	code := http.StatusOK
	if resp.Status != "ready" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}
