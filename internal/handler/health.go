package handler

import (
	"context"
	"net/http"
	"time"
)

// readinessTimeout bounds all dependency pings of one readiness probe.
const readinessTimeout = 3 * time.Second

// HealthChecker is a dependency that can be pinged.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type namedChecker struct {
	name    string
	checker HealthChecker
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	deps []namedChecker
}

// NewHealthHandler creates a HealthHandler probing PostgreSQL and Redis.
// A nil checker is reported as "not configured" and does not fail readiness.
func NewHealthHandler(db, redis HealthChecker) *HealthHandler {
	return &HealthHandler{deps: []namedChecker{
		{name: "postgres", checker: db},
		{name: "redis", checker: redis},
	}}
}

// CheckResult is the outcome of one dependency ping.
type CheckResult struct {
	Status    string  `json:"status"`
	Error     string  `json:"error,omitempty"`
	LatencyMS float64 `json:"latency_ms,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Healthz reports that the process is up. No dependencies are checked.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz pings every dependency and returns 503 if any ping fails.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	response := HealthResponse{Status: "ok", Checks: make(map[string]CheckResult, len(h.deps))}
	statusCode := http.StatusOK

	for _, dep := range h.deps {
		if dep.checker == nil {
			response.Checks[dep.name] = CheckResult{Status: "not configured"}
			continue
		}

		start := time.Now()
		err := dep.checker.Ping(ctx)
		result := CheckResult{
			Status:    "ok",
			LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
		}
		if err != nil {
			result.Status = "error"
			result.Error = err.Error()
			response.Status = "unhealthy"
			statusCode = http.StatusServiceUnavailable
		}
		response.Checks[dep.name] = result
	}

	writeJSON(w, statusCode, response)
}
