package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/citypulse/citypulse/internal/middleware"
)

// readyCheckTimeout bounds dependency pings during the readiness probe.
const readyCheckTimeout = 5 * time.Second

// HealthChecker is implemented by dependencies the readiness probe pings.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandlers serves the liveness and readiness probes. Either checker
// may be nil when the corresponding backend is not configured; the check
// then reports ok, since the in-process fallbacks carry the load.
type HealthHandlers struct {
	dbChecker      HealthChecker
	redisChecker   HealthChecker
	metricsEnabled bool
}

// HealthHandlersConfig configures the probe handlers.
type HealthHandlersConfig struct {
	DBChecker      HealthChecker
	RedisChecker   HealthChecker
	MetricsEnabled bool
}

// NewHealthHandlers creates the probe handlers.
func NewHealthHandlers(config HealthHandlersConfig) *HealthHandlers {
	return &HealthHandlers{
		dbChecker:      config.DBChecker,
		redisChecker:   config.RedisChecker,
		metricsEnabled: config.MetricsEnabled,
	}
}

// HealthResponse is the probe response body.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health. Liveness only: responding at all means the
// process is alive.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	writeProbe(w, http.StatusOK, "healthy", map[string]string{"runtime": "ok"})
}

// Ready handles GET /ready. Pings the configured dependencies and returns
// 503 when any fails, so the load balancer stops routing here.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
	defer cancel()

	checks := map[string]string{"metrics": "disabled"}
	if h.metricsEnabled {
		checks["metrics"] = "ok"
	}
	healthy := true
	healthy = h.check(ctx, checks, "database", h.dbChecker) && healthy
	healthy = h.check(ctx, checks, "redis", h.redisChecker) && healthy

	status, statusCode := "healthy", http.StatusOK
	if !healthy {
		status, statusCode = "unhealthy", http.StatusServiceUnavailable
	}
	writeProbe(w, statusCode, status, checks)
}

// check pings one dependency. A nil checker means the backend is not
// configured and passes.
func (h *HealthHandlers) check(ctx context.Context, checks map[string]string, name string, checker HealthChecker) bool {
	if checker == nil {
		checks[name] = "ok"
		return true
	}
	if err := checker.HealthCheck(ctx); err != nil {
		checks[name] = "error"
		slog.WarnContext(ctx, "dependency health check failed", "dependency", name, "error", err)
		return false
	}
	checks[name] = "ok"
	return true
}

func writeProbe(w http.ResponseWriter, statusCode int, status string, checks map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		slog.Error("failed to encode probe response", "error", err)
	}
}
