package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp   ComponentStatus = "up"
	ComponentStatusDown ComponentStatus = "down"
)

// Health is the /health response body.
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
}

// handleHealth checks the database and storage backends. Any component down
// makes the whole service unhealthy (503).
func (cfg Config) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := Health{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   cfg.Version,
		Components: map[string]ComponentHealth{
			"database": checkComponent(ctx, cfg.DB.PingContext, "database reachable"),
			"storage":  checkComponent(ctx, cfg.Storage.Check, "storage writable"),
		},
	}

	statusCode := http.StatusOK
	for _, c := range health.Components {
		if c.Status == ComponentStatusDown {
			health.Status = HealthStatusUnhealthy
			statusCode = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, statusCode, health)
}

// handleReady provides a simple readiness probe for load balancers.
func (cfg Config) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := cfg.DB.PingContext(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "database unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleLive reports that the process is serving.
func handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func checkComponent(ctx context.Context, check func(context.Context) error, okMessage string) ComponentHealth {
	start := time.Now()
	err := check(ctx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return ComponentHealth{Status: ComponentStatusDown, Message: err.Error(), LatencyMs: latency}
	}
	return ComponentHealth{Status: ComponentStatusUp, Message: okMessage, LatencyMs: latency}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
