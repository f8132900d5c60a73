package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/migratehq/flowgate/internal/store"
	"go.uber.org/zap"
)

// HealthChecker provides health check endpoints
type HealthChecker struct {
	flowStore store.FlowStore
	ownership store.OwnershipCache
	logger    *zap.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(flowStore store.FlowStore, ownership store.OwnershipCache, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		flowStore: flowStore,
		ownership: ownership,
		logger:    logger,
	}
}

// LivenessHandler handles liveness probe requests
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

// ReadinessHandler handles readiness probe requests
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if err := h.flowStore.Ping(ctx); err != nil {
		h.logger.Error("Flow store health check failed", zap.Error(err))
		checks["flow_store"] = "unhealthy: " + err.Error()
		allHealthy = false
	} else {
		checks["flow_store"] = "healthy"
	}

	if err := h.ownership.Ping(ctx); err != nil {
		h.logger.Error("Ownership cache health check failed", zap.Error(err))
		checks["ownership_cache"] = "unhealthy: " + err.Error()
		allHealthy = false
	} else {
		checks["ownership_cache"] = "healthy"
	}

	status := HealthStatus{
		Timestamp: time.Now().Unix(),
		Checks:    checks,
	}
	code := http.StatusOK
	if allHealthy {
		status.Status = "ready"
	} else {
		status.Status = "not_ready"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}
