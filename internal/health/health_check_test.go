package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/migratehq/flowgate/internal/orchestrator"
	"github.com/migratehq/flowgate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLivenessHandler(t *testing.T) {
	checker := NewHealthChecker(orchestrator.NewLocal(zap.NewNop()), store.NewMemoryOwnershipCache(), zap.NewNop())

	rec := httptest.NewRecorder()
	checker.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "alive", status.Status)
}

func TestReadinessHandler_AllHealthy(t *testing.T) {
	checker := NewHealthChecker(orchestrator.NewLocal(zap.NewNop()), store.NewMemoryOwnershipCache(), zap.NewNop())

	rec := httptest.NewRecorder()
	checker.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ready", status.Status)
	assert.Equal(t, "healthy", status.Checks["flow_store"])
	assert.Equal(t, "healthy", status.Checks["ownership_cache"])
}
