package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifiers(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		isolation bool
		quota     bool
		delegate  bool
	}{
		{"missing context", MissingTenantContext("engagement_id"), true, false, false},
		{"inactive tenant", TenantInactive("acme"), true, false, false},
		{"ownership mismatch", OwnershipMismatch("acme", "flow-1"), true, false, false},
		{"admin required", AdminRequired("user-1"), true, false, false},
		{"flow not found", FlowNotFound("flow-1"), true, false, false},
		{"quota exceeded", QuotaExceeded("acme", "concurrent_flows", 5, 5), false, true, false},
		{"delegate failed", DelegateFailed("create_flow", assert.AnError), false, false, true},
		{"store failed", StoreFailed("quota load", assert.AnError), false, false, false},
		{"plain error", stderrors.New("boom"), false, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.isolation, IsIsolation(tc.err))
			assert.Equal(t, tc.quota, IsQuotaExceeded(tc.err))
			assert.Equal(t, tc.delegate, IsDelegate(tc.err))
		})
	}
}

func TestGetCode_UnwrapsWrappedErrors(t *testing.T) {
	inner := QuotaExceeded("acme", "daily_flows", 50, 50)
	wrapped := fmt.Errorf("admission failed: %w", inner)

	assert.Equal(t, ErrCodeQuotaExceeded, GetCode(wrapped))
	assert.True(t, IsQuotaExceeded(wrapped))
	assert.Equal(t, "daily_flows", Resource(wrapped))
}

func TestGetCode_NonFlowErrorIsInternal(t *testing.T) {
	assert.Equal(t, ErrCodeInternal, GetCode(stderrors.New("boom")))
}

func TestQuotaExceeded_CarriesDetails(t *testing.T) {
	err := QuotaExceeded("acme", "storage_mb", 1100, 1024)

	assert.Equal(t, "acme", err.Details["tenant_id"])
	assert.Equal(t, "storage_mb", err.Details["resource"])
	assert.Equal(t, float64(1100), err.Details["used"])
	assert.Equal(t, float64(1024), err.Details["limit"])
	assert.Contains(t, err.Error(), "storage_mb")
}

func TestResource_EmptyForNonQuotaErrors(t *testing.T) {
	assert.Empty(t, Resource(TenantInactive("acme")))
	assert.Empty(t, Resource(stderrors.New("boom")))
}

func TestUnwrap_PreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := DelegateFailed("execute_phase", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWithDetail(t *testing.T) {
	err := Internal("unexpected state", nil).WithDetail("phase", "cleansing")
	assert.Equal(t, "cleansing", err.Details["phase"])
}
