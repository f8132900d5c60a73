package service

import (
	"context"
	"testing"

	"github.com/migratehq/flowgate/internal/errors"
	"github.com/migratehq/flowgate/internal/model"
	"github.com/migratehq/flowgate/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setQuota(t *testing.T, env *testEnv, quota model.TenantQuota) {
	t.Helper()
	require.NoError(t, env.quotaStore.SetQuota(context.Background(), quota))
	env.enforcer.InvalidateQuota(quota.TenantID)
}

func TestEffectiveQuota_DefaultsWhenUnset(t *testing.T) {
	env := newTestEnv(model.IsolationStrict)

	q, err := env.enforcer.EffectiveQuota(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 5, q.MaxConcurrentFlows)
	assert.Equal(t, 50, q.MaxFlowsPerDay)
	assert.Equal(t, "acme", q.TenantID)
}

func TestEffectiveQuota_ExplicitRecordWins(t *testing.T) {
	env := newTestEnv(model.IsolationStrict)
	quota := model.DefaultQuota("acme")
	quota.MaxConcurrentFlows = 2
	setQuota(t, env, quota)

	q, err := env.enforcer.EffectiveQuota(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, q.MaxConcurrentFlows)
}

func TestAdmitCreate_ConcurrentCeiling(t *testing.T) {
	env := newTestEnv(model.IsolationStrict)
	ctx := context.Background()
	quota := model.DefaultQuota("acme")
	quota.MaxConcurrentFlows = 2
	setQuota(t, env, quota)

	// Two flows already active in the store.
	for i := 0; i < 2; i++ {
		_, err := env.delegate.CreateFlow(ctx, "acme", orchestrator.CreateFlowRequest{FlowType: "assessment"})
		require.NoError(t, err)
	}

	_, err := env.enforcer.AdmitCreate(ctx, "acme")
	require.Error(t, err)
	assert.True(t, errors.IsQuotaExceeded(err))
	assert.Equal(t, "concurrent_flows", errors.Resource(err))

	fe := err.(*errors.FlowError)
	assert.Equal(t, float64(2), fe.Details["used"])
	assert.Equal(t, float64(2), fe.Details["limit"])
}

func TestAdmitCreate_InFlightReservationsCount(t *testing.T) {
	env := newTestEnv(model.IsolationStrict)
	ctx := context.Background()
	quota := model.DefaultQuota("acme")
	quota.MaxConcurrentFlows = 2
	setQuota(t, env, quota)

	t1, err := env.enforcer.AdmitCreate(ctx, "acme")
	require.NoError(t, err)
	t2, err := env.enforcer.AdmitCreate(ctx, "acme")
	require.NoError(t, err)

	// Third admission sees two in-flight reservations.
	_, err = env.enforcer.AdmitCreate(ctx, "acme")
	require.Error(t, err)
	assert.Equal(t, "concurrent_flows", errors.Resource(err))

	// Releasing one frees a slot.
	t1.Release()
	t3, err := env.enforcer.AdmitCreate(ctx, "acme")
	require.NoError(t, err)

	t2.Release()
	t3.Release()
}

func TestAdmitCreate_DailyCeiling(t *testing.T) {
	env := newTestEnv(model.IsolationStrict)
	ctx := context.Background()
	quota := model.DefaultQuota("acme")
	quota.MaxConcurrentFlows = 10
	quota.MaxFlowsPerDay = 10
	setQuota(t, env, quota)

	// Daily count at the ceiling with headroom on concurrency: soft
	// deleted flows stop counting as active but still count for today.
	for i := 0; i < 10; i++ {
		created, err := env.delegate.CreateFlow(ctx, "acme", orchestrator.CreateFlowRequest{FlowType: "assessment"})
		require.NoError(t, err)
		if i >= 5 {
			_, err = env.delegate.DeleteFlow(ctx, created.FlowID, true, "test")
			require.NoError(t, err)
		}
	}

	_, err := env.enforcer.AdmitCreate(ctx, "acme")
	require.Error(t, err)
	assert.True(t, errors.IsQuotaExceeded(err))
	assert.Equal(t, "daily_flows", errors.Resource(err))

	// The failed daily check left no reservation behind.
	assert.Zero(t, env.enforcer.reservations.Reserved("acme"))
}

func TestAdmitCreate_DailyCeilingCountsInFlightReservations(t *testing.T) {
	env := newTestEnv(model.IsolationStrict)
	ctx := context.Background()
	quota := model.DefaultQuota("acme")
	quota.MaxConcurrentFlows = 10
	quota.MaxFlowsPerDay = 2
	setQuota(t, env, quota)

	// One flow already created today; the first admission holds the last
	// daily slot, so a second admission must fail before the first one is
	// confirmed, not after.
	_, err := env.delegate.CreateFlow(ctx, "acme", orchestrator.CreateFlowRequest{FlowType: "assessment"})
	require.NoError(t, err)

	ticket, err := env.enforcer.AdmitCreate(ctx, "acme")
	require.NoError(t, err)

	_, err = env.enforcer.AdmitCreate(ctx, "acme")
	require.Error(t, err)
	assert.True(t, errors.IsQuotaExceeded(err))
	assert.Equal(t, "daily_flows", errors.Resource(err))

	ticket.Release()
}

func TestAdmitCreate_ResourceCeilings(t *testing.T) {
	env := newTestEnv(model.IsolationStrict)
	ctx := context.Background()
	quota := model.DefaultQuota("acme")
	quota.MaxCPUUnits = 0.3
	setQuota(t, env, quota)

	// Two phase executions push CPU past 0.3 units.
	env.tracker.RecordOperation("acme", "execute_phase")
	env.tracker.RecordOperation("acme", "execute_phase")

	_, err := env.enforcer.AdmitCreate(ctx, "acme")
	require.Error(t, err)
	assert.Equal(t, "cpu_units", errors.Resource(err))
}

func TestCheckQuota_NonCreateOperationsPass(t *testing.T) {
	env := newTestEnv(model.IsolationStrict)
	quota := model.DefaultQuota("acme")
	quota.MaxConcurrentFlows = 1
	setQuota(t, env, quota)

	assert.NoError(t, env.enforcer.CheckQuota(context.Background(), "acme", "execute_phase"))
	assert.NoError(t, env.enforcer.CheckQuota(context.Background(), "acme", "delete_flow"))
}

func TestCheckQuota_IsNonDestructive(t *testing.T) {
	env := newTestEnv(model.IsolationStrict)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, env.enforcer.CheckQuota(ctx, "acme", OpCreateFlow))
	}
	assert.Zero(t, env.tracker.Snapshot("acme").CurrentFlows)
	assert.Zero(t, env.enforcer.reservations.Reserved("acme"))
}

func TestQuotaIsolation_OneTenantExhaustionDoesNotBlockAnother(t *testing.T) {
	env := newTestEnv(model.IsolationStrict)
	ctx := context.Background()
	quota := model.DefaultQuota("acme")
	quota.MaxConcurrentFlows = 1
	setQuota(t, env, quota)

	_, err := env.delegate.CreateFlow(ctx, "acme", orchestrator.CreateFlowRequest{FlowType: "assessment"})
	require.NoError(t, err)

	_, err = env.enforcer.AdmitCreate(ctx, "acme")
	require.Error(t, err)

	ticket, err := env.enforcer.AdmitCreate(ctx, "globex")
	require.NoError(t, err)
	ticket.Release()
}
