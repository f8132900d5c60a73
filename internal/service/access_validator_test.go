package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/migratehq/flowgate/internal/errors"
	"github.com/migratehq/flowgate/internal/model"
	"github.com/migratehq/flowgate/internal/orchestrator"
	"github.com/migratehq/flowgate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestValidateTenantAccess_MissingContext(t *testing.T) {
	env := newTestEnv(model.IsolationStrict)
	ctx := context.Background()

	err := env.validator.ValidateTenantAccess(ctx, model.TenantContext{
		EngagementID: "eng-1",
	})
	require.Error(t, err)
	assert.True(t, errors.IsIsolation(err))
	assert.Equal(t, errors.ErrCodeMissingTenantContext, errors.GetCode(err))

	err = env.validator.ValidateTenantAccess(ctx, model.TenantContext{
		ClientAccountID: "acme",
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeMissingTenantContext, errors.GetCode(err))
}

func TestValidateTenantAccess_InactiveTenant(t *testing.T) {
	env := newTestEnv(model.IsolationStrict)

	err := env.validator.ValidateTenantAccess(context.Background(), tenantCtx("acme"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTenantInactive, errors.GetCode(err))

	env.activateTenant("acme")
	assert.NoError(t, env.validator.ValidateTenantAccess(context.Background(), tenantCtx("acme")))
}

func TestValidateFlowAccess_CrossTenantDenied(t *testing.T) {
	for _, level := range []model.IsolationLevel{
		model.IsolationStrict, model.IsolationControlled, model.IsolationShared,
	} {
		t.Run(string(level), func(t *testing.T) {
			env := newTestEnv(level)
			ctx := context.Background()
			env.activateTenant("owner")
			env.activateTenant("intruder")

			created, err := env.delegate.CreateFlow(ctx, "owner", orchestrator.CreateFlowRequest{FlowType: "assessment"})
			require.NoError(t, err)

			err = env.validator.ValidateFlowAccess(ctx, tenantCtx("intruder"), created.FlowID)
			require.Error(t, err)
			assert.True(t, errors.IsIsolation(err))
			assert.Equal(t, errors.ErrCodeOwnershipMismatch, errors.GetCode(err))

			assert.NoError(t, env.validator.ValidateFlowAccess(ctx, tenantCtx("owner"), created.FlowID))
		})
	}
}

func TestValidateFlowAccess_UnknownFlow(t *testing.T) {
	env := newTestEnv(model.IsolationStrict)
	env.activateTenant("acme")

	err := env.validator.ValidateFlowAccess(context.Background(), tenantCtx("acme"), "no-such-flow")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeFlowNotFound, errors.GetCode(err))
}

func TestValidateFlowAccess_StoreWinsOverCache(t *testing.T) {
	logger := zap.NewNop()
	flowStore := new(MockFlowStore)
	ownership := store.NewMemoryOwnershipCache()
	directory := newFakeDirectory()
	directory.active["acme"] = true

	v := NewAccessValidator(flowStore, directory, ownership, model.IsolationStrict, nil, logger)
	ctx := context.Background()

	// Cache claims acme owns the flow; the store says otherwise.
	require.NoError(t, ownership.SetOwner(ctx, "flow-1", "acme", 0))
	flowStore.On("ResolveOwner", ctx, "flow-1").Return("rival", nil)

	err := v.ValidateFlowAccess(ctx, tenantCtx("acme"), "flow-1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeOwnershipMismatch, errors.GetCode(err))

	// The successful store read refreshed the cache.
	owner, err := ownership.GetOwner(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, "rival", owner)
}

func TestValidateFlowAccess_CacheFallbackOnStoreFailure(t *testing.T) {
	logger := zap.NewNop()
	flowStore := new(MockFlowStore)
	ownership := store.NewMemoryOwnershipCache()
	directory := newFakeDirectory()
	directory.active["acme"] = true

	v := NewAccessValidator(flowStore, directory, ownership, model.IsolationStrict, nil, logger)
	ctx := context.Background()

	require.NoError(t, ownership.SetOwner(ctx, "flow-1", "acme", 0))
	flowStore.On("ResolveOwner", ctx, "flow-1").Return("", fmt.Errorf("connection refused"))

	assert.NoError(t, v.ValidateFlowAccess(ctx, tenantCtx("acme"), "flow-1"))
}

func TestValidateFlowAccess_StoreFailureWithoutCacheEntry(t *testing.T) {
	logger := zap.NewNop()
	flowStore := new(MockFlowStore)
	directory := newFakeDirectory()
	directory.active["acme"] = true

	v := NewAccessValidator(flowStore, directory, store.NewMemoryOwnershipCache(), model.IsolationStrict, nil, logger)
	ctx := context.Background()

	flowStore.On("ResolveOwner", ctx, "flow-1").Return("", fmt.Errorf("connection refused"))

	err := v.ValidateFlowAccess(ctx, tenantCtx("acme"), "flow-1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStoreFailed, errors.GetCode(err))
}

func TestValidateAdminAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("strict requires platform admin", func(t *testing.T) {
		env := newTestEnv(model.IsolationStrict)

		err := env.validator.ValidateAdminAccess(ctx, tenantCtx("acme"), false)
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeAdminRequired, errors.GetCode(err))

		env.grantAdmin("user-1")
		assert.NoError(t, env.validator.ValidateAdminAccess(ctx, tenantCtx("acme"), false))
	})

	t.Run("shared relaxes read-only admin access", func(t *testing.T) {
		env := newTestEnv(model.IsolationShared)

		assert.NoError(t, env.validator.ValidateAdminAccess(ctx, tenantCtx("acme"), false))

		// Mutating operations still require the role.
		err := env.validator.ValidateAdminAccess(ctx, tenantCtx("acme"), true)
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeAdminRequired, errors.GetCode(err))
	})

	t.Run("controlled requires platform admin", func(t *testing.T) {
		env := newTestEnv(model.IsolationControlled)

		err := env.validator.ValidateAdminAccess(ctx, tenantCtx("acme"), false)
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeAdminRequired, errors.GetCode(err))
	})

	t.Run("missing user id", func(t *testing.T) {
		env := newTestEnv(model.IsolationShared)

		err := env.validator.ValidateAdminAccess(ctx, model.TenantContext{ClientAccountID: "acme"}, false)
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeMissingTenantContext, errors.GetCode(err))
	})
}
