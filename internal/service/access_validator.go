package service

import (
	"context"
	stderrors "errors"

	"github.com/migratehq/flowgate/internal/errors"
	"github.com/migratehq/flowgate/internal/metrics"
	"github.com/migratehq/flowgate/internal/model"
	"github.com/migratehq/flowgate/internal/store"
	"go.uber.org/zap"
)

// AccessValidator enforces tenant isolation: well-formed tenant context,
// active tenant status, flow ownership, and the platform-admin gate for
// cross-tenant operations.
type AccessValidator struct {
	flowStore store.FlowStore
	directory store.TenantDirectory
	ownership store.OwnershipCache
	level     model.IsolationLevel
	prom      *metrics.Metrics
	logger    *zap.Logger
}

// NewAccessValidator creates a new access validator
func NewAccessValidator(
	flowStore store.FlowStore,
	directory store.TenantDirectory,
	ownership store.OwnershipCache,
	level model.IsolationLevel,
	prom *metrics.Metrics,
	logger *zap.Logger,
) *AccessValidator {
	return &AccessValidator{
		flowStore: flowStore,
		directory: directory,
		ownership: ownership,
		level:     level,
		prom:      prom,
		logger:    logger,
	}
}

// IsolationLevel returns the validator's configured isolation level
func (v *AccessValidator) IsolationLevel() model.IsolationLevel {
	return v.level
}

// ValidateTenantAccess verifies the request carries a complete tenant
// context and the tenant is active. No side effects.
func (v *AccessValidator) ValidateTenantAccess(ctx context.Context, tctx model.TenantContext) error {
	if tctx.ClientAccountID == "" {
		return v.deny("missing_client_account", errors.MissingTenantContext("client_account_id"))
	}
	if tctx.EngagementID == "" {
		return v.deny("missing_engagement", errors.MissingTenantContext("engagement_id"))
	}

	active, err := v.directory.IsActive(ctx, tctx.ClientAccountID)
	if err != nil {
		return errors.StoreFailed("tenant status lookup", err)
	}
	if !active {
		return v.deny("tenant_inactive", errors.TenantInactive(tctx.ClientAccountID))
	}

	return nil
}

// ValidateFlowAccess verifies tenant access and that the requesting
// tenant owns the target flow. Ownership is resolved from the durable
// flow store first; the ownership cache is a fallback only and the store
// wins on disagreement.
func (v *AccessValidator) ValidateFlowAccess(ctx context.Context, tctx model.TenantContext, flowID string) error {
	if err := v.ValidateTenantAccess(ctx, tctx); err != nil {
		return err
	}

	owner, err := v.resolveOwner(ctx, flowID)
	if stderrors.Is(err, store.ErrNotFound) {
		return v.deny("flow_not_found", errors.FlowNotFound(flowID))
	}
	if err != nil {
		return errors.StoreFailed("flow ownership lookup", err)
	}

	if owner != tctx.ClientAccountID {
		return v.deny("ownership_mismatch", errors.OwnershipMismatch(tctx.ClientAccountID, flowID))
	}

	return nil
}

// ValidateAdminAccess gates cross-tenant admin operations. Under shared
// isolation, read-only admin operations are open to any valid caller;
// quota-mutating operations always require the platform-admin role.
func (v *AccessValidator) ValidateAdminAccess(ctx context.Context, tctx model.TenantContext, mutating bool) error {
	if tctx.UserID == "" {
		return v.deny("missing_user", errors.MissingTenantContext("user_id"))
	}
	if !mutating && v.level.AllowsAdminRead() {
		return nil
	}

	isAdmin, err := v.directory.IsPlatformAdmin(ctx, tctx.UserID)
	if err != nil {
		return errors.StoreFailed("admin role lookup", err)
	}
	if !isAdmin {
		return v.deny("admin_required", errors.AdminRequired(tctx.UserID))
	}

	return nil
}

// resolveOwner consults the flow store, falling back to the ownership
// cache when the store is unavailable. A successful store read refreshes
// the cache.
func (v *AccessValidator) resolveOwner(ctx context.Context, flowID string) (string, error) {
	owner, err := v.flowStore.ResolveOwner(ctx, flowID)
	if err == nil {
		if cacheErr := v.ownership.SetOwner(ctx, flowID, owner, defaultOwnerTTL); cacheErr != nil {
			v.logger.Debug("Failed to refresh ownership cache",
				zap.String("flow_id", flowID),
				zap.Error(cacheErr))
		}
		return owner, nil
	}
	if stderrors.Is(err, store.ErrNotFound) {
		return "", err
	}

	v.logger.Warn("Flow store ownership lookup failed, falling back to cache",
		zap.String("flow_id", flowID),
		zap.Error(err))

	cached, cacheErr := v.ownership.GetOwner(ctx, flowID)
	if cacheErr != nil {
		// Surface the store failure, not the cache miss
		return "", err
	}
	return cached, nil
}

func (v *AccessValidator) deny(reason string, err error) error {
	if v.prom != nil {
		v.prom.IsolationDenials.WithLabelValues(reason).Inc()
	}
	v.logger.Warn("Access denied by tenant isolation", zap.String("reason", reason))
	return err
}
