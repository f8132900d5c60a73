package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/migratehq/flowgate/internal/model"
	"github.com/migratehq/flowgate/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// snapshotConcurrency bounds the parallel store refreshes during an
// all-tenant snapshot
const snapshotConcurrency = 8

// AdminService exposes the cross-tenant operations. Every entry point
// passes through the admin gate; this is the only path that mutates
// tenant quotas.
type AdminService struct {
	validator  *AccessValidator
	enforcer   *QuotaEnforcer
	tracker    *MetricsTracker
	quotaStore store.QuotaStore
	clock      clock.Clock
	logger     *zap.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(
	validator *AccessValidator,
	enforcer *QuotaEnforcer,
	tracker *MetricsTracker,
	quotaStore store.QuotaStore,
	clk clock.Clock,
	logger *zap.Logger,
) *AdminService {
	return &AdminService{
		validator:  validator,
		enforcer:   enforcer,
		tracker:    tracker,
		quotaStore: quotaStore,
		clock:      clk,
		logger:     logger,
	}
}

// SetTenantQuota overwrites the quota record for a tenant. Requires the
// platform-admin role at every isolation level.
func (s *AdminService) SetTenantQuota(ctx context.Context, adminCtx model.TenantContext, targetTenantID string, quota model.TenantQuota) (model.TenantQuota, error) {
	if err := s.validator.ValidateAdminAccess(ctx, adminCtx, true); err != nil {
		return model.TenantQuota{}, err
	}
	if targetTenantID == "" {
		return model.TenantQuota{}, fmt.Errorf("target tenant id is required")
	}

	quota.TenantID = targetTenantID
	if err := quota.Validate(); err != nil {
		return model.TenantQuota{}, fmt.Errorf("invalid quota: %w", err)
	}

	quota.UpdatedAt = s.clock.Now()
	quota.UpdatedBy = adminCtx.UserID

	if err := s.quotaStore.SetQuota(ctx, quota); err != nil {
		return model.TenantQuota{}, fmt.Errorf("failed to persist quota: %w", err)
	}
	s.enforcer.InvalidateQuota(targetTenantID)

	s.logger.Info("Tenant quota updated",
		zap.String("target_tenant_id", targetTenantID),
		zap.String("updated_by", adminCtx.UserID),
		zap.Int("max_concurrent_flows", quota.MaxConcurrentFlows),
		zap.Int("max_flows_per_day", quota.MaxFlowsPerDay))

	return quota, nil
}

// GetAllTenantMetrics returns a point-in-time snapshot of every known
// tenant's metrics, quota and usage. A snapshot, not a live view.
func (s *AdminService) GetAllTenantMetrics(ctx context.Context, adminCtx model.TenantContext) (map[string]model.TenantSummary, error) {
	if err := s.validator.ValidateAdminAccess(ctx, adminCtx, false); err != nil {
		return nil, err
	}

	tenantIDs, err := s.quotaStore.ListTenantIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}

	var mu sync.Mutex
	summaries := make(map[string]model.TenantSummary, len(tenantIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(snapshotConcurrency)

	for _, tenantID := range tenantIDs {
		tenantID := tenantID
		g.Go(func() error {
			if err := s.tracker.RefreshFromStore(gctx, tenantID); err != nil {
				return fmt.Errorf("tenant %s: %w", tenantID, err)
			}
			quota, err := s.enforcer.EffectiveQuota(gctx, tenantID)
			if err != nil {
				return fmt.Errorf("tenant %s: %w", tenantID, err)
			}
			m := s.tracker.Snapshot(tenantID)

			mu.Lock()
			summaries[tenantID] = model.TenantSummary{
				TenantID:      tenantID,
				Metrics:       m,
				Quota:         quota,
				PriorityLevel: quota.PriorityLevel,
				Usage:         m.Usage(quota),
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debug("All-tenant metrics snapshot assembled",
		zap.Int("tenants", len(summaries)))

	return summaries, nil
}
