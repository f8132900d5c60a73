package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/migratehq/flowgate/internal/errors"
	"github.com/migratehq/flowgate/internal/metrics"
	"github.com/migratehq/flowgate/internal/model"
	"github.com/migratehq/flowgate/internal/store"
	"go.uber.org/zap"
)

// OpCreateFlow is the only operation that consumes quota
const OpCreateFlow = "create_flow"

// QuotaEnforcer gates resource-consuming operations against per-tenant
// ceilings. Quota is tenant-scoped; one tenant exhausting its ceilings
// never affects another tenant's admission.
type QuotaEnforcer struct {
	quotaStore   store.QuotaStore
	cache        *store.TenantCache
	tracker      *MetricsTracker
	reservations *ReservationTable
	defaultQuota func(tenantID string) model.TenantQuota
	prom         *metrics.Metrics
	logger       *zap.Logger
}

// NewQuotaEnforcer creates a new quota enforcer
func NewQuotaEnforcer(
	quotaStore store.QuotaStore,
	cache *store.TenantCache,
	tracker *MetricsTracker,
	reservations *ReservationTable,
	defaultQuota func(tenantID string) model.TenantQuota,
	prom *metrics.Metrics,
	logger *zap.Logger,
) *QuotaEnforcer {
	return &QuotaEnforcer{
		quotaStore:   quotaStore,
		cache:        cache,
		tracker:      tracker,
		reservations: reservations,
		defaultQuota: defaultQuota,
		prom:         prom,
		logger:       logger,
	}
}

// EffectiveQuota returns the tenant's quota record, falling back to the
// configured defaults when none has been set
func (e *QuotaEnforcer) EffectiveQuota(ctx context.Context, tenantID string) (model.TenantQuota, error) {
	if q, ok := e.cache.GetQuota(tenantID); ok {
		if e.prom != nil {
			e.prom.CacheHits.WithLabelValues("tenant_quota").Inc()
		}
		return q, nil
	}
	if e.prom != nil {
		e.prom.CacheMisses.WithLabelValues("tenant_quota").Inc()
	}

	q, err := e.quotaStore.GetQuota(ctx, tenantID)
	if stderrors.Is(err, store.ErrNotFound) {
		q = e.defaultQuota(tenantID)
	} else if err != nil {
		return model.TenantQuota{}, fmt.Errorf("failed to load quota: %w", err)
	}

	e.cache.SetQuota(q)
	return q, nil
}

// CheckQuota verifies the operation fits within the tenant's ceilings
// without consuming anything. Ceilings are checked in a fixed order and
// the first violation determines the failure. Callers on the create path
// should use AdmitCreate instead, which makes the concurrent-flow check
// atomic with its reservation.
func (e *QuotaEnforcer) CheckQuota(ctx context.Context, tenantID, operation string) error {
	if operation != OpCreateFlow {
		return nil
	}

	quota, err := e.EffectiveQuota(ctx, tenantID)
	if err != nil {
		return err
	}
	m := e.tracker.Snapshot(tenantID)

	if m.CurrentFlows >= quota.MaxConcurrentFlows {
		return e.reject(errors.QuotaExceeded(tenantID, "concurrent_flows",
			float64(m.CurrentFlows), float64(quota.MaxConcurrentFlows)))
	}
	if m.FlowsToday >= quota.MaxFlowsPerDay {
		return e.reject(errors.QuotaExceeded(tenantID, "daily_flows",
			float64(m.FlowsToday), float64(quota.MaxFlowsPerDay)))
	}
	return e.checkResourceCeilings(tenantID, m, quota)
}

// AdmitCreate is the admission-control step for flow creation: it
// reconciles the tenant's counters with the flow store, loads the
// effective quota, atomically reserves a slot against the concurrent and
// daily ceilings, and verifies the resource ceilings. The returned
// ticket must be confirmed after the created flow has been tracked, or
// released on any failure.
func (e *QuotaEnforcer) AdmitCreate(ctx context.Context, tenantID string) (*Ticket, error) {
	if err := e.tracker.RefreshFromStore(ctx, tenantID); err != nil {
		return nil, errors.StoreFailed("metrics refresh", err)
	}

	quota, err := e.EffectiveQuota(ctx, tenantID)
	if err != nil {
		return nil, errors.StoreFailed("quota load", err)
	}
	m := e.tracker.Snapshot(tenantID)

	ticket, err := e.reservations.Reserve(tenantID,
		m.CurrentFlows, quota.MaxConcurrentFlows,
		m.FlowsToday, quota.MaxFlowsPerDay)
	if err != nil {
		return nil, e.reject(err)
	}

	if err := e.checkResourceCeilings(tenantID, m, quota); err != nil {
		ticket.Release()
		return nil, err
	}

	return ticket, nil
}

// checkResourceCeilings checks the storage, CPU and memory ceilings, in
// that order. The concurrent and daily ceilings are checked under the
// reservation lock on the create path.
func (e *QuotaEnforcer) checkResourceCeilings(tenantID string, m model.TenantMetrics, quota model.TenantQuota) error {
	if m.StorageUsedMB >= quota.MaxStorageMB {
		return e.reject(errors.QuotaExceeded(tenantID, "storage_mb",
			float64(m.StorageUsedMB), float64(quota.MaxStorageMB)))
	}
	if m.CPUUsedUnits >= quota.MaxCPUUnits {
		return e.reject(errors.QuotaExceeded(tenantID, "cpu_units",
			m.CPUUsedUnits, quota.MaxCPUUnits))
	}
	if m.MemoryUsedMB >= quota.MaxMemoryMB {
		return e.reject(errors.QuotaExceeded(tenantID, "memory_mb",
			float64(m.MemoryUsedMB), float64(quota.MaxMemoryMB)))
	}
	return nil
}

// ExecutionTimeout returns the per-phase execution deadline for a tenant
func (e *QuotaEnforcer) ExecutionTimeout(ctx context.Context, tenantID string) (time.Duration, error) {
	quota, err := e.EffectiveQuota(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return quota.ExecutionTimeout(), nil
}

// InvalidateQuota drops the cached quota after an admin write
func (e *QuotaEnforcer) InvalidateQuota(tenantID string) {
	e.cache.InvalidateQuota(tenantID)
}

func (e *QuotaEnforcer) reject(err error) error {
	tenantID := ""
	resource := errors.Resource(err)
	if fe, ok := err.(*errors.FlowError); ok {
		if id, ok := fe.Details["tenant_id"].(string); ok {
			tenantID = id
		}
	}

	if e.prom != nil && resource != "" {
		e.prom.QuotaRejections.WithLabelValues(tenantID, resource).Inc()
	}
	e.logger.Warn("Operation rejected by quota enforcement",
		zap.String("tenant_id", tenantID),
		zap.String("resource", resource))

	return err
}
