package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/migratehq/flowgate/internal/metrics"
	"github.com/migratehq/flowgate/internal/model"
	"github.com/migratehq/flowgate/internal/store"
	"go.uber.org/zap"
)

// Operation cost approximations applied by RecordOperation. Coarse budget
// signals, not billing-grade accounting.
const (
	phaseCPUUnits   = 0.25
	phaseMemoryMB   = 128
	listCPUUnits    = 0.05
	defaultOwnerTTL = 24 * time.Hour
)

// MetricsTracker maintains per-tenant counters and the flow ownership
// cache. Counter mutation is serialized per tenant; operations on
// different tenants never contend on the same lock.
type MetricsTracker struct {
	flowStore store.FlowStore
	ownership store.OwnershipCache
	cache     *store.TenantCache
	clock     clock.Clock
	prom      *metrics.Metrics
	logger    *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMetricsTracker creates a new metrics tracker
func NewMetricsTracker(
	flowStore store.FlowStore,
	ownership store.OwnershipCache,
	cache *store.TenantCache,
	clk clock.Clock,
	prom *metrics.Metrics,
	logger *zap.Logger,
) *MetricsTracker {
	return &MetricsTracker{
		flowStore: flowStore,
		ownership: ownership,
		cache:     cache,
		clock:     clk,
		prom:      prom,
		logger:    logger,
	}
}

// tenantLock returns the mutex serializing counter mutation for one
// tenant. Entries are never evicted: dropping a mutex that another
// goroutine still holds would let two writers into the same tenant's
// counters, so the table grows with the number of distinct tenants this
// process has served. A mutex per tenant is a few dozen bytes.
func (t *MetricsTracker) tenantLock(tenantID string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.locks == nil {
		t.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := t.locks[tenantID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[tenantID] = lock
	}
	return lock
}

// TrackFlowEvent updates per-tenant counters for a flow lifecycle event
// and records ownership on creation. Ownership cache writes happen outside
// the per-tenant lock.
func (t *MetricsTracker) TrackFlowEvent(ctx context.Context, tenantID, flowID string, event model.FlowEvent, hardDelete bool) {
	lock := t.tenantLock(tenantID)
	lock.Lock()
	m := t.loadLocked(tenantID)

	switch event {
	case model.FlowCreated:
		m.CurrentFlows++
		m.FlowsToday++
	case model.FlowDeleted:
		if m.CurrentFlows > 0 {
			m.CurrentFlows--
		}
	}
	m.LastActivity = t.clock.Now()
	t.cache.SetMetrics(m)
	lock.Unlock()

	switch event {
	case model.FlowCreated:
		if err := t.ownership.SetOwner(ctx, flowID, tenantID, defaultOwnerTTL); err != nil {
			t.logger.Warn("Failed to cache flow ownership",
				zap.String("flow_id", flowID),
				zap.Error(err))
		}
	case model.FlowDeleted:
		// Ownership is append-only for the flow's lifetime; the cached
		// mapping is dropped only when the flow is hard-deleted.
		if hardDelete {
			if err := t.ownership.DeleteOwner(ctx, flowID); err != nil {
				t.logger.Warn("Failed to drop cached flow ownership",
					zap.String("flow_id", flowID),
					zap.Error(err))
			}
		}
	}

	if t.prom != nil {
		t.prom.KnownTenants.Set(float64(t.cache.Len()))
	}
}

// RecordOperation applies coarse resource accounting for non-create
// operations
func (t *MetricsTracker) RecordOperation(tenantID, operation string) {
	lock := t.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	m := t.loadLocked(tenantID)
	switch operation {
	case "execute_phase":
		m.CPUUsedUnits += phaseCPUUnits
		m.MemoryUsedMB += phaseMemoryMB
	case "list_flows":
		m.CPUUsedUnits += listCPUUnits
	}
	m.LastActivity = t.clock.Now()
	t.cache.SetMetrics(m)
}

// RefreshFromStore overwrites the in-memory flow counters with the
// authoritative counts from the flow store. The store reads run without
// holding the per-tenant lock; the lock is taken only to apply the values.
func (t *MetricsTracker) RefreshFromStore(ctx context.Context, tenantID string) error {
	start := t.clock.Now()

	current, err := t.flowStore.CountActiveFlows(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to refresh active flow count: %w", err)
	}
	today, err := t.flowStore.CountFlowsToday(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to refresh daily flow count: %w", err)
	}

	lock := t.tenantLock(tenantID)
	lock.Lock()
	m := t.loadLocked(tenantID)
	m.CurrentFlows = current
	m.FlowsToday = today
	m.RefreshedAt = t.clock.Now()
	t.cache.SetMetrics(m)
	lock.Unlock()

	if t.prom != nil {
		t.prom.RefreshDuration.Observe(t.clock.Since(start).Seconds())
	}

	t.logger.Debug("Tenant metrics reconciled from store",
		zap.String("tenant_id", tenantID),
		zap.Int("current_flows", current),
		zap.Int("flows_today", today))

	return nil
}

// Snapshot returns a copy of the tenant's current metrics
func (t *MetricsTracker) Snapshot(tenantID string) model.TenantMetrics {
	lock := t.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	return t.loadLocked(tenantID)
}

// KnownTenants returns the tenants with cached metrics
func (t *MetricsTracker) KnownTenants() []string {
	return t.cache.KnownTenants()
}

// loadLocked reads the tenant's metrics, lazily initializing them and
// rolling the daily counter when the clock has crossed a day boundary
// since the last activity. Callers must hold the tenant lock.
func (t *MetricsTracker) loadLocked(tenantID string) model.TenantMetrics {
	m, ok := t.cache.GetMetrics(tenantID)
	if !ok {
		if t.prom != nil {
			t.prom.CacheMisses.WithLabelValues("tenant_metrics").Inc()
		}
		return model.TenantMetrics{TenantID: tenantID}
	}
	if t.prom != nil {
		t.prom.CacheHits.WithLabelValues("tenant_metrics").Inc()
	}

	// Optimistic local reset; the store's clock remains authoritative
	// through RefreshFromStore.
	if !m.LastActivity.IsZero() && midnight(t.clock.Now()).After(m.LastActivity) {
		m.FlowsToday = 0
	}
	return m
}

func midnight(now time.Time) time.Time {
	y, mo, d := now.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, now.Location())
}
