package store

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/migratehq/flowgate/internal/model"
)

// TenantCache is the bounded in-memory cache of per-tenant metrics and
// quota records. Entries expire and the cache evicts least-recently-used
// tenants past MaxTenants, so memory stays bounded as the tenant
// population grows. Nothing here is authoritative: metrics are reconciled
// against the flow store before admission decisions, and quota entries
// are invalidated on every admin write.
type TenantCache struct {
	metrics *expirable.LRU[string, model.TenantMetrics]
	quotas  *expirable.LRU[string, model.TenantQuota]
}

// NewTenantCache creates a bounded tenant cache
func NewTenantCache(maxTenants int, metricsTTL, quotaTTL time.Duration) *TenantCache {
	return &TenantCache{
		metrics: expirable.NewLRU[string, model.TenantMetrics](maxTenants, nil, metricsTTL),
		quotas:  expirable.NewLRU[string, model.TenantQuota](maxTenants, nil, quotaTTL),
	}
}

// GetMetrics retrieves cached metrics for a tenant
func (c *TenantCache) GetMetrics(tenantID string) (model.TenantMetrics, bool) {
	return c.metrics.Get(tenantID)
}

// SetMetrics caches metrics for a tenant
func (c *TenantCache) SetMetrics(m model.TenantMetrics) {
	c.metrics.Add(m.TenantID, m)
}

// GetQuota retrieves the cached quota for a tenant
func (c *TenantCache) GetQuota(tenantID string) (model.TenantQuota, bool) {
	return c.quotas.Get(tenantID)
}

// SetQuota caches the quota for a tenant
func (c *TenantCache) SetQuota(q model.TenantQuota) {
	c.quotas.Add(q.TenantID, q)
}

// InvalidateQuota drops the cached quota for a tenant
func (c *TenantCache) InvalidateQuota(tenantID string) {
	c.quotas.Remove(tenantID)
}

// KnownTenants returns the tenant IDs currently cached
func (c *TenantCache) KnownTenants() []string {
	return c.metrics.Keys()
}

// Len returns the number of tenants with cached metrics
func (c *TenantCache) Len() int {
	return c.metrics.Len()
}
