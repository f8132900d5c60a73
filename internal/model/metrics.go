package model

import "time"

// TenantMetrics is the mutable per-tenant counter set. CurrentFlows and
// FlowsToday are refreshed from the flow store before admission decisions;
// the remaining counters are optimistic local accounting.
type TenantMetrics struct {
	TenantID      string
	CurrentFlows  int
	FlowsToday    int
	StorageUsedMB int64
	CPUUsedUnits  float64
	MemoryUsedMB  int64
	LastActivity  time.Time
	RefreshedAt   time.Time
}

// UsagePercentages expresses metrics as a fraction of the effective quota,
// in percent. Ceilings of zero report zero usage rather than dividing by zero.
type UsagePercentages struct {
	ConcurrentFlows float64 `json:"concurrent_flows"`
	DailyFlows      float64 `json:"daily_flows"`
	Storage         float64 `json:"storage"`
	CPU             float64 `json:"cpu"`
	Memory          float64 `json:"memory"`
}

// Usage computes the usage percentages of m against q
func (m TenantMetrics) Usage(q TenantQuota) UsagePercentages {
	return UsagePercentages{
		ConcurrentFlows: percent(float64(m.CurrentFlows), float64(q.MaxConcurrentFlows)),
		DailyFlows:      percent(float64(m.FlowsToday), float64(q.MaxFlowsPerDay)),
		Storage:         percent(float64(m.StorageUsedMB), float64(q.MaxStorageMB)),
		CPU:             percent(m.CPUUsedUnits, q.MaxCPUUnits),
		Memory:          percent(float64(m.MemoryUsedMB), float64(q.MaxMemoryMB)),
	}
}

func percent(used, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return used / limit * 100
}

// TenantSummary is the admin-facing snapshot of one tenant's state
type TenantSummary struct {
	TenantID      string           `json:"tenant_id"`
	Metrics       TenantMetrics    `json:"metrics"`
	Quota         TenantQuota      `json:"quota"`
	PriorityLevel int              `json:"priority_level"`
	Usage         UsagePercentages `json:"usage_percentages"`
}
