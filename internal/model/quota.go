package model

import (
	"fmt"
	"time"
)

// TenantQuota holds per-tenant resource ceilings
type TenantQuota struct {
	TenantID            string
	MaxConcurrentFlows  int
	MaxFlowsPerDay      int
	MaxStorageMB        int64
	MaxCPUUnits         float64
	MaxMemoryMB         int64
	MaxExecutionMinutes int
	PriorityLevel       int // 1 (lowest) to 5 (highest)
	UpdatedAt           time.Time
	UpdatedBy           string
}

// DefaultQuota returns the ceilings applied to a tenant with no explicit
// quota record
func DefaultQuota(tenantID string) TenantQuota {
	return TenantQuota{
		TenantID:            tenantID,
		MaxConcurrentFlows:  5,
		MaxFlowsPerDay:      50,
		MaxStorageMB:        1024,
		MaxCPUUnits:         4,
		MaxMemoryMB:         8192,
		MaxExecutionMinutes: 60,
		PriorityLevel:       3,
	}
}

// Validate checks the quota values are internally consistent
func (q TenantQuota) Validate() error {
	if q.MaxConcurrentFlows < 1 {
		return fmt.Errorf("max_concurrent_flows must be at least 1, got %d", q.MaxConcurrentFlows)
	}
	if q.MaxFlowsPerDay < q.MaxConcurrentFlows {
		return fmt.Errorf("max_flows_per_day %d cannot be below max_concurrent_flows %d",
			q.MaxFlowsPerDay, q.MaxConcurrentFlows)
	}
	if q.MaxStorageMB < 0 || q.MaxMemoryMB < 0 {
		return fmt.Errorf("storage and memory ceilings cannot be negative")
	}
	if q.MaxCPUUnits <= 0 {
		return fmt.Errorf("max_cpu_units must be positive, got %g", q.MaxCPUUnits)
	}
	if q.MaxExecutionMinutes < 1 {
		return fmt.Errorf("max_execution_minutes must be at least 1, got %d", q.MaxExecutionMinutes)
	}
	if q.PriorityLevel < 1 || q.PriorityLevel > 5 {
		return fmt.Errorf("priority_level must be between 1 and 5, got %d", q.PriorityLevel)
	}
	return nil
}

// ExecutionTimeout returns the per-phase execution deadline implied by the quota
func (q TenantQuota) ExecutionTimeout() time.Duration {
	return time.Duration(q.MaxExecutionMinutes) * time.Minute
}
