package store

import (
	"context"
	"errors"
	"time"

	"github.com/migratehq/flowgate/internal/model"
)

// ErrNotFound is returned when a record is not found
var ErrNotFound = errors.New("not found")

// FlowStore is the durable source of truth for flow counts and ownership.
// Read-only from this module's perspective; the orchestrator owns writes.
type FlowStore interface {
	// CountActiveFlows returns the number of flows owned by the tenant
	// that are not in a terminal state
	CountActiveFlows(ctx context.Context, tenantID string) (int, error)

	// CountFlowsToday returns the number of flows the tenant created
	// today, per the store's clock
	CountFlowsToday(ctx context.Context, tenantID string) (int, error)

	// ResolveOwner returns the owning tenant of a flow, or ErrNotFound
	ResolveOwner(ctx context.Context, flowID string) (string, error)

	Ping(ctx context.Context) error
}

// TenantDirectory answers tenant status and platform-admin role queries
type TenantDirectory interface {
	IsActive(ctx context.Context, tenantID string) (bool, error)
	IsPlatformAdmin(ctx context.Context, userID string) (bool, error)
}

// QuotaStore persists per-tenant quota records. Absence of a record means
// the default quota applies.
type QuotaStore interface {
	// GetQuota returns the tenant's quota record, or ErrNotFound
	GetQuota(ctx context.Context, tenantID string) (model.TenantQuota, error)
	SetQuota(ctx context.Context, quota model.TenantQuota) error
	ListTenantIDs(ctx context.Context) ([]string, error)
}

// OwnershipCache is a shared look-aside cache of flow ownership. It is
// never authoritative; the FlowStore wins on disagreement.
type OwnershipCache interface {
	GetOwner(ctx context.Context, flowID string) (string, error)
	SetOwner(ctx context.Context, flowID, tenantID string, ttl time.Duration) error
	DeleteOwner(ctx context.Context, flowID string) error
	Ping(ctx context.Context) error
	Close() error
}
