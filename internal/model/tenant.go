package model

import "time"

// IsolationLevel governs cross-tenant visibility
type IsolationLevel string

const (
	IsolationStrict     IsolationLevel = "strict"
	IsolationControlled IsolationLevel = "controlled"
	IsolationShared     IsolationLevel = "shared"
)

// Valid reports whether the level is one of the known isolation levels
func (l IsolationLevel) Valid() bool {
	switch l {
	case IsolationStrict, IsolationControlled, IsolationShared:
		return true
	}
	return false
}

// AllowsAdminRead reports whether read-only admin operations may proceed
// without a platform-admin role at this isolation level. Quota-mutating
// operations always require the platform-admin role regardless of level.
func (l IsolationLevel) AllowsAdminRead() bool {
	return l == IsolationShared
}

// TenantContext identifies the tenant scope of a request. Both
// ClientAccountID and EngagementID are required; UserID identifies the
// requesting user for admin-role checks.
type TenantContext struct {
	ClientAccountID string
	EngagementID    string
	UserID          string
}

// TenantID returns the tenant key all per-tenant state is scoped by
func (c TenantContext) TenantID() string {
	return c.ClientAccountID
}

// TenantMeta is the metadata envelope the facade attaches to every
// successful result. It is kept separate from the delegate's domain
// payload so added fields can never clash with delegate-provided ones.
type TenantMeta struct {
	TenantID       string         `json:"tenant_id"`
	EngagementID   string         `json:"engagement_id"`
	IsolationLevel IsolationLevel `json:"isolation_level"`
	Timestamp      time.Time      `json:"timestamp"`
}
