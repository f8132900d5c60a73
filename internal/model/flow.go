package model

import "time"

// FlowEvent marks a change in a flow's lifecycle for metrics tracking
type FlowEvent string

const (
	FlowCreated FlowEvent = "created"
	FlowDeleted FlowEvent = "deleted"
)

// FlowSummary is the listing shape returned by the orchestrator for
// active flows
type FlowSummary struct {
	FlowID       string    `json:"flow_id"`
	FlowType     string    `json:"flow_type"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	CurrentPhase string    `json:"current_phase"`
	CreatedAt    time.Time `json:"created_at"`
}

// FlowResult is the typed envelope returned by facade operations: the
// delegate's domain payload plus the tenant metadata the facade adds.
// The facade never mutates Domain.
type FlowResult struct {
	FlowID string                 `json:"flow_id,omitempty"`
	Domain map[string]interface{} `json:"result"`
	Tenant TenantMeta             `json:"tenant"`
}
