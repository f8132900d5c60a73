package orchestrator

import (
	"context"
	"time"

	"github.com/migratehq/flowgate/internal/model"
)

// Orchestrator is the external capability that runs migration flows. It is
// stateless with respect to tenancy: the tenant is an explicit argument,
// never captured in a per-tenant instance.
type Orchestrator interface {
	CreateFlow(ctx context.Context, tenantID string, req CreateFlowRequest) (*CreateFlowResult, error)
	ExecutePhase(ctx context.Context, flowID, phaseName string, input, overrides map[string]interface{}) (map[string]interface{}, error)
	ListActiveFlows(ctx context.Context, tenantID, flowType string, limit int) ([]model.FlowSummary, error)
	DeleteFlow(ctx context.Context, flowID string, softDelete bool, reason string) (*DeleteFlowResult, error)
}

// CreateFlowRequest carries the parameters for a new flow
type CreateFlowRequest struct {
	FlowType     string
	Name         string
	Config       map[string]interface{}
	InitialState map[string]interface{}
}

// CreateFlowResult is the orchestrator's response to a create
type CreateFlowResult struct {
	FlowID  string
	Details map[string]interface{}
}

// DeleteFlowResult is the orchestrator's response to a delete
type DeleteFlowResult struct {
	FlowID      string
	SoftDeleted bool
	Reason      string
	DeletedAt   time.Time
}
