package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/migratehq/flowgate/internal/model"
	"github.com/migratehq/flowgate/internal/store"
	"go.uber.org/zap"
)

// Local is an in-process Orchestrator used for development and tests.
// It keeps flows in memory and also satisfies store.FlowStore, so a
// single instance can serve as both delegate and ground truth.
type Local struct {
	mu     sync.RWMutex
	flows  map[string]*localFlow
	logger *zap.Logger
}

type localFlow struct {
	flowID    string
	tenantID  string
	flowType  string
	name      string
	status    string
	phase     string
	state     map[string]interface{}
	createdAt time.Time
}

// NewLocal creates a new in-process orchestrator
func NewLocal(logger *zap.Logger) *Local {
	return &Local{
		flows:  make(map[string]*localFlow),
		logger: logger,
	}
}

// CreateFlow registers a new flow and returns its generated ID
func (l *Local) CreateFlow(ctx context.Context, tenantID string, req CreateFlowRequest) (*CreateFlowResult, error) {
	if req.FlowType == "" {
		return nil, fmt.Errorf("flow_type is required")
	}

	flow := &localFlow{
		flowID:    uuid.NewString(),
		tenantID:  tenantID,
		flowType:  req.FlowType,
		name:      req.Name,
		status:    "running",
		phase:     "initialized",
		state:     req.InitialState,
		createdAt: time.Now(),
	}

	l.mu.Lock()
	l.flows[flow.flowID] = flow
	l.mu.Unlock()

	l.logger.Debug("Local flow created",
		zap.String("flow_id", flow.flowID),
		zap.String("flow_type", flow.flowType))

	return &CreateFlowResult{
		FlowID: flow.flowID,
		Details: map[string]interface{}{
			"flow_type":  flow.flowType,
			"name":       flow.name,
			"status":     flow.status,
			"created_at": flow.createdAt,
		},
	}, nil
}

// ExecutePhase advances a flow to the named phase
func (l *Local) ExecutePhase(ctx context.Context, flowID, phaseName string, input, overrides map[string]interface{}) (map[string]interface{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	flow, ok := l.flows[flowID]
	if !ok || flow.status == "deleted" {
		return nil, fmt.Errorf("flow %s not found", flowID)
	}

	flow.phase = phaseName
	if flow.state == nil {
		flow.state = make(map[string]interface{})
	}
	for k, v := range input {
		flow.state[k] = v
	}
	for k, v := range overrides {
		flow.state[k] = v
	}

	return map[string]interface{}{
		"flow_id": flowID,
		"phase":   phaseName,
		"status":  flow.status,
	}, nil
}

// ListActiveFlows returns the tenant's non-terminal flows, newest first
func (l *Local) ListActiveFlows(ctx context.Context, tenantID, flowType string, limit int) ([]model.FlowSummary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []model.FlowSummary
	for _, f := range l.flows {
		if f.tenantID != tenantID || terminal(f.status) {
			continue
		}
		if flowType != "" && !strings.EqualFold(f.flowType, flowType) {
			continue
		}
		out = append(out, model.FlowSummary{
			FlowID:       f.flowID,
			FlowType:     f.flowType,
			Name:         f.name,
			Status:       f.status,
			CurrentPhase: f.phase,
			CreatedAt:    f.createdAt,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteFlow removes a flow, either marking it deleted or dropping it
func (l *Local) DeleteFlow(ctx context.Context, flowID string, softDelete bool, reason string) (*DeleteFlowResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	flow, ok := l.flows[flowID]
	if !ok {
		return nil, fmt.Errorf("flow %s not found", flowID)
	}

	if softDelete {
		flow.status = "deleted"
	} else {
		delete(l.flows, flowID)
	}

	return &DeleteFlowResult{
		FlowID:      flowID,
		SoftDeleted: softDelete,
		Reason:      reason,
		DeletedAt:   time.Now(),
	}, nil
}

// store.FlowStore implementation, so the local orchestrator can double as
// ground truth in development wiring and integration tests.

// CountActiveFlows returns the number of non-terminal flows for the tenant
func (l *Local) CountActiveFlows(ctx context.Context, tenantID string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	count := 0
	for _, f := range l.flows {
		if f.tenantID == tenantID && !terminal(f.status) {
			count++
		}
	}
	return count, nil
}

// CountFlowsToday returns the number of flows the tenant created today
func (l *Local) CountFlowsToday(ctx context.Context, tenantID string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	y, m, d := time.Now().Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.Local)

	count := 0
	for _, f := range l.flows {
		if f.tenantID == tenantID && !f.createdAt.Before(midnight) {
			count++
		}
	}
	return count, nil
}

// ResolveOwner returns the owning tenant of a flow
func (l *Local) ResolveOwner(ctx context.Context, flowID string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	flow, ok := l.flows[flowID]
	if !ok {
		return "", store.ErrNotFound
	}
	return flow.tenantID, nil
}

// Ping always succeeds for the in-process store
func (l *Local) Ping(ctx context.Context) error {
	return nil
}

func terminal(status string) bool {
	switch status {
	case "completed", "failed", "deleted":
		return true
	}
	return false
}
