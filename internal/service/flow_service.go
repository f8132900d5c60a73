package service

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/migratehq/flowgate/internal/errors"
	"github.com/migratehq/flowgate/internal/metrics"
	"github.com/migratehq/flowgate/internal/model"
	"github.com/migratehq/flowgate/internal/orchestrator"
	"go.uber.org/zap"
)

// DefaultListLimit applies when ListFlows is called without a limit
const DefaultListLimit = 10

// FlowService is the orchestration facade. Every operation validates
// tenant access first, applies admission control where quota is consumed,
// delegates to the orchestrator, and only then updates local accounting.
// Delegate errors propagate unchanged; an operation that never completed
// consumes no quota.
type FlowService struct {
	validator *AccessValidator
	enforcer  *QuotaEnforcer
	tracker   *MetricsTracker
	delegate  orchestrator.Orchestrator
	clock     clock.Clock
	prom      *metrics.Metrics
	logger    *zap.Logger
}

// NewFlowService creates the orchestration facade
func NewFlowService(
	validator *AccessValidator,
	enforcer *QuotaEnforcer,
	tracker *MetricsTracker,
	delegate orchestrator.Orchestrator,
	clk clock.Clock,
	prom *metrics.Metrics,
	logger *zap.Logger,
) *FlowService {
	return &FlowService{
		validator: validator,
		enforcer:  enforcer,
		tracker:   tracker,
		delegate:  delegate,
		clock:     clk,
		prom:      prom,
		logger:    logger,
	}
}

// CreateFlow admits and creates a new flow for the tenant. Ownership is
// recorded exactly once, at creation, and never reassigned.
func (s *FlowService) CreateFlow(ctx context.Context, tctx model.TenantContext, req orchestrator.CreateFlowRequest) (*model.FlowResult, error) {
	op := "create_flow"
	requestID := uuid.NewString()
	start := s.clock.Now()
	log := s.logger.With(
		zap.String("request_id", requestID),
		zap.String("tenant_id", tctx.ClientAccountID),
		zap.String("flow_type", req.FlowType))

	if err := s.validator.ValidateTenantAccess(ctx, tctx); err != nil {
		return nil, s.fail(op, tctx, err)
	}

	ticket, err := s.enforcer.AdmitCreate(ctx, tctx.ClientAccountID)
	if err != nil {
		return nil, s.fail(op, tctx, err)
	}

	created, err := s.delegate.CreateFlow(ctx, tctx.ClientAccountID, req)
	if err != nil {
		// Includes cancellation and timeout: the reservation must not
		// outlive a delegate call that never completed.
		ticket.Release()
		return nil, s.fail(op, tctx, errors.DelegateFailed(op, err))
	}

	s.tracker.TrackFlowEvent(ctx, tctx.ClientAccountID, created.FlowID, model.FlowCreated, false)
	ticket.Confirm()

	s.observe(op, tctx, start, "success")
	log.Info("Flow created",
		zap.String("flow_id", created.FlowID),
		zap.Duration("elapsed", s.clock.Since(start)))

	return &model.FlowResult{
		FlowID: created.FlowID,
		Domain: created.Details,
		Tenant: s.tenantMeta(tctx),
	}, nil
}

// ExecutePhase runs a phase of a flow the tenant owns. The tenant's
// execution-time ceiling is applied as a deadline on the delegate call.
func (s *FlowService) ExecutePhase(ctx context.Context, tctx model.TenantContext, flowID, phaseName string, input, overrides map[string]interface{}) (*model.FlowResult, error) {
	op := "execute_phase"
	start := s.clock.Now()

	if err := s.validator.ValidateFlowAccess(ctx, tctx, flowID); err != nil {
		return nil, s.fail(op, tctx, err)
	}

	timeout, err := s.enforcer.ExecutionTimeout(ctx, tctx.ClientAccountID)
	if err != nil {
		return nil, s.fail(op, tctx, errors.StoreFailed("quota load", err))
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := s.delegate.ExecutePhase(execCtx, flowID, phaseName, input, overrides)
	if err != nil {
		return nil, s.fail(op, tctx, errors.DelegateFailed(op, err))
	}

	s.tracker.RecordOperation(tctx.ClientAccountID, op)
	s.observe(op, tctx, start, "success")

	return &model.FlowResult{
		FlowID: flowID,
		Domain: result,
		Tenant: s.tenantMeta(tctx),
	}, nil
}

// ListFlows returns the tenant's active flows, optionally filtered by
// type and status. Results are always scoped to the caller's tenant,
// regardless of isolation level.
func (s *FlowService) ListFlows(ctx context.Context, tctx model.TenantContext, flowType, status string, limit int) ([]model.FlowSummary, model.TenantMeta, error) {
	op := "list_flows"
	start := s.clock.Now()

	if err := s.validator.ValidateTenantAccess(ctx, tctx); err != nil {
		return nil, model.TenantMeta{}, s.fail(op, tctx, err)
	}

	if limit <= 0 {
		limit = DefaultListLimit
	}

	flows, err := s.delegate.ListActiveFlows(ctx, tctx.ClientAccountID, flowType, limit)
	if err != nil {
		return nil, model.TenantMeta{}, s.fail(op, tctx, errors.DelegateFailed(op, err))
	}

	if status != "" {
		filtered := flows[:0]
		for _, f := range flows {
			if f.Status == status {
				filtered = append(filtered, f)
			}
		}
		flows = filtered
	}

	s.tracker.RecordOperation(tctx.ClientAccountID, op)
	s.observe(op, tctx, start, "success")

	return flows, s.tenantMeta(tctx), nil
}

// DeleteFlow removes a flow the tenant owns. Soft delete marks the flow
// terminal; hard delete also drops its ownership record.
func (s *FlowService) DeleteFlow(ctx context.Context, tctx model.TenantContext, flowID string, softDelete bool, reason string) (*model.FlowResult, error) {
	op := "delete_flow"
	start := s.clock.Now()

	if err := s.validator.ValidateFlowAccess(ctx, tctx, flowID); err != nil {
		return nil, s.fail(op, tctx, err)
	}

	deleted, err := s.delegate.DeleteFlow(ctx, flowID, softDelete, reason)
	if err != nil {
		return nil, s.fail(op, tctx, errors.DelegateFailed(op, err))
	}

	s.tracker.TrackFlowEvent(ctx, tctx.ClientAccountID, flowID, model.FlowDeleted, !softDelete)
	s.observe(op, tctx, start, "success")

	s.logger.Info("Flow deleted",
		zap.String("tenant_id", tctx.ClientAccountID),
		zap.String("flow_id", flowID),
		zap.Bool("soft_delete", softDelete))

	return &model.FlowResult{
		FlowID: flowID,
		Domain: map[string]interface{}{
			"flow_id":      deleted.FlowID,
			"soft_deleted": deleted.SoftDeleted,
			"reason":       deleted.Reason,
			"deleted_at":   deleted.DeletedAt,
		},
		Tenant: s.tenantMeta(tctx),
	}, nil
}

// GetTenantMetrics returns the caller's own metrics, effective quota and
// usage percentages, reconciled against the flow store.
func (s *FlowService) GetTenantMetrics(ctx context.Context, tctx model.TenantContext) (model.TenantMetrics, model.TenantQuota, model.UsagePercentages, error) {
	op := "get_tenant_metrics"

	if err := s.validator.ValidateTenantAccess(ctx, tctx); err != nil {
		return model.TenantMetrics{}, model.TenantQuota{}, model.UsagePercentages{}, s.fail(op, tctx, err)
	}

	if err := s.tracker.RefreshFromStore(ctx, tctx.ClientAccountID); err != nil {
		return model.TenantMetrics{}, model.TenantQuota{}, model.UsagePercentages{}, s.fail(op, tctx, errors.StoreFailed("metrics refresh", err))
	}
	quota, err := s.enforcer.EffectiveQuota(ctx, tctx.ClientAccountID)
	if err != nil {
		return model.TenantMetrics{}, model.TenantQuota{}, model.UsagePercentages{}, s.fail(op, tctx, errors.StoreFailed("quota load", err))
	}

	m := s.tracker.Snapshot(tctx.ClientAccountID)
	return m, quota, m.Usage(quota), nil
}

func (s *FlowService) tenantMeta(tctx model.TenantContext) model.TenantMeta {
	return model.TenantMeta{
		TenantID:       tctx.ClientAccountID,
		EngagementID:   tctx.EngagementID,
		IsolationLevel: s.validator.IsolationLevel(),
		Timestamp:      s.clock.Now(),
	}
}

func (s *FlowService) observe(op string, tctx model.TenantContext, start time.Time, outcome string) {
	if s.prom == nil {
		return
	}
	s.prom.OperationsTotal.WithLabelValues(op, tctx.ClientAccountID, outcome).Inc()
	s.prom.OperationDuration.WithLabelValues(op).Observe(s.clock.Since(start).Seconds())
}

func (s *FlowService) fail(op string, tctx model.TenantContext, err error) error {
	if s.prom != nil {
		s.prom.OperationsTotal.WithLabelValues(op, tctx.ClientAccountID, "error").Inc()
		s.prom.OperationErrors.WithLabelValues(op, errorType(err)).Inc()
	}
	return err
}

func errorType(err error) string {
	switch {
	case errors.IsQuotaExceeded(err):
		return "quota_exceeded"
	case errors.IsIsolation(err):
		return "isolation"
	case errors.IsDelegate(err):
		return "delegate"
	}
	return "internal"
}
