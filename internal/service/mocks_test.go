package service

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/migratehq/flowgate/internal/config"
	"github.com/migratehq/flowgate/internal/metrics"
	"github.com/migratehq/flowgate/internal/model"
	"github.com/migratehq/flowgate/internal/orchestrator"
	"github.com/migratehq/flowgate/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockFlowStore is a mock implementation of store.FlowStore
type MockFlowStore struct {
	mock.Mock
}

func (m *MockFlowStore) CountActiveFlows(ctx context.Context, tenantID string) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

func (m *MockFlowStore) CountFlowsToday(ctx context.Context, tenantID string) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

func (m *MockFlowStore) ResolveOwner(ctx context.Context, flowID string) (string, error) {
	args := m.Called(ctx, flowID)
	return args.String(0), args.Error(1)
}

func (m *MockFlowStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockOrchestrator is a mock implementation of orchestrator.Orchestrator
type MockOrchestrator struct {
	mock.Mock
}

func (m *MockOrchestrator) CreateFlow(ctx context.Context, tenantID string, req orchestrator.CreateFlowRequest) (*orchestrator.CreateFlowResult, error) {
	args := m.Called(ctx, tenantID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orchestrator.CreateFlowResult), args.Error(1)
}

func (m *MockOrchestrator) ExecutePhase(ctx context.Context, flowID, phaseName string, input, overrides map[string]interface{}) (map[string]interface{}, error) {
	args := m.Called(ctx, flowID, phaseName, input, overrides)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

func (m *MockOrchestrator) ListActiveFlows(ctx context.Context, tenantID, flowType string, limit int) ([]model.FlowSummary, error) {
	args := m.Called(ctx, tenantID, flowType, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FlowSummary), args.Error(1)
}

func (m *MockOrchestrator) DeleteFlow(ctx context.Context, flowID string, softDelete bool, reason string) (*orchestrator.DeleteFlowResult, error) {
	args := m.Called(ctx, flowID, softDelete, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orchestrator.DeleteFlowResult), args.Error(1)
}

// fakeDirectory is an in-memory TenantDirectory
type fakeDirectory struct {
	mu     sync.RWMutex
	active map[string]bool
	admins map[string]bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		active: make(map[string]bool),
		admins: make(map[string]bool),
	}
}

func (d *fakeDirectory) IsActive(ctx context.Context, tenantID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.active[tenantID], nil
}

func (d *fakeDirectory) IsPlatformAdmin(ctx context.Context, userID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.admins[userID], nil
}

// memQuotaStore is an in-memory QuotaStore
type memQuotaStore struct {
	mu      sync.RWMutex
	quotas  map[string]model.TenantQuota
	tenants []string
}

func newMemQuotaStore() *memQuotaStore {
	return &memQuotaStore{quotas: make(map[string]model.TenantQuota)}
}

func (s *memQuotaStore) GetQuota(ctx context.Context, tenantID string) (model.TenantQuota, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotas[tenantID]
	if !ok {
		return model.TenantQuota{}, store.ErrNotFound
	}
	return q, nil
}

func (s *memQuotaStore) SetQuota(ctx context.Context, quota model.TenantQuota) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotas[quota.TenantID] = quota
	return nil
}

func (s *memQuotaStore) ListTenantIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.tenants...), nil
}

// testEnv wires the full service stack against the in-process
// orchestrator, which doubles as the flow store.
type testEnv struct {
	clock      *clock.Mock
	delegate   *orchestrator.Local
	directory  *fakeDirectory
	quotaStore *memQuotaStore
	ownership  *store.MemoryOwnershipCache
	cache      *store.TenantCache
	tracker    *MetricsTracker
	enforcer   *QuotaEnforcer
	validator  *AccessValidator
	flows      *FlowService
	admin      *AdminService
}

func newTestEnv(level model.IsolationLevel) *testEnv {
	logger := zap.NewNop()
	prom := metrics.NewMetricsWith(prometheus.NewRegistry())
	clk := clock.NewMock()

	delegate := orchestrator.NewLocal(logger)
	directory := newFakeDirectory()
	quotaStore := newMemQuotaStore()
	ownership := store.NewMemoryOwnershipCache()
	cache := store.NewTenantCache(64, 0, 0)

	tracker := NewMetricsTracker(delegate, ownership, cache, clk, prom, logger)
	reservations := NewReservationTable(prom)
	defaults := config.DefaultConfig().DefaultQuota
	enforcer := NewQuotaEnforcer(quotaStore, cache, tracker, reservations, defaults, prom, logger)
	validator := NewAccessValidator(delegate, directory, ownership, level, prom, logger)

	return &testEnv{
		clock:      clk,
		delegate:   delegate,
		directory:  directory,
		quotaStore: quotaStore,
		ownership:  ownership,
		cache:      cache,
		tracker:    tracker,
		enforcer:   enforcer,
		validator:  validator,
		flows:      NewFlowService(validator, enforcer, tracker, delegate, clk, prom, logger),
		admin:      NewAdminService(validator, enforcer, tracker, quotaStore, clk, logger),
	}
}

func (e *testEnv) activateTenant(tenantID string) {
	e.directory.mu.Lock()
	e.directory.active[tenantID] = true
	e.directory.mu.Unlock()
}

func (e *testEnv) grantAdmin(userID string) {
	e.directory.mu.Lock()
	e.directory.admins[userID] = true
	e.directory.mu.Unlock()
}

func tenantCtx(tenant string) model.TenantContext {
	return model.TenantContext{
		ClientAccountID: tenant,
		EngagementID:    "eng-1",
		UserID:          "user-1",
	}
}
