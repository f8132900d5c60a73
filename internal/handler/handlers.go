// Package handler provides the HTTP surface for the flow facade. It does
// request plumbing only; all tenancy and admission decisions live in the
// service layer.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/migratehq/flowgate/internal/errors"
	"github.com/migratehq/flowgate/internal/model"
	"github.com/migratehq/flowgate/internal/orchestrator"
	"github.com/migratehq/flowgate/internal/service"
	"go.uber.org/zap"
)

// Tenant context request headers
const (
	HeaderClientAccountID = "X-Client-Account-ID"
	HeaderEngagementID    = "X-Engagement-ID"
	HeaderUserID          = "X-User-ID"
)

// Handlers contains all HTTP handlers and their dependencies
type Handlers struct {
	flows  *service.FlowService
	admin  *service.AdminService
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(flows *service.FlowService, admin *service.AdminService, logger *zap.Logger) *Handlers {
	return &Handlers{
		flows:  flows,
		admin:  admin,
		logger: logger,
	}
}

// Register attaches all routes to the mux
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/flows", h.CreateFlow)
	mux.HandleFunc("GET /v1/flows", h.ListFlows)
	mux.HandleFunc("POST /v1/flows/{flowID}/phases/{phase}", h.ExecutePhase)
	mux.HandleFunc("DELETE /v1/flows/{flowID}", h.DeleteFlow)
	mux.HandleFunc("GET /v1/tenant/metrics", h.GetTenantMetrics)
	mux.HandleFunc("PUT /v1/admin/tenants/{tenantID}/quota", h.SetTenantQuota)
	mux.HandleFunc("GET /v1/admin/tenants", h.GetAllTenantMetrics)
}

func tenantContext(r *http.Request) model.TenantContext {
	return model.TenantContext{
		ClientAccountID: r.Header.Get(HeaderClientAccountID),
		EngagementID:    r.Header.Get(HeaderEngagementID),
		UserID:          r.Header.Get(HeaderUserID),
	}
}

type createFlowBody struct {
	FlowType     string                 `json:"flow_type"`
	Name         string                 `json:"name"`
	Config       map[string]interface{} `json:"config"`
	InitialState map[string]interface{} `json:"initial_state"`
}

// CreateFlow handles POST /v1/flows
func (h *Handlers) CreateFlow(w http.ResponseWriter, r *http.Request) {
	var body createFlowBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	result, err := h.flows.CreateFlow(r.Context(), tenantContext(r), orchestrator.CreateFlowRequest{
		FlowType:     body.FlowType,
		Name:         body.Name,
		Config:       body.Config,
		InitialState: body.InitialState,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

type executePhaseBody struct {
	Input     map[string]interface{} `json:"input"`
	Overrides map[string]interface{} `json:"overrides"`
}

// ExecutePhase handles POST /v1/flows/{flowID}/phases/{phase}
func (h *Handlers) ExecutePhase(w http.ResponseWriter, r *http.Request) {
	var body executePhaseBody
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
			return
		}
	}

	result, err := h.flows.ExecutePhase(r.Context(), tenantContext(r),
		r.PathValue("flowID"), r.PathValue("phase"), body.Input, body.Overrides)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// ListFlows handles GET /v1/flows
func (h *Handlers) ListFlows(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	flows, meta, err := h.flows.ListFlows(r.Context(), tenantContext(r),
		r.URL.Query().Get("flow_type"), r.URL.Query().Get("status"), limit)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"flows":  flows,
		"tenant": meta,
	})
}

// DeleteFlow handles DELETE /v1/flows/{flowID}
func (h *Handlers) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	softDelete := true
	if raw := r.URL.Query().Get("soft_delete"); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			softDelete = b
		}
	}

	result, err := h.flows.DeleteFlow(r.Context(), tenantContext(r),
		r.PathValue("flowID"), softDelete, r.URL.Query().Get("reason"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// GetTenantMetrics handles GET /v1/tenant/metrics
func (h *Handlers) GetTenantMetrics(w http.ResponseWriter, r *http.Request) {
	m, quota, usage, err := h.flows.GetTenantMetrics(r.Context(), tenantContext(r))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"metrics":           m,
		"quota":             quota,
		"usage_percentages": usage,
	})
}

type quotaBody struct {
	MaxConcurrentFlows  int     `json:"max_concurrent_flows"`
	MaxFlowsPerDay      int     `json:"max_flows_per_day"`
	MaxStorageMB        int64   `json:"max_storage_mb"`
	MaxCPUUnits         float64 `json:"max_cpu_units"`
	MaxMemoryMB         int64   `json:"max_memory_mb"`
	MaxExecutionMinutes int     `json:"max_execution_minutes"`
	PriorityLevel       int     `json:"priority_level"`
}

// SetTenantQuota handles PUT /v1/admin/tenants/{tenantID}/quota
func (h *Handlers) SetTenantQuota(w http.ResponseWriter, r *http.Request) {
	var body quotaBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	applied, err := h.admin.SetTenantQuota(r.Context(), tenantContext(r),
		r.PathValue("tenantID"), model.TenantQuota{
			MaxConcurrentFlows:  body.MaxConcurrentFlows,
			MaxFlowsPerDay:      body.MaxFlowsPerDay,
			MaxStorageMB:        body.MaxStorageMB,
			MaxCPUUnits:         body.MaxCPUUnits,
			MaxMemoryMB:         body.MaxMemoryMB,
			MaxExecutionMinutes: body.MaxExecutionMinutes,
			PriorityLevel:       body.PriorityLevel,
		})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"quota":      applied,
		"applied_at": applied.UpdatedAt,
	})
}

// GetAllTenantMetrics handles GET /v1/admin/tenants
func (h *Handlers) GetAllTenantMetrics(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.admin.GetAllTenantMetrics(r.Context(), tenantContext(r))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tenants": summaries,
	})
}

// handleServiceError maps service error classes to HTTP statuses
func (h *Handlers) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.IsQuotaExceeded(err):
		h.writeError(w, http.StatusTooManyRequests, "quota_exceeded", err.Error())
	case errors.IsIsolation(err):
		h.writeError(w, http.StatusForbidden, "isolation_violation", err.Error())
	case errors.IsDelegate(err):
		h.writeError(w, http.StatusBadGateway, "delegate_failed", err.Error())
	default:
		h.logger.Error("Internal error handling request", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, code int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
