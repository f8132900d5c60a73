package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/migratehq/flowgate/internal/model"
	"go.uber.org/zap"
)

const remoteRequestTimeout = 30 * time.Second

// Remote delegates flow execution to the migration engine's HTTP API.
// It covers only the Orchestrator capability; flow counts and ownership
// resolution stay with the durable flow store.
type Remote struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewRemote creates an orchestrator backed by the engine at baseURL
func NewRemote(baseURL string, logger *zap.Logger) *Remote {
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: remoteRequestTimeout},
		logger:  logger,
	}
}

type remoteCreateRequest struct {
	TenantID     string                 `json:"tenant_id"`
	FlowType     string                 `json:"flow_type"`
	Name         string                 `json:"name,omitempty"`
	Config       map[string]interface{} `json:"config,omitempty"`
	InitialState map[string]interface{} `json:"initial_state,omitempty"`
}

type remoteCreateResponse struct {
	FlowID  string                 `json:"flow_id"`
	Details map[string]interface{} `json:"details"`
}

type remoteExecuteRequest struct {
	Input     map[string]interface{} `json:"input,omitempty"`
	Overrides map[string]interface{} `json:"overrides,omitempty"`
}

type remoteListResponse struct {
	Flows []model.FlowSummary `json:"flows"`
}

type remoteDeleteResponse struct {
	FlowID      string    `json:"flow_id"`
	SoftDeleted bool      `json:"soft_deleted"`
	Reason      string    `json:"reason"`
	DeletedAt   time.Time `json:"deleted_at"`
}

// CreateFlow asks the engine to start a new flow for the tenant
func (r *Remote) CreateFlow(ctx context.Context, tenantID string, req CreateFlowRequest) (*CreateFlowResult, error) {
	var resp remoteCreateResponse
	err := r.do(ctx, http.MethodPost, "/v1/flows", remoteCreateRequest{
		TenantID:     tenantID,
		FlowType:     req.FlowType,
		Name:         req.Name,
		Config:       req.Config,
		InitialState: req.InitialState,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &CreateFlowResult{FlowID: resp.FlowID, Details: resp.Details}, nil
}

// ExecutePhase asks the engine to run the named phase of a flow
func (r *Remote) ExecutePhase(ctx context.Context, flowID, phaseName string, input, overrides map[string]interface{}) (map[string]interface{}, error) {
	path := fmt.Sprintf("/v1/flows/%s/phases/%s", url.PathEscape(flowID), url.PathEscape(phaseName))

	var result map[string]interface{}
	if err := r.do(ctx, http.MethodPost, path, remoteExecuteRequest{Input: input, Overrides: overrides}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListActiveFlows returns the tenant's non-terminal flows from the engine
func (r *Remote) ListActiveFlows(ctx context.Context, tenantID, flowType string, limit int) ([]model.FlowSummary, error) {
	q := url.Values{}
	q.Set("tenant_id", tenantID)
	if flowType != "" {
		q.Set("flow_type", flowType)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp remoteListResponse
	if err := r.do(ctx, http.MethodGet, "/v1/flows?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Flows, nil
}

// DeleteFlow asks the engine to delete a flow
func (r *Remote) DeleteFlow(ctx context.Context, flowID string, softDelete bool, reason string) (*DeleteFlowResult, error) {
	q := url.Values{}
	q.Set("soft_delete", strconv.FormatBool(softDelete))
	if reason != "" {
		q.Set("reason", reason)
	}
	path := fmt.Sprintf("/v1/flows/%s?%s", url.PathEscape(flowID), q.Encode())

	var resp remoteDeleteResponse
	if err := r.do(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return nil, err
	}
	return &DeleteFlowResult{
		FlowID:      resp.FlowID,
		SoftDeleted: resp.SoftDeleted,
		Reason:      resp.Reason,
		DeletedAt:   resp.DeletedAt,
	}, nil
}

func (r *Remote) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		r.logger.Warn("Engine returned an error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("engine returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode engine response: %w", err)
	}
	return nil
}
