package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents internal error codes for tenant isolation and
// admission control failures
type ErrorCode int

const (
	// Success
	ErrCodeOK ErrorCode = 0

	// Isolation errors (authorization class, never retried)
	ErrCodeMissingTenantContext ErrorCode = 1000
	ErrCodeTenantInactive       ErrorCode = 1001
	ErrCodeOwnershipMismatch    ErrorCode = 1002
	ErrCodeAdminRequired        ErrorCode = 1003
	ErrCodeFlowNotFound         ErrorCode = 1004

	// Quota errors (resource-exhaustion class, caller may retry later)
	ErrCodeQuotaExceeded ErrorCode = 2000

	// Delegate and internal errors
	ErrCodeDelegateFailed ErrorCode = 3000
	ErrCodeStoreFailed    ErrorCode = 3001
	ErrCodeInternal       ErrorCode = 3002
)

// FlowError is a structured error with a code and contextual details
type FlowError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e *FlowError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *FlowError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *FlowError) WithDetail(key string, value interface{}) *FlowError {
	e.Details[key] = value
	return e
}

// New creates a new FlowError
func New(code ErrorCode, message string, cause error) *FlowError {
	return &FlowError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Cause:   cause,
	}
}

// Convenience constructors

func MissingTenantContext(field string) *FlowError {
	return New(ErrCodeMissingTenantContext, fmt.Sprintf("tenant context is missing %s", field), nil).
		WithDetail("field", field)
}

func TenantInactive(tenantID string) *FlowError {
	return New(ErrCodeTenantInactive, fmt.Sprintf("tenant %s is not active", tenantID), nil).
		WithDetail("tenant_id", tenantID)
}

func OwnershipMismatch(tenantID, flowID string) *FlowError {
	return New(ErrCodeOwnershipMismatch,
		fmt.Sprintf("tenant %s does not own flow %s", tenantID, flowID), nil).
		WithDetail("tenant_id", tenantID).
		WithDetail("flow_id", flowID)
}

func AdminRequired(userID string) *FlowError {
	return New(ErrCodeAdminRequired,
		fmt.Sprintf("user %s lacks platform admin privileges", userID), nil).
		WithDetail("user_id", userID)
}

func FlowNotFound(flowID string) *FlowError {
	return New(ErrCodeFlowNotFound, fmt.Sprintf("flow not found: %s", flowID), nil).
		WithDetail("flow_id", flowID)
}

// QuotaExceeded reports a specific ceiling violation. Resource names the
// ceiling ("concurrent_flows", "daily_flows", "storage_mb", "cpu_units",
// "memory_mb"); used and limit carry the observed values.
func QuotaExceeded(tenantID, resource string, used, limit float64) *FlowError {
	return New(ErrCodeQuotaExceeded,
		fmt.Sprintf("quota exceeded for %s: %s at %g/%g", tenantID, resource, used, limit), nil).
		WithDetail("tenant_id", tenantID).
		WithDetail("resource", resource).
		WithDetail("used", used).
		WithDetail("limit", limit)
}

func DelegateFailed(operation string, cause error) *FlowError {
	return New(ErrCodeDelegateFailed, fmt.Sprintf("orchestrator %s failed", operation), cause).
		WithDetail("operation", operation)
}

func StoreFailed(operation string, cause error) *FlowError {
	return New(ErrCodeStoreFailed, fmt.Sprintf("store %s failed", operation), cause)
}

func Internal(message string, cause error) *FlowError {
	return New(ErrCodeInternal, message, cause)
}

// Classifier helpers

// IsIsolation reports whether err is an authorization-class isolation failure
func IsIsolation(err error) bool {
	code := GetCode(err)
	return code >= ErrCodeMissingTenantContext && code < ErrCodeQuotaExceeded
}

// IsQuotaExceeded reports whether err is a quota ceiling violation
func IsQuotaExceeded(err error) bool {
	return GetCode(err) == ErrCodeQuotaExceeded
}

// IsDelegate reports whether err originated in the orchestrator delegate
func IsDelegate(err error) bool {
	return GetCode(err) == ErrCodeDelegateFailed
}

// GetCode extracts the error code from an error, unwrapping as needed.
// Non-FlowError values map to ErrCodeInternal.
func GetCode(err error) ErrorCode {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ErrCodeInternal
}

// Resource returns the violated resource name from a quota error, or ""
func Resource(err error) string {
	var fe *FlowError
	if errors.As(err, &fe) && fe.Code == ErrCodeQuotaExceeded {
		if r, ok := fe.Details["resource"].(string); ok {
			return r
		}
	}
	return ""
}
