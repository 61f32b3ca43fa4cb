package httpapi

import (
	"github.com/rafaeljc/switchboard/internal/ruleengine"
)

// EvaluateRequest is the body of POST /v1/evaluate and POST /v1/explain.
type EvaluateRequest struct {
	// Context holds the request attributes. Values must be strings,
	// numbers or booleans; null behaves like a missing attribute.
	Context map[string]any `json:"context"`
}

// EvaluateResponse is the body returned by POST /v1/evaluate.
type EvaluateResponse struct {
	Generation uint64         `json:"generation"`
	Values     map[string]any `json:"values"`
	Cached     bool           `json:"cached"`
}

// ExplainResponse is the body returned by POST /v1/explain.
type ExplainResponse = ruleengine.Result

// ErrorResponse represents a structured API error.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "ERR_INVALID_CONTEXT").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`

	// Details provides optional granular validation errors.
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail provides context about a specific invalid field.
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// Error codes.
const (
	CodeInvalidJSON     = "ERR_INVALID_JSON"
	CodeInvalidContext  = "ERR_INVALID_CONTEXT"
	CodePayloadTooLarge = "ERR_PAYLOAD_TOO_LARGE"
	CodeNotReady        = "ERR_NOT_READY"
	CodeUnauthorized    = "ERR_UNAUTHORIZED"
	CodeInternal        = "ERR_INTERNAL"
)
