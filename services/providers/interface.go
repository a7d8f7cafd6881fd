package providers

import (
	"context"
	"time"
)

// InvokeRequest is a unified backend invocation request. Per-provider
// adapters translate it to the vendor SDK outside the core.
type InvokeRequest struct {
	// Model is the registry model identifier
	Model string `json:"model"`

	// Prompt is the task text to send to the backend
	Prompt string `json:"prompt"`

	// MaxTokens limits the response length; zero means provider default
	MaxTokens int `json:"max_tokens,omitempty"`
}

// InvokeResult is a unified backend invocation result.
type InvokeResult struct {
	// Output is the backend's response text
	Output string `json:"output"`

	// ActualCost is what the call actually cost, as reported or derived
	// by the adapter
	ActualCost float64 `json:"actual_cost"`

	// TokensUsed is the total token count for the call
	TokensUsed int `json:"tokens_used"`

	// Latency of the call
	Latency time.Duration `json:"latency"`
}

// Invoker is the abstract invocation capability: one adapter per backend,
// keeping the router decoupled from any specific provider SDK.
type Invoker interface {
	// Name returns the invoker name (e.g., "openai", "anthropic")
	Name() string

	// Invoke performs a single model call. Implementations must honor
	// ctx cancellation and deadlines.
	Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResult, error)
}

// InvokerError represents an error from a backend invocation
type InvokerError struct {
	// Provider that generated the error
	Provider string

	// Code is the provider-specific error code
	Code string

	// Message is the error message
	Message string

	// Retryable indicates if the call can be retried against a fallback
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *InvokerError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *InvokerError) Unwrap() error {
	return e.Cause
}

// NewInvokerError creates a new invoker error
func NewInvokerError(provider, code, message string, retryable bool, cause error) *InvokerError {
	return &InvokerError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if invErr, ok := err.(*InvokerError); ok {
		return invErr.Retryable
	}
	return false
}
