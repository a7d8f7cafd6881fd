package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeConfig          ErrorType = "config"
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeClassification  ErrorType = "classification"
	ErrorTypeNoEligibleModel ErrorType = "no_eligible_model"
	ErrorTypeBudget          ErrorType = "budget"
	ErrorTypeExecution       ErrorType = "execution"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeUnauthorized    ErrorType = "unauthorized"
	ErrorTypeRateLimit       ErrorType = "rate_limit"
	ErrorTypeInternal        ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Configuration errors (fatal at startup)
	ErrConfigInvalid = NewDomainError(ErrorTypeConfig, "invalid routing configuration", nil)

	// Validation errors
	ErrInvalidInput      = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrEmptyDescription  = NewDomainError(ErrorTypeValidation, "task description cannot be empty", nil)
	ErrInvalidTaskType   = NewDomainError(ErrorTypeValidation, "invalid task type", nil)
	ErrInvalidComplexity = NewDomainError(ErrorTypeValidation, "invalid complexity tier", nil)

	// Not found errors
	ErrModelNotFound       = NewDomainError(ErrorTypeNotFound, "model not found in registry", nil)
	ErrReservationNotFound = NewDomainError(ErrorTypeNotFound, "budget reservation not found", nil)
	ErrInvokerNotFound     = NewDomainError(ErrorTypeNotFound, "no invoker bound to model", nil)

	// Routing errors
	ErrNoEligibleModel = NewDomainError(ErrorTypeNoEligibleModel, "no eligible model for task", nil)

	// Budget errors
	ErrBudgetExceeded = NewDomainError(ErrorTypeBudget, "daily budget exceeded", nil)

	// Execution errors
	ErrExecutionFailed   = NewDomainError(ErrorTypeExecution, "model invocation failed", nil)
	ErrInvocationTimeout = NewDomainError(ErrorTypeExecution, "model invocation timed out", nil)

	// Auth / rate limiting
	ErrUnauthorized = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrRateLimited  = NewDomainError(ErrorTypeRateLimit, "rate limit exceeded", nil)

	// Internal errors
	ErrInternal = NewDomainError(ErrorTypeInternal, "internal error", nil)
)

// Error type checking helper functions

// IsConfigError checks if an error is a configuration error
func IsConfigError(err error) bool {
	return hasType(err, ErrorTypeConfig)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsNoEligibleModelError checks if an error means no model could serve the task
func IsNoEligibleModelError(err error) bool {
	return hasType(err, ErrorTypeNoEligibleModel)
}

// IsBudgetError checks if an error is a budget rejection
func IsBudgetError(err error) bool {
	return hasType(err, ErrorTypeBudget)
}

// IsExecutionError checks if an error came from a backend invocation
func IsExecutionError(err error) bool {
	return hasType(err, ErrorTypeExecution)
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

func hasType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}
