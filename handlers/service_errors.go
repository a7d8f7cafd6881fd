package handlers

import (
	"errors"
	"net/http"

	"github.com/openclaw/model-router/services"
	"github.com/openclaw/model-router/services/router"
)

// writeServiceError maps pipeline errors to HTTP responses. RouteError
// context (task, stage, model) is surfaced in the details so callers can
// diagnose without reading server logs.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := statusForError(err)

	resp := ErrorResponse{
		Error:   code,
		Message: err.Error(),
	}

	var routeErr *router.RouteError
	if errors.As(err, &routeErr) {
		details := map[string]interface{}{
			"stage": string(routeErr.Stage),
		}
		if routeErr.TaskID.String() != "00000000-0000-0000-0000-000000000000" {
			details["task_id"] = routeErr.TaskID.String()
		}
		if routeErr.Model != "" {
			details["model"] = routeErr.Model
		}
		resp.Details = details
	}

	var domainErr *services.DomainError
	if errors.As(err, &domainErr) && len(domainErr.Details) > 0 {
		if resp.Details == nil {
			resp.Details = make(map[string]interface{})
		}
		for k, v := range domainErr.Details {
			resp.Details[k] = v
		}
	}

	respondJSON(w, status, resp)
}

// statusForError maps a domain error category to an HTTP status
func statusForError(err error) (int, string) {
	var domainErr *services.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError, "internal_error"
	}

	switch domainErr.Type {
	case services.ErrorTypeValidation:
		return http.StatusBadRequest, "validation_error"
	case services.ErrorTypeNoEligibleModel:
		return http.StatusUnprocessableEntity, "no_eligible_model"
	case services.ErrorTypeBudget:
		return http.StatusPaymentRequired, "budget_exceeded"
	case services.ErrorTypeExecution:
		return http.StatusBadGateway, "execution_failed"
	case services.ErrorTypeNotFound:
		return http.StatusNotFound, "not_found"
	case services.ErrorTypeUnauthorized:
		return http.StatusUnauthorized, "unauthorized"
	case services.ErrorTypeRateLimit:
		return http.StatusTooManyRequests, "rate_limited"
	case services.ErrorTypeConfig:
		return http.StatusInternalServerError, "config_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
