package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/model-router/models"
	"github.com/openclaw/model-router/services/router"
	"github.com/openclaw/model-router/utils"
)

// RouteRequest is the request body for both the route and complete endpoints
type RouteRequest struct {
	// Description is the raw task text
	Description string `json:"description" validate:"required"`

	// BudgetOverride narrows the budget for this request only
	BudgetOverride *float64 `json:"budget_override,omitempty" validate:"omitempty,gt=0"`

	// MaxTokens limits the response length
	MaxTokens int `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`

	// TimeoutMs caps the backend invocation for this request
	TimeoutMs int `json:"timeout_ms,omitempty" validate:"omitempty,gt=0"`
}

// RouteResponse is the decision-only response
type RouteResponse struct {
	Task     *models.Task            `json:"task"`
	Decision *models.RoutingDecision `json:"decision"`
}

// RouterService defines the routing operations the handlers need
type RouterService interface {
	// Route classifies a task and produces a decision without invoking a backend
	Route(ctx context.Context, description string, opts router.Options) (*models.Task, *models.RoutingDecision, error)

	// Execute runs the full pipeline including backend invocation
	Execute(ctx context.Context, description string, opts router.Options) (*router.Result, error)
}

// RouteHandler returns the routing decision for a task without executing it
func RouteHandler(svc RouterService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeRouteRequest(w, r)
		if !ok {
			return
		}

		task, decision, err := svc.Route(r.Context(), req.Description, optionsFrom(req))
		if err != nil {
			logger.Warn("route request failed", zap.Error(err))
			writeServiceError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, RouteResponse{Task: task, Decision: decision})
	}
}

// CompleteHandler routes a task and invokes the selected backend
func CompleteHandler(svc RouterService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeRouteRequest(w, r)
		if !ok {
			return
		}

		result, err := svc.Execute(r.Context(), req.Description, optionsFrom(req))
		if err != nil {
			logger.Warn("complete request failed", zap.Error(err))
			writeServiceError(w, err)
			return
		}

		respondJSON(w, http.StatusOK, result)
	}
}

// decodeRouteRequest decodes and validates the request body
func decodeRouteRequest(w http.ResponseWriter, r *http.Request) (*RouteRequest, bool) {
	var req RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return nil, false
	}

	if err := utils.ValidateStruct(&req); err != nil {
		var validationErr *utils.ValidationError
		if errors.As(err, &validationErr) {
			respondJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: validationErr.Message,
				Details: validationErr.FieldDetails(),
			})
			return nil, false
		}
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return nil, false
	}

	return &req, true
}

func optionsFrom(req *RouteRequest) router.Options {
	return router.Options{
		BudgetOverride: req.BudgetOverride,
		Timeout:        time.Duration(req.TimeoutMs) * time.Millisecond,
		MaxTokens:      req.MaxTokens,
	}
}
