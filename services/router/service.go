package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openclaw/model-router/internal/metrics"
	"github.com/openclaw/model-router/models"
	"github.com/openclaw/model-router/services"
	"github.com/openclaw/model-router/services/budget"
	"github.com/openclaw/model-router/services/classifier"
	"github.com/openclaw/model-router/services/providers"
	"github.com/openclaw/model-router/services/registry"
	"github.com/openclaw/model-router/services/rules"
)

// Stage identifies where a task is in the routing pipeline.
type Stage string

const (
	StageClassifying Stage = "classifying"
	StageSelecting   Stage = "selecting"
	StageBudgetCheck Stage = "budget_check"
	StageExecuting   Stage = "executing"
	StageRecording   Stage = "recording"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// RouteError wraps a pipeline failure with the task, stage, and attempted
// model so the caller can diagnose exactly where routing stopped.
type RouteError struct {
	TaskID uuid.UUID
	Stage  Stage
	Model  string
	Err    error
}

// Error implements the error interface
func (e *RouteError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("task %s failed at %s (model %s): %v", e.TaskID, e.Stage, e.Model, e.Err)
	}
	return fmt.Sprintf("task %s failed at %s: %v", e.TaskID, e.Stage, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *RouteError) Unwrap() error {
	return e.Err
}

// Options are per-request routing options.
type Options struct {
	// BudgetOverride narrows the effective remaining budget for this
	// request; it never widens the daily limit
	BudgetOverride *float64

	// Timeout caps a single backend invocation; zero uses the configured
	// default
	Timeout time.Duration

	// MaxTokens limits the response length
	MaxTokens int
}

// Result is the outcome of a fully executed task.
type Result struct {
	Task     *models.Task            `json:"task"`
	Decision *models.RoutingDecision `json:"decision"`

	// ModelID is the model that actually served the call; it differs
	// from the decision's primary when fallbacks were used
	ModelID string `json:"model_id"`

	Output     string        `json:"output"`
	ActualCost float64       `json:"actual_cost"`
	TokensUsed int           `json:"tokens_used"`
	Latency    time.Duration `json:"latency"`

	// Attempts is how many candidates were tried, including the winner
	Attempts int `json:"attempts"`

	// EffortScore of the serving model, reported back to the caller
	EffortScore float64 `json:"effort_score"`
}

// ServiceConfig holds router configuration derived from the routing file.
type ServiceConfig struct {
	// MaxRetries bounds fallback attempts beyond the first candidate
	MaxRetries int

	// InvokeTimeout is the default per-invocation timeout
	InvokeTimeout time.Duration
}

// Service orchestrates the routing pipeline per task:
// Classifying -> Selecting -> BudgetCheck -> Executing -> Recording -> Done,
// with Failed reachable from any stage.
type Service struct {
	cfg        ServiceConfig
	classifier *classifier.Classifier
	engine     *rules.Engine
	tracker    *budget.Tracker
	invokers   *providers.Registry
	registry   *registry.Registry
	stats      *rules.Stats
	logger     *zap.Logger
}

// NewService creates the orchestrator with all pipeline dependencies.
func NewService(
	cfg ServiceConfig,
	cls *classifier.Classifier,
	engine *rules.Engine,
	tracker *budget.Tracker,
	invokers *providers.Registry,
	reg *registry.Registry,
	stats *rules.Stats,
	logger *zap.Logger,
) *Service {
	return &Service{
		cfg:        cfg,
		classifier: cls,
		engine:     engine,
		tracker:    tracker,
		invokers:   invokers,
		registry:   reg,
		stats:      stats,
		logger:     logger,
	}
}

// UpdateConfig applies new retry/timeout settings on config reload.
func (s *Service) UpdateConfig(cfg ServiceConfig) {
	s.cfg = cfg
}

// Route classifies a task and produces a routing decision without invoking
// any backend.
func (s *Service) Route(ctx context.Context, description string, opts Options) (*models.Task, *models.RoutingDecision, error) {
	// Classifying
	if strings.TrimSpace(description) == "" {
		return nil, nil, &RouteError{Stage: StageClassifying, Err: services.ErrEmptyDescription}
	}
	task := s.classifier.Classify(description)

	s.logger.Info("task classified",
		zap.String("task_id", task.ID.String()),
		zap.String("type", string(task.Type)),
		zap.String("complexity", string(task.Complexity)),
		zap.Bool("default_applied", task.DefaultApplied))

	// Selecting
	remaining := s.tracker.EffectiveRemaining(opts.BudgetOverride)
	decision, err := s.engine.Select(task, remaining)
	if err != nil {
		return task, nil, &RouteError{TaskID: task.ID, Stage: StageSelecting, Err: err}
	}

	metrics.DecisionsTotal.WithLabelValues(decision.ModelID, decision.MatchedRule).Inc()

	return task, decision, nil
}

// Execute runs the full pipeline: classify, select, then walk the candidate
// chain under budget control until one invocation succeeds. Attempts are
// bounded by the chain length and the configured retry budget, so every
// task terminates in Done or Failed.
func (s *Service) Execute(ctx context.Context, description string, opts Options) (*Result, error) {
	task, decision, err := s.Route(ctx, description, opts)
	if err != nil {
		return nil, err
	}

	chain := decision.Candidates()
	maxAttempts := len(chain)
	if limit := s.cfg.MaxRetries + 1; limit < maxAttempts {
		maxAttempts = limit
	}

	var (
		lastErr    error
		lastModel  string
		attempts   int
		budgetOnly = true
	)

	for _, modelID := range chain[:maxAttempts] {
		attempts++
		lastModel = modelID

		result, attemptErr, budgetRejected := s.attempt(ctx, task, modelID, opts)
		if attemptErr == nil {
			// Recording
			s.record(task, decision, modelID, result, attempts)
			return &Result{
				Task:        task,
				Decision:    decision,
				ModelID:     modelID,
				Output:      result.Output,
				ActualCost:  result.ActualCost,
				TokensUsed:  result.TokensUsed,
				Latency:     result.Latency,
				Attempts:    attempts,
				EffortScore: s.effortOf(modelID),
			}, nil
		}

		lastErr = attemptErr
		if !budgetRejected {
			budgetOnly = false
			// Non-retryable execution failures stop the fallback walk
			if !retryable(attemptErr) {
				break
			}
		}
	}

	// Failed
	stage := StageExecuting
	base := services.ErrExecutionFailed
	if budgetOnly {
		stage = StageBudgetCheck
		base = services.ErrBudgetExceeded
	}

	s.logger.Error("task failed after exhausting candidates",
		zap.String("task_id", task.ID.String()),
		zap.Int("attempts", attempts),
		zap.String("last_model", lastModel),
		zap.Error(lastErr))

	return nil, &RouteError{
		TaskID: task.ID,
		Stage:  stage,
		Model:  lastModel,
		Err:    services.NewDomainError(base.Type, base.Message, lastErr).
			WithDetail("attempts", attempts),
	}
}

// attempt reserves budget for one candidate and invokes it. The bool
// result reports a budget rejection, which advances the fallback walk
// without consuming the retry budget's failure semantics.
func (s *Service) attempt(ctx context.Context, task *models.Task, modelID string, opts Options) (*providers.InvokeResult, error, bool) {
	descriptor, err := s.registry.Get(modelID)
	if err != nil {
		return nil, err, false
	}

	estimated := descriptor.EstimateCost(estimateTokens(task.Description))

	// BudgetCheck: a per-request override narrows the effective budget
	// before the tracker sees the reservation.
	if opts.BudgetOverride != nil && estimated > *opts.BudgetOverride {
		metrics.ReservationsRejected.Inc()
		return nil, services.ErrBudgetExceeded.
			WithDetail("task_id", task.ID.String()).
			WithDetail("model", modelID).
			WithDetail("budget_override", *opts.BudgetOverride), true
	}

	reservation, err := s.tracker.Reserve(ctx, task.ID, modelID, estimated)
	if err != nil {
		if services.IsBudgetError(err) {
			metrics.ReservationsRejected.Inc()
			return nil, err, true
		}
		return nil, err, false
	}

	// Executing
	invoker, err := s.invokers.ForModel(modelID)
	if err != nil {
		s.releaseQuiet(ctx, task, reservation.ID)
		return nil, services.ErrInvokerNotFound.WithDetail("model", modelID), false
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.cfg.InvokeTimeout
	}
	invokeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, err := invoker.Invoke(invokeCtx, &providers.InvokeRequest{
		Model:     modelID,
		Prompt:    task.Description,
		MaxTokens: opts.MaxTokens,
	})
	if err != nil {
		// The provider may still bill for a timed-out call; the budget
		// store's audit trail supports reconciling that asynchronously.
		s.releaseQuiet(ctx, task, reservation.ID)
		s.stats.RecordFailure(modelID)
		metrics.InvocationsTotal.WithLabelValues(modelID, "error").Inc()

		if errors.Is(err, context.DeadlineExceeded) || invokeCtx.Err() == context.DeadlineExceeded {
			return nil, services.NewDomainError(services.ErrorTypeExecution,
				services.ErrInvocationTimeout.Message, err).
				WithDetail("model", modelID).
				WithDetail("timeout", timeout.String()), false
		}
		return nil, services.NewDomainError(services.ErrorTypeExecution,
			fmt.Sprintf("invocation of %s failed", modelID), err), false
	}

	metrics.InvocationsTotal.WithLabelValues(modelID, "success").Inc()
	metrics.InvocationLatency.Observe(time.Since(start).Seconds())

	// Commit the ACTUAL cost, independent of the estimate.
	if err := s.tracker.Commit(ctx, reservation.ID, result.ActualCost); err != nil {
		s.logger.Error("failed to commit reservation",
			zap.String("task_id", task.ID.String()),
			zap.String("reservation_id", reservation.ID.String()),
			zap.Error(err))
	}

	return result, nil, false
}

// record finishes the Recording stage: outcome stats and metrics.
func (s *Service) record(task *models.Task, decision *models.RoutingDecision, modelID string, result *providers.InvokeResult, attempts int) {
	s.stats.RecordSuccess(modelID)
	metrics.FallbackAttempts.Observe(float64(attempts))

	snap := s.tracker.Snapshot()
	metrics.BudgetSpent.Set(snap.Spent)
	metrics.BudgetRemaining.Set(snap.Remaining)

	s.logger.Info("task routed and executed",
		zap.String("task_id", task.ID.String()),
		zap.String("model", modelID),
		zap.String("rule", decision.MatchedRule),
		zap.Int("attempts", attempts),
		zap.Float64("actual_cost", result.ActualCost),
		zap.Float64("budget_remaining", snap.Remaining))
}

func (s *Service) releaseQuiet(ctx context.Context, task *models.Task, reservationID uuid.UUID) {
	if err := s.tracker.Release(ctx, reservationID); err != nil {
		s.logger.Error("failed to release reservation",
			zap.String("task_id", task.ID.String()),
			zap.String("reservation_id", reservationID.String()),
			zap.Error(err))
	}
}

func (s *Service) effortOf(modelID string) float64 {
	if d, err := s.registry.Get(modelID); err == nil {
		return d.EffortScore
	}
	return 0
}

// retryable reports whether the fallback walk should continue after this
// error. Provider-flagged retryable errors and timeouts advance to the
// next candidate.
func retryable(err error) bool {
	var invErr *providers.InvokerError
	if errors.As(err, &invErr) {
		return invErr.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) && domainErr.Type == services.ErrorTypeExecution {
		// Timeouts are wrapped as execution errors with a deadline cause
		return errors.Is(domainErr.Err, context.DeadlineExceeded) || providers.IsRetryable(domainErr.Err)
	}
	return false
}

// estimateTokens mirrors the rules engine's chars-to-tokens heuristic.
func estimateTokens(description string) int {
	n := len(description) / 4
	if n < 1 {
		n = 1
	}
	return n
}
