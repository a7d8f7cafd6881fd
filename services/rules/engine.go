package rules

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/model-router/models"
	"github.com/openclaw/model-router/services"
	"github.com/openclaw/model-router/services/registry"
)

// Ranking strategy names recorded on decisions that matched no explicit rule.
const (
	strategyCheapest     = "rank:cheapest"
	strategyLowestEffort = "rank:lowest_effort"
)

// charsPerToken is the rough prompt-size heuristic used for cost estimates.
const charsPerToken = 4

// Rule maps a (task type, complexity) condition to a candidate ordering.
// Empty condition fields match anything; first matching rule wins.
type Rule struct {
	Name       string
	TaskType   models.TaskType
	Complexity models.Complexity
	Use        string
	Fallback   []string
	Reasoning  string
}

// Matches reports whether the rule applies to the task.
func (r *Rule) Matches(task *models.Task) bool {
	if r.TaskType != "" && r.TaskType != task.Type {
		return false
	}
	if r.Complexity != "" && r.Complexity != task.Complexity {
		return false
	}
	return true
}

// Config holds engine configuration derived from the routing file.
type Config struct {
	Rules             []Rule
	DefaultModel      string
	DailyLimit        float64
	LowBudgetFraction float64
}

// Engine ranks eligible models for a classified task under the current
// budget state. Evaluation is stateless apart from the outcome stats, so
// concurrent Select calls are safe.
type Engine struct {
	mu       sync.RWMutex
	cfg      Config
	registry *registry.Registry
	stats    *Stats
	logger   *zap.Logger
}

// NewEngine creates a rules engine over the given registry.
func NewEngine(cfg Config, reg *registry.Registry, stats *Stats, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		registry: reg,
		stats:    stats,
		logger:   logger,
	}
}

// Replace atomically swaps the rule set and budget parameters on config
// reload.
func (e *Engine) Replace(cfg Config) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
}

// Select produces a routing decision for the task given the remaining
// budget. It returns ErrNoEligibleModel when no capable model exists and
// no universal fallback is configured — it never silently picks an
// arbitrary model.
func (e *Engine) Select(task *models.Task, remainingBudget float64) (*models.RoutingDecision, error) {
	e.mu.RLock()
	cfg := e.cfg
	e.mu.RUnlock()

	chain, matchedRule, reasoning := e.buildChain(task, cfg, remainingBudget)

	// Universal fallback goes last when configured and capable of running
	// at all (availability checked like any other candidate).
	if cfg.DefaultModel != "" && !contains(chain, cfg.DefaultModel) {
		if d, err := e.registry.Get(cfg.DefaultModel); err == nil && d.Available {
			chain = append(chain, cfg.DefaultModel)
		}
	}

	if len(chain) == 0 {
		return nil, services.ErrNoEligibleModel.
			WithDetail("task_id", task.ID.String()).
			WithDetail("task_type", string(task.Type)).
			WithDetail("complexity", string(task.Complexity))
	}

	primary, err := e.registry.Get(chain[0])
	if err != nil {
		// Registry swapped between chain construction and lookup
		return nil, err
	}

	decision := &models.RoutingDecision{
		TaskID:        task.ID,
		ModelID:       primary.ID,
		MatchedRule:   matchedRule,
		Reasoning:     reasoning,
		Fallbacks:     chain[1:],
		EstimatedCost: primary.EstimateCost(estimateTokens(task.Description)),
		DecidedAt:     time.Now(),
	}

	e.logger.Debug("routing decision",
		zap.String("task_id", task.ID.String()),
		zap.String("model", decision.ModelID),
		zap.String("rule", decision.MatchedRule),
		zap.Strings("fallbacks", decision.Fallbacks),
		zap.Float64("estimated_cost", decision.EstimatedCost))

	return decision, nil
}

// buildChain returns the ordered candidate chain plus the rule or strategy
// that produced it.
func (e *Engine) buildChain(task *models.Task, cfg Config, remainingBudget float64) ([]string, string, string) {
	// Explicit rules first: first match wins.
	for i := range cfg.Rules {
		rule := &cfg.Rules[i]
		if !rule.Matches(task) {
			continue
		}

		chain := e.usableCandidates(append([]string{rule.Use}, rule.Fallback...), task.Type)
		if len(chain) == 0 {
			// Rule candidates all unavailable; fall through to ranking
			break
		}

		name := rule.Name
		if name == "" {
			name = "rule:" + string(task.Type) + "/" + string(task.Complexity)
		}
		return chain, name, rule.Reasoning
	}

	// No usable rule: rank capability-eligible models.
	eligible := e.registry.ByCapability(task.Type)
	if len(eligible) == 0 {
		return nil, "", ""
	}

	lowBudget := remainingBudget < cfg.LowBudgetFraction*cfg.DailyLimit
	tokens := estimateTokens(task.Description)

	strategy := strategyLowestEffort
	if lowBudget {
		strategy = strategyCheapest
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if lowBudget {
			ci, cj := eligible[i].EstimateCost(tokens), eligible[j].EstimateCost(tokens)
			if ci != cj {
				return ci < cj
			}
			return e.stats.EffectiveEffort(eligible[i]) < e.stats.EffectiveEffort(eligible[j])
		}
		ei, ej := e.stats.EffectiveEffort(eligible[i]), e.stats.EffectiveEffort(eligible[j])
		if ei != ej {
			return ei < ej
		}
		return eligible[i].EstimateCost(tokens) < eligible[j].EstimateCost(tokens)
	})

	chain := make([]string, 0, len(eligible))
	for _, d := range eligible {
		chain = append(chain, d.ID)
	}
	return chain, strategy, ""
}

// usableCandidates filters a rule's candidate list down to models that are
// present in the registry, available, and capable of the task type.
func (e *Engine) usableCandidates(ids []string, t models.TaskType) []string {
	var out []string
	for _, id := range ids {
		if contains(out, id) {
			continue
		}
		d, err := e.registry.Get(id)
		if err != nil {
			e.logger.Warn("rule references model missing from registry", zap.String("model", id))
			continue
		}
		if !d.Available || !d.Supports(t) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// estimateTokens is a cheap chars-to-tokens heuristic for cost estimation.
func estimateTokens(description string) int {
	n := len(description) / charsPerToken
	if n < 1 {
		n = 1
	}
	return n
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
