package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openclaw/model-router/models"
	"github.com/openclaw/model-router/services"
	"github.com/openclaw/model-router/services/registry"
)

func testRegistry() *registry.Registry {
	return registry.New([]*models.ModelDescriptor{
		{
			ID:              "minimax",
			Capabilities:    []models.TaskType{models.TaskCodeSimple, models.TaskChat, models.TaskData},
			CostPer1MTokens: 30,
			EffortScore:     2,
			Available:       true,
		},
		{
			ID:              "sonnet",
			Capabilities:    []models.TaskType{models.TaskCodeSimple, models.TaskCodeComplex, models.TaskCodeReview, models.TaskChat},
			CostPer1MTokens: 300,
			EffortScore:     5,
			Available:       true,
		},
		{
			ID:              "opus",
			Capabilities:    []models.TaskType{models.TaskCodeComplex, models.TaskCodeReview, models.TaskChat},
			CostPer1MTokens: 1500,
			EffortScore:     9,
			Available:       true,
		},
		{
			ID:           "flux",
			Capabilities: []models.TaskType{models.TaskImage},
			CostPerCall:  4,
			Available:    false,
		},
	})
}

func testTask(tt models.TaskType, cx models.Complexity) *models.Task {
	c := models.Task{
		Description: "test task description",
		Type:        tt,
		Complexity:  cx,
	}
	return &c
}

func newTestEngine(cfg Config, stats *Stats) *Engine {
	logger, _ := zap.NewDevelopment()
	if stats == nil {
		stats = NewStats()
	}
	return NewEngine(cfg, testRegistry(), stats, logger)
}

func TestEngine_Select_ExplicitRule(t *testing.T) {
	engine := newTestEngine(Config{
		Rules: []Rule{
			{
				Name:      "complex-to-opus",
				TaskType:  models.TaskCodeComplex,
				Use:       "opus",
				Fallback:  []string{"sonnet"},
				Reasoning: "hard problems need the strongest model",
			},
			{
				Name:     "catch-all-chat",
				TaskType: models.TaskChat,
				Use:      "minimax",
			},
		},
		DailyLimit:        100,
		LowBudgetFraction: 0.2,
	}, nil)

	t.Run("first matching rule wins", func(t *testing.T) {
		decision, err := engine.Select(testTask(models.TaskCodeComplex, models.ComplexityHigh), 100)
		require.NoError(t, err)

		assert.Equal(t, "opus", decision.ModelID)
		assert.Equal(t, "complex-to-opus", decision.MatchedRule)
		assert.Equal(t, []string{"sonnet"}, decision.Fallbacks)
		assert.Equal(t, "hard problems need the strongest model", decision.Reasoning)
		assert.Greater(t, decision.EstimatedCost, 0.0)
	})

	t.Run("non-matching rule skipped", func(t *testing.T) {
		decision, err := engine.Select(testTask(models.TaskChat, models.ComplexityLow), 100)
		require.NoError(t, err)

		assert.Equal(t, "minimax", decision.ModelID)
		assert.Equal(t, "catch-all-chat", decision.MatchedRule)
	})
}

func TestEngine_Select_RuleComplexityCondition(t *testing.T) {
	engine := newTestEngine(Config{
		Rules: []Rule{
			{
				Name:       "high-complexity-only",
				TaskType:   models.TaskCodeComplex,
				Complexity: models.ComplexityHigh,
				Use:        "opus",
			},
		},
		DailyLimit:        100,
		LowBudgetFraction: 0.2,
	}, nil)

	t.Run("matches when complexity matches", func(t *testing.T) {
		decision, err := engine.Select(testTask(models.TaskCodeComplex, models.ComplexityHigh), 100)
		require.NoError(t, err)
		assert.Equal(t, "high-complexity-only", decision.MatchedRule)
	})

	t.Run("falls through to ranking otherwise", func(t *testing.T) {
		decision, err := engine.Select(testTask(models.TaskCodeComplex, models.ComplexityMedium), 100)
		require.NoError(t, err)
		assert.Equal(t, strategyLowestEffort, decision.MatchedRule)
	})
}

func TestEngine_Select_Ranking(t *testing.T) {
	cfg := Config{DailyLimit: 100, LowBudgetFraction: 0.2}

	t.Run("healthy budget ranks by effort", func(t *testing.T) {
		engine := newTestEngine(cfg, nil)

		decision, err := engine.Select(testTask(models.TaskCodeComplex, models.ComplexityMedium), 80)
		require.NoError(t, err)

		// sonnet (effort 5) before opus (effort 9)
		assert.Equal(t, "sonnet", decision.ModelID)
		assert.Equal(t, []string{"opus"}, decision.Fallbacks)
		assert.Equal(t, strategyLowestEffort, decision.MatchedRule)
	})

	t.Run("low budget ranks by cost", func(t *testing.T) {
		engine := newTestEngine(cfg, nil)

		// 10 remaining of a 100 limit is below the 0.2 fraction
		decision, err := engine.Select(testTask(models.TaskChat, models.ComplexityLow), 10)
		require.NoError(t, err)

		assert.Equal(t, "minimax", decision.ModelID)
		assert.Equal(t, strategyCheapest, decision.MatchedRule)
	})

	t.Run("failure history raises effective effort", func(t *testing.T) {
		stats := NewStats()
		// sonnet failing every call pushes its effective effort past opus
		for i := 0; i < 10; i++ {
			stats.RecordFailure("sonnet")
		}
		engine := newTestEngine(cfg, stats)

		decision, err := engine.Select(testTask(models.TaskCodeComplex, models.ComplexityMedium), 80)
		require.NoError(t, err)

		assert.Equal(t, "opus", decision.ModelID)
	})
}

func TestEngine_Select_NoEligibleModel(t *testing.T) {
	engine := newTestEngine(Config{DailyLimit: 100, LowBudgetFraction: 0.2}, nil)

	// flux is the only image-capable model and it is unavailable
	_, err := engine.Select(testTask(models.TaskImage, models.ComplexityMedium), 100)

	require.Error(t, err)
	assert.True(t, services.IsNoEligibleModelError(err))
}

func TestEngine_Select_DefaultModel(t *testing.T) {
	t.Run("appended as universal fallback", func(t *testing.T) {
		engine := newTestEngine(Config{
			Rules: []Rule{
				{Name: "review", TaskType: models.TaskCodeReview, Use: "opus"},
			},
			DefaultModel:      "minimax",
			DailyLimit:        100,
			LowBudgetFraction: 0.2,
		}, nil)

		decision, err := engine.Select(testTask(models.TaskCodeReview, models.ComplexityMedium), 100)
		require.NoError(t, err)

		assert.Equal(t, "opus", decision.ModelID)
		assert.Contains(t, decision.Fallbacks, "minimax")
	})

	t.Run("rescues a task with no capable model", func(t *testing.T) {
		engine := newTestEngine(Config{
			DefaultModel:      "minimax",
			DailyLimit:        100,
			LowBudgetFraction: 0.2,
		}, nil)

		decision, err := engine.Select(testTask(models.TaskImage, models.ComplexityMedium), 100)
		require.NoError(t, err)
		assert.Equal(t, "minimax", decision.ModelID)
	})
}

func TestEngine_Select_RuleCandidatesUnavailable(t *testing.T) {
	// The rule's only candidate cannot serve image tasks once flux is
	// unavailable, so ranking takes over and finds nothing.
	engine := newTestEngine(Config{
		Rules: []Rule{
			{Name: "image", TaskType: models.TaskImage, Use: "flux"},
		},
		DailyLimit:        100,
		LowBudgetFraction: 0.2,
	}, nil)

	_, err := engine.Select(testTask(models.TaskImage, models.ComplexityMedium), 100)
	require.Error(t, err)
	assert.True(t, services.IsNoEligibleModelError(err))
}

func TestEngine_Replace(t *testing.T) {
	engine := newTestEngine(Config{DailyLimit: 100, LowBudgetFraction: 0.2}, nil)

	engine.Replace(Config{
		Rules: []Rule{
			{Name: "everything-to-minimax", Use: "minimax"},
		},
		DailyLimit:        100,
		LowBudgetFraction: 0.2,
	})

	decision, err := engine.Select(testTask(models.TaskChat, models.ComplexityLow), 100)
	require.NoError(t, err)
	assert.Equal(t, "everything-to-minimax", decision.MatchedRule)
}

func TestEngine_Select_CheapCapableModelWins(t *testing.T) {
	// A simple code task must land on the cheap capable model, never on an
	// expensive model that does not even list the capability.
	logger, _ := zap.NewDevelopment()
	reg := registry.New([]*models.ModelDescriptor{
		{
			ID:              "minimax",
			Capabilities:    []models.TaskType{models.TaskChat, models.TaskCodeSimple},
			CostPer1MTokens: 30,
			EffortScore:     2,
			Available:       true,
		},
		{
			ID:              "opus",
			Capabilities:    []models.TaskType{models.TaskCodeComplex},
			CostPer1MTokens: 1500,
			EffortScore:     9,
			Available:       true,
		},
	})
	engine := NewEngine(Config{DailyLimit: 10, LowBudgetFraction: 0.2}, reg, NewStats(), logger)

	task := &models.Task{
		Description: "write a simple Python function",
		Type:        models.TaskCodeSimple,
		Complexity:  models.ComplexityLow,
	}

	decision, err := engine.Select(task, 10)
	require.NoError(t, err)
	assert.Equal(t, "minimax", decision.ModelID)
	assert.Empty(t, decision.Fallbacks)
}

func TestStats_FailureRate(t *testing.T) {
	stats := NewStats()

	assert.Equal(t, 0.0, stats.FailureRate("sonnet"))

	stats.RecordSuccess("sonnet")
	stats.RecordFailure("sonnet")

	assert.InDelta(t, 0.5, stats.FailureRate("sonnet"), 1e-9)
}

func TestStats_EffectiveEffort(t *testing.T) {
	stats := NewStats()
	d := &models.ModelDescriptor{ID: "sonnet", EffortScore: 4}

	assert.Equal(t, 4.0, stats.EffectiveEffort(d))

	stats.RecordFailure("sonnet")
	// 100% failure rate doubles the base effort
	assert.InDelta(t, 8.0, stats.EffectiveEffort(d), 1e-9)
}
