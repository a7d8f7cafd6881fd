package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestParseTaskType(t *testing.T) {
	t.Run("valid types", func(t *testing.T) {
		for _, tt := range AllTaskTypes() {
			parsed, err := ParseTaskType(string(tt))
			assert.NoError(t, err)
			assert.Equal(t, tt, parsed)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := ParseTaskType("video")
		assert.Error(t, err)
	})

	t.Run("empty string", func(t *testing.T) {
		_, err := ParseTaskType("")
		assert.Error(t, err)
	})
}

func TestParseComplexity(t *testing.T) {
	t.Run("valid tiers", func(t *testing.T) {
		for _, c := range []Complexity{ComplexityLow, ComplexityMedium, ComplexityHigh} {
			parsed, err := ParseComplexity(string(c))
			assert.NoError(t, err)
			assert.Equal(t, c, parsed)
		}
	})

	t.Run("unknown tier", func(t *testing.T) {
		_, err := ParseComplexity("extreme")
		assert.Error(t, err)
	})
}

func TestModelDescriptor_Supports(t *testing.T) {
	d := &ModelDescriptor{
		ID:           "sonnet",
		Capabilities: []TaskType{TaskCodeSimple, TaskCodeReview},
	}

	assert.True(t, d.Supports(TaskCodeSimple))
	assert.True(t, d.Supports(TaskCodeReview))
	assert.False(t, d.Supports(TaskImage))
}

func TestModelDescriptor_EstimateCost(t *testing.T) {
	t.Run("per-token pricing", func(t *testing.T) {
		d := &ModelDescriptor{CostPer1MTokens: 300}
		assert.InDelta(t, 0.3, d.EstimateCost(1000), 1e-9)
	})

	t.Run("flat pricing wins over per-token", func(t *testing.T) {
		d := &ModelDescriptor{CostPerCall: 4, CostPer1MTokens: 300}
		assert.Equal(t, 4.0, d.EstimateCost(1000))
	})

	t.Run("zero tokens with per-token pricing", func(t *testing.T) {
		d := &ModelDescriptor{CostPer1MTokens: 300}
		assert.Equal(t, 0.0, d.EstimateCost(0))
	})
}

func TestRoutingDecision_Candidates(t *testing.T) {
	t.Run("primary first then fallbacks", func(t *testing.T) {
		d := &RoutingDecision{
			TaskID:    uuid.New(),
			ModelID:   "opus",
			Fallbacks: []string{"sonnet", "minimax"},
		}
		assert.Equal(t, []string{"opus", "sonnet", "minimax"}, d.Candidates())
	})

	t.Run("primary deduplicated from fallbacks", func(t *testing.T) {
		d := &RoutingDecision{
			ModelID:   "opus",
			Fallbacks: []string{"opus", "sonnet"},
		}
		assert.Equal(t, []string{"opus", "sonnet"}, d.Candidates())
	})

	t.Run("no fallbacks", func(t *testing.T) {
		d := &RoutingDecision{ModelID: "opus"}
		assert.Equal(t, []string{"opus"}, d.Candidates())
	})
}
