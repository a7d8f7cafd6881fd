package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/model-router/models"
	"github.com/openclaw/model-router/services"
)

func testDescriptors() []*models.ModelDescriptor {
	return []*models.ModelDescriptor{
		{
			ID:              "minimax",
			Name:            "MiniMax",
			Capabilities:    []models.TaskType{models.TaskCodeSimple, models.TaskChat},
			CostPer1MTokens: 30,
			EffortScore:     2,
			Available:       true,
		},
		{
			ID:              "opus",
			Name:            "Claude Opus",
			Capabilities:    []models.TaskType{models.TaskCodeComplex, models.TaskCodeReview},
			CostPer1MTokens: 1500,
			EffortScore:     9,
			Available:       true,
		},
		{
			ID:           "flux",
			Name:         "Flux Image",
			Capabilities: []models.TaskType{models.TaskImage},
			CostPerCall:  4,
			Available:    false,
		},
	}
}

func TestRegistry_Get(t *testing.T) {
	r := New(testDescriptors())

	t.Run("known model", func(t *testing.T) {
		d, err := r.Get("opus")
		require.NoError(t, err)
		assert.Equal(t, "Claude Opus", d.Name)
	})

	t.Run("unknown model", func(t *testing.T) {
		_, err := r.Get("gpt-9")
		require.Error(t, err)
		assert.True(t, services.IsNotFoundError(err))
	})
}

func TestRegistry_ByCapability(t *testing.T) {
	r := New(testDescriptors())

	t.Run("matching capability", func(t *testing.T) {
		got := r.ByCapability(models.TaskCodeSimple)
		require.Len(t, got, 1)
		assert.Equal(t, "minimax", got[0].ID)
	})

	t.Run("unavailable models excluded", func(t *testing.T) {
		got := r.ByCapability(models.TaskImage)
		assert.Empty(t, got)
	})

	t.Run("no capable model", func(t *testing.T) {
		got := r.ByCapability(models.TaskData)
		assert.Empty(t, got)
	})
}

func TestRegistry_Replace(t *testing.T) {
	r := New(testDescriptors())
	require.Equal(t, 3, r.Len())

	r.Replace([]*models.ModelDescriptor{
		{ID: "sonnet", Name: "Claude Sonnet", Capabilities: []models.TaskType{models.TaskChat}, Available: true},
	})

	assert.Equal(t, 1, r.Len())

	_, err := r.Get("opus")
	assert.Error(t, err)

	d, err := r.Get("sonnet")
	require.NoError(t, err)
	assert.Equal(t, "Claude Sonnet", d.Name)
}

func TestRegistry_List(t *testing.T) {
	r := New(testDescriptors())

	list := r.List()
	require.Len(t, list, 3)

	// Insertion order is preserved
	assert.Equal(t, "minimax", list[0].ID)
	assert.Equal(t, "opus", list[1].ID)
	assert.Equal(t, "flux", list[2].ID)
}
