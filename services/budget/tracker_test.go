package budget

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openclaw/model-router/models"
	"github.com/openclaw/model-router/services"
)

func newTestTracker(t *testing.T, limit float64, opts ...Option) *Tracker {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	return NewTracker(TrackerConfig{
		DailyLimit:      limit,
		AlertThresholds: []float64{0.8, 1.0},
	}, nil, logger, opts...)
}

func TestTracker_ReserveCommit(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker(t, 10)

	res, err := tracker.Reserve(ctx, uuid.New(), "minimax", 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.Amount)
	assert.Equal(t, 7.0, tracker.Remaining())

	// Actual cost applies exactly, independent of the estimate
	require.NoError(t, tracker.Commit(ctx, res.ID, 2.5))

	snap := tracker.Snapshot()
	assert.Equal(t, 2.5, snap.Spent)
	assert.Equal(t, 0.0, snap.Reserved)
	assert.Equal(t, 7.5, snap.Remaining)
}

func TestTracker_Reserve_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("estimate exceeding remaining", func(t *testing.T) {
		tracker := newTestTracker(t, 10)

		res, err := tracker.Reserve(ctx, uuid.New(), "minimax", 6)
		require.NoError(t, err)
		require.NoError(t, tracker.Commit(ctx, res.ID, 6))

		_, err = tracker.Reserve(ctx, uuid.New(), "minimax", 6)
		require.Error(t, err)
		assert.True(t, services.IsBudgetError(err))
	})

	t.Run("zero remaining rejects even free calls", func(t *testing.T) {
		tracker := newTestTracker(t, 10)

		res, err := tracker.Reserve(ctx, uuid.New(), "opus", 10)
		require.NoError(t, err)
		require.NoError(t, tracker.Commit(ctx, res.ID, 10))

		_, err = tracker.Reserve(ctx, uuid.New(), "minimax", 0)
		require.Error(t, err)
		assert.True(t, services.IsBudgetError(err))
	})

	t.Run("pending reservations count against remaining", func(t *testing.T) {
		tracker := newTestTracker(t, 10)

		_, err := tracker.Reserve(ctx, uuid.New(), "opus", 8)
		require.NoError(t, err)

		_, err = tracker.Reserve(ctx, uuid.New(), "sonnet", 5)
		require.Error(t, err)
		assert.True(t, services.IsBudgetError(err))
	})

	t.Run("negative estimate is invalid input", func(t *testing.T) {
		tracker := newTestTracker(t, 10)

		_, err := tracker.Reserve(ctx, uuid.New(), "minimax", -1)
		require.Error(t, err)
		assert.True(t, services.IsValidationError(err))
	})
}

func TestTracker_Release(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker(t, 10)

	res, err := tracker.Reserve(ctx, uuid.New(), "sonnet", 4)
	require.NoError(t, err)
	require.Equal(t, 6.0, tracker.Remaining())

	require.NoError(t, tracker.Release(ctx, res.ID))

	snap := tracker.Snapshot()
	assert.Equal(t, 0.0, snap.Spent)
	assert.Equal(t, 10.0, snap.Remaining)

	t.Run("double release fails", func(t *testing.T) {
		err := tracker.Release(ctx, res.ID)
		require.Error(t, err)
		assert.True(t, services.IsNotFoundError(err))
	})

	t.Run("unknown reservation fails", func(t *testing.T) {
		err := tracker.Commit(ctx, uuid.New(), 1)
		require.Error(t, err)
		assert.True(t, services.IsNotFoundError(err))
	})
}

func TestTracker_CommitOverrun(t *testing.T) {
	// An actual cost above the estimate still commits in full; the
	// overrun surfaces as reduced remaining budget.
	ctx := context.Background()
	tracker := newTestTracker(t, 10)

	res, err := tracker.Reserve(ctx, uuid.New(), "opus", 2)
	require.NoError(t, err)
	require.NoError(t, tracker.Commit(ctx, res.ID, 5))

	snap := tracker.Snapshot()
	assert.Equal(t, 5.0, snap.Spent)
	assert.Equal(t, 5.0, snap.Remaining)
}

func TestTracker_ThresholdAlerts(t *testing.T) {
	ctx := context.Background()

	var fired []float64
	logger, _ := zap.NewDevelopment()
	tracker := NewTracker(TrackerConfig{
		DailyLimit:      10,
		AlertThresholds: []float64{0.8, 1.0},
	}, nil, logger, WithAlertFunc(func(threshold float64, snap models.BudgetSnapshot) {
		fired = append(fired, threshold)
	}))

	res, err := tracker.Reserve(ctx, uuid.New(), "opus", 7)
	require.NoError(t, err)
	require.NoError(t, tracker.Commit(ctx, res.ID, 7))
	assert.Empty(t, fired)

	res, err = tracker.Reserve(ctx, uuid.New(), "opus", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.8}, fired)

	// Committing more than reserved crosses 100%
	require.NoError(t, tracker.Commit(ctx, res.ID, 3))
	assert.Equal(t, []float64{0.8, 1.0}, fired)

	t.Run("each threshold fires once per day", func(t *testing.T) {
		_, err := tracker.Reserve(ctx, uuid.New(), "minimax", 1)
		require.Error(t, err)
		assert.Equal(t, []float64{0.8, 1.0}, fired)
	})
}

func TestTracker_DayRollover(t *testing.T) {
	ctx := context.Background()

	current := time.Date(2026, 8, 23, 22, 0, 0, 0, time.UTC)
	tracker := newTestTracker(t, 10, WithClock(func() time.Time { return current }))

	res, err := tracker.Reserve(ctx, uuid.New(), "opus", 4)
	require.NoError(t, err)
	require.NoError(t, tracker.Commit(ctx, res.ID, 9))

	// Budget nearly exhausted before midnight
	assert.Equal(t, 1.0, tracker.Remaining())

	// Stale reservation crossing midnight
	_, err = tracker.Reserve(ctx, uuid.New(), "minimax", 1)
	require.NoError(t, err)

	current = current.Add(4 * time.Hour) // past midnight

	snap := tracker.Snapshot()
	assert.Equal(t, "2026-08-24", snap.Date)
	assert.Equal(t, 0.0, snap.Spent)
	assert.Equal(t, 0.0, snap.Reserved)
	assert.Equal(t, 10.0, snap.Remaining)
}

func TestTracker_EffectiveRemaining(t *testing.T) {
	tracker := newTestTracker(t, 10)

	t.Run("nil override", func(t *testing.T) {
		assert.Equal(t, 10.0, tracker.EffectiveRemaining(nil))
	})

	t.Run("override narrows", func(t *testing.T) {
		override := 3.0
		assert.Equal(t, 3.0, tracker.EffectiveRemaining(&override))
	})

	t.Run("override never widens", func(t *testing.T) {
		override := 50.0
		assert.Equal(t, 10.0, tracker.EffectiveRemaining(&override))
	})
}

func TestTracker_UpdateLimits(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker(t, 10)

	res, err := tracker.Reserve(ctx, uuid.New(), "opus", 4)
	require.NoError(t, err)
	require.NoError(t, tracker.Commit(ctx, res.ID, 4))

	tracker.UpdateLimits(TrackerConfig{DailyLimit: 20, AlertThresholds: []float64{0.5}})

	// Spend carries over against the new limit
	snap := tracker.Snapshot()
	assert.Equal(t, 20.0, snap.DailyLimit)
	assert.Equal(t, 4.0, snap.Spent)
	assert.Equal(t, 16.0, snap.Remaining)
}
