package budget

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openclaw/model-router/models"
	"github.com/openclaw/model-router/services"
)

// dayKeyFormat is the date key for budget periods (matches the store).
const dayKeyFormat = "2006-01-02"

// AlertFunc is invoked when spend crosses a configured threshold. Alerts
// fire at most once per threshold per day.
type AlertFunc func(threshold float64, snapshot models.BudgetSnapshot)

// TrackerConfig holds budget tracker configuration
type TrackerConfig struct {
	// DailyLimit is the spend ceiling per day
	DailyLimit float64

	// AlertThresholds are fractions of the daily limit (ascending)
	AlertThresholds []float64
}

// Tracker is the single authority over the date-scoped budget state. All
// mutation happens under one mutex, preserving the spend invariants under
// concurrent reservations: spend is monotonically non-decreasing within a
// day and never negative.
type Tracker struct {
	mu sync.Mutex

	dailyLimit   float64
	thresholds   []float64
	day          string
	spent        float64
	reserved     float64
	reservations map[uuid.UUID]*models.Reservation
	alerted      map[float64]bool

	store   *Store // nil when running memory-only
	alertFn AlertFunc
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the tracker's clock. Used by tests and by the
// scheduler to pin day boundaries.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithAlertFunc installs a notification hook for threshold alerts.
func WithAlertFunc(fn AlertFunc) Option {
	return func(t *Tracker) { t.alertFn = fn }
}

// NewTracker creates a budget tracker. store may be nil for memory-only
// operation.
func NewTracker(cfg TrackerConfig, store *Store, logger *zap.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		dailyLimit:   cfg.DailyLimit,
		thresholds:   cfg.AlertThresholds,
		reservations: make(map[uuid.UUID]*models.Reservation),
		alerted:      make(map[float64]bool),
		store:        store,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.day = t.now().Format(dayKeyFormat)
	return t
}

// Restore primes today's committed spend from the transaction store so a
// restart does not reopen an exhausted budget. No-op without a store.
func (t *Tracker) Restore(ctx context.Context) error {
	if t.store == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	spent, err := t.store.SpentOn(ctx, t.day)
	if err != nil {
		return err
	}

	t.spent = spent
	t.logger.Info("budget state restored from store",
		zap.String("day", t.day),
		zap.Float64("spent", spent))
	return nil
}

// Reserve places a provisional hold for an estimated cost. It returns a
// budget rejection when the estimate does not fit the remaining budget,
// and always rejects when nothing remains.
func (t *Tracker) Reserve(ctx context.Context, taskID uuid.UUID, modelID string, estimatedCost float64) (*models.Reservation, error) {
	if estimatedCost < 0 {
		return nil, services.ErrInvalidInput.WithDetail("estimated_cost", estimatedCost)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()

	remaining := t.dailyLimit - t.spent - t.reserved
	if remaining <= 0 || estimatedCost > remaining {
		t.logger.Warn("budget reservation rejected",
			zap.String("task_id", taskID.String()),
			zap.String("model", modelID),
			zap.Float64("estimated_cost", estimatedCost),
			zap.Float64("remaining", remaining))
		return nil, services.ErrBudgetExceeded.
			WithDetail("task_id", taskID.String()).
			WithDetail("model", modelID).
			WithDetail("estimated_cost", estimatedCost).
			WithDetail("remaining", remaining)
	}

	res := &models.Reservation{
		ID:        uuid.New(),
		TaskID:    taskID,
		ModelID:   modelID,
		Amount:    estimatedCost,
		CreatedAt: t.now(),
	}
	t.reservations[res.ID] = res
	t.reserved += estimatedCost

	t.checkThresholdsLocked()

	return res, nil
}

// Commit finalizes a reservation with the actual cost of the call. The
// actual amount is applied exactly, independent of the original estimate.
func (t *Tracker) Commit(ctx context.Context, reservationID uuid.UUID, actualCost float64) error {
	if actualCost < 0 {
		return services.ErrInvalidInput.WithDetail("actual_cost", actualCost)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()

	res, ok := t.reservations[reservationID]
	if !ok {
		return services.ErrReservationNotFound.WithDetail("reservation_id", reservationID.String())
	}

	delete(t.reservations, reservationID)
	t.reserved -= res.Amount
	if t.reserved < 0 {
		t.reserved = 0
	}
	t.spent += actualCost

	if t.store != nil {
		tx := Transaction{
			TaskID:        res.TaskID,
			ModelID:       res.ModelID,
			Cost:          actualCost,
			EstimatedCost: res.Amount,
			Day:           t.day,
			CreatedAt:     t.now(),
		}
		if err := t.store.InsertTransaction(ctx, tx); err != nil {
			// In-memory state is authoritative; the store is an audit
			// trail, so a persistence failure does not fail the commit.
			t.logger.Error("failed to persist budget transaction",
				zap.String("task_id", res.TaskID.String()),
				zap.Error(err))
		}
	}

	t.checkThresholdsLocked()

	return nil
}

// Release rolls back a reservation after an execution failure. Committed
// spend is untouched.
func (t *Tracker) Release(ctx context.Context, reservationID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()

	res, ok := t.reservations[reservationID]
	if !ok {
		return services.ErrReservationNotFound.WithDetail("reservation_id", reservationID.String())
	}

	delete(t.reservations, reservationID)
	t.reserved -= res.Amount
	if t.reserved < 0 {
		t.reserved = 0
	}

	return nil
}

// Remaining returns the currently spendable amount.
func (t *Tracker) Remaining() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()

	return remaining(t.dailyLimit, t.spent, t.reserved)
}

// EffectiveRemaining applies a per-request budget override. Overrides only
// narrow the effective budget, never widen it past the daily limit.
func (t *Tracker) EffectiveRemaining(override *float64) float64 {
	rem := t.Remaining()
	if override != nil && *override < rem {
		return *override
	}
	return rem
}

// Snapshot returns a read-only view of today's budget state.
func (t *Tracker) Snapshot() models.BudgetSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()

	return t.snapshotLocked()
}

// UpdateLimits applies new budget settings from a config reload. Spend and
// reservations carry over; alert latches reset so new thresholds can fire.
func (t *Tracker) UpdateLimits(cfg TrackerConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.dailyLimit = cfg.DailyLimit
	t.thresholds = cfg.AlertThresholds
	t.alerted = make(map[float64]bool)

	t.logger.Info("budget limits updated",
		zap.Float64("daily_limit", cfg.DailyLimit))
}

// ResetDay forces the day rollover check. The scheduler calls this at
// midnight; every operation also checks lazily.
func (t *Tracker) ResetDay() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
}

// rolloverLocked resets state when the calendar day has changed. Stale
// reservations from the previous day are dropped: their calls either
// committed before midnight or will release into the fresh day harmlessly.
func (t *Tracker) rolloverLocked() {
	today := t.now().Format(dayKeyFormat)
	if today == t.day {
		return
	}

	t.logger.Info("budget day rollover",
		zap.String("previous_day", t.day),
		zap.String("day", today),
		zap.Float64("final_spend", t.spent))

	t.day = today
	t.spent = 0
	t.reserved = 0
	t.reservations = make(map[uuid.UUID]*models.Reservation)
	t.alerted = make(map[float64]bool)
}

// checkThresholdsLocked fires alerts for any newly crossed thresholds.
// Crossing 100% does not block already-reserved calls; it only causes
// future reservations to be rejected.
func (t *Tracker) checkThresholdsLocked() {
	if t.dailyLimit <= 0 {
		return
	}

	usedFraction := (t.spent + t.reserved) / t.dailyLimit
	for _, threshold := range t.thresholds {
		if usedFraction < threshold || t.alerted[threshold] {
			continue
		}
		t.alerted[threshold] = true

		snap := t.snapshotLocked()
		t.logger.Warn("budget threshold crossed",
			zap.Float64("threshold", threshold),
			zap.Float64("spent", snap.Spent),
			zap.Float64("reserved", snap.Reserved),
			zap.Float64("daily_limit", snap.DailyLimit))

		if t.alertFn != nil {
			t.alertFn(threshold, snap)
		}
	}
}

func (t *Tracker) snapshotLocked() models.BudgetSnapshot {
	return models.BudgetSnapshot{
		Date:       t.day,
		DailyLimit: t.dailyLimit,
		Spent:      t.spent,
		Reserved:   t.reserved,
		Remaining:  remaining(t.dailyLimit, t.spent, t.reserved),
	}
}

func remaining(limit, spent, reserved float64) float64 {
	rem := limit - spent - reserved
	if rem < 0 {
		return 0
	}
	return rem
}
