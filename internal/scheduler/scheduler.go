package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/openclaw/model-router/services/budget"
)

// retentionPeriod is how long committed budget transactions are kept
// before the nightly cleanup removes them.
const retentionPeriod = 90 * 24 * time.Hour

// Scheduler runs the periodic budget maintenance jobs: the midnight day
// rollover and the transaction store cleanup. The tracker also rolls the
// day lazily on first touch, so the cron job only makes the boundary
// prompt rather than correct.
type Scheduler struct {
	cron    *cron.Cron
	tracker *budget.Tracker
	store   *budget.Store
	logger  *zap.Logger
}

// New creates a scheduler over the budget tracker. store may be nil when
// running memory-only; the cleanup job is skipped in that case.
func New(tracker *budget.Tracker, store *budget.Store, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		tracker: tracker,
		store:   store,
		logger:  logger,
	}

	if _, err := s.cron.AddFunc("0 0 * * *", s.rolloverDay); err != nil {
		return nil, err
	}

	if store != nil {
		if _, err := s.cron.AddFunc("30 0 * * *", s.cleanupStore); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Start begins running scheduled jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("budget scheduler started")
}

// Stop halts the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("budget scheduler stopped")
}

func (s *Scheduler) rolloverDay() {
	s.tracker.ResetDay()
	s.logger.Info("budget day rolled over", zap.String("day", time.Now().Format("2006-01-02")))
}

func (s *Scheduler) cleanupStore() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := s.store.Cleanup(ctx, retentionPeriod)
	if err != nil {
		s.logger.Warn("budget transaction cleanup failed", zap.Error(err))
		return
	}
	s.logger.Info("budget transaction cleanup completed", zap.Int64("deleted", deleted))
}
