package rules

import (
	"sync"

	"github.com/openclaw/model-router/models"
)

// outcome holds per-model success/failure counts.
type outcome struct {
	successes int
	failures  int
}

// Stats tracks invocation outcomes per model. The router reports outcomes
// here and the engine folds the observed failure rate into the effort
// ranking: a model that keeps failing costs more effort than its
// configured score suggests.
type Stats struct {
	mu       sync.RWMutex
	perModel map[string]outcome
}

// NewStats creates an empty outcome tracker.
func NewStats() *Stats {
	return &Stats{
		perModel: make(map[string]outcome),
	}
}

// RecordSuccess records a successful invocation for the model.
func (s *Stats) RecordSuccess(modelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o := s.perModel[modelID]
	o.successes++
	s.perModel[modelID] = o
}

// RecordFailure records a failed invocation for the model.
func (s *Stats) RecordFailure(modelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o := s.perModel[modelID]
	o.failures++
	s.perModel[modelID] = o
}

// FailureRate returns the observed failure rate in [0, 1]. Models with no
// history report zero.
func (s *Stats) FailureRate(modelID string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o := s.perModel[modelID]
	total := o.successes + o.failures
	if total == 0 {
		return 0
	}
	return float64(o.failures) / float64(total)
}

// EffectiveEffort is the effort differential used for ranking: the
// configured effort score scaled up by the observed failure rate.
func (s *Stats) EffectiveEffort(d *models.ModelDescriptor) float64 {
	return d.EffortScore * (1 + s.FailureRate(d.ID))
}
