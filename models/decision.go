package models

import (
	"time"

	"github.com/google/uuid"
)

// RoutingDecision is the outcome of rule evaluation for a single task.
// It always references a model that was present in the registry at
// decision time.
type RoutingDecision struct {
	// TaskID links the decision back to the task it was made for
	TaskID uuid.UUID `json:"task_id"`

	// ModelID is the selected model's registry identifier
	ModelID string `json:"model_id"`

	// MatchedRule names the routing rule that produced the selection, or
	// a ranking strategy name when no explicit rule matched
	MatchedRule string `json:"matched_rule"`

	// Reasoning is the human-readable explanation carried by the rule
	Reasoning string `json:"reasoning,omitempty"`

	// Fallbacks is the ordered list of alternative model IDs to try when
	// the primary candidate is rejected or fails
	Fallbacks []string `json:"fallbacks,omitempty"`

	// EstimatedCost is the projected cost of invoking the primary model
	EstimatedCost float64 `json:"estimated_cost"`

	// DecidedAt is when the decision was produced
	DecidedAt time.Time `json:"decided_at"`
}

// Candidates returns the full ordered candidate chain, primary first.
func (d *RoutingDecision) Candidates() []string {
	out := make([]string, 0, 1+len(d.Fallbacks))
	out = append(out, d.ModelID)
	for _, f := range d.Fallbacks {
		if f != d.ModelID {
			out = append(out, f)
		}
	}
	return out
}
