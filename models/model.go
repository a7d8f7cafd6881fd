package models

// tokensPerMillion is the denominator for per-token pricing.
const tokensPerMillion = 1_000_000

// ModelDescriptor describes a routable LLM backend. Descriptors are built
// once from configuration and never mutated afterwards; the registry owns
// the mapping from identifier to descriptor.
type ModelDescriptor struct {
	// ID is the registry identifier (e.g., "minimax", "claude-opus")
	ID string `json:"id"`

	// Name is the human-readable model name
	Name string `json:"name"`

	// Capabilities lists the task types this model handles well
	Capabilities []TaskType `json:"capabilities"`

	// CostPerCall is a flat cost per invocation. When set it takes
	// precedence over CostPer1MTokens.
	CostPerCall float64 `json:"cost_per_call,omitempty"`

	// CostPer1MTokens is the cost per one million tokens
	CostPer1MTokens float64 `json:"cost_per_1m_tokens,omitempty"`

	// EffortScore is a heuristic measure of how much post-hoc correction
	// the model's output tends to require. Lower is better.
	EffortScore float64 `json:"effort_score"`

	// MaxContext is the context window size in tokens
	MaxContext int `json:"max_context,omitempty"`

	// Priority orders models with otherwise equal ranking. Lower wins.
	Priority int `json:"priority,omitempty"`

	// Available marks whether the backend is currently routable
	Available bool `json:"available"`
}

// Supports reports whether the model is capable of the given task type.
func (d *ModelDescriptor) Supports(t TaskType) bool {
	for _, c := range d.Capabilities {
		if c == t {
			return true
		}
	}
	return false
}

// EstimateCost estimates the cost of one invocation for a prompt of the
// given token count. Flat per-call pricing wins over per-token pricing.
func (d *ModelDescriptor) EstimateCost(promptTokens int) float64 {
	if d.CostPerCall > 0 {
		return d.CostPerCall
	}
	return d.CostPer1MTokens * float64(promptTokens) / tokensPerMillion
}
