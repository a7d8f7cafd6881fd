package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openclaw/model-router/models"
	"github.com/openclaw/model-router/services"
)

// validate is the singleton validator instance for routing config
var validate = validator.New()

// RoutingConfig is the parsed and validated routing definition file. It
// carries the model catalog, the routing rules, and the budget settings.
type RoutingConfig struct {
	Budget       BudgetSection          `yaml:"budget" validate:"required"`
	Models       map[string]ModelEntry  `yaml:"models" validate:"required,min=1,dive"`
	RoutingRules []RuleEntry            `yaml:"routing_rules" validate:"dive"`
	DefaultModel string                 `yaml:"default_model"`
	MaxRetries   int                    `yaml:"max_retries" validate:"gte=0"`
	Invoke       InvokeSection          `yaml:"invoke"`
	Classifier   *ClassifierSection     `yaml:"classifier"`
}

// BudgetSection configures the daily budget and alerting
type BudgetSection struct {
	// DailyLimit is the spend ceiling per day, in account currency units
	DailyLimit float64 `yaml:"daily_limit" validate:"gt=0"`

	// AlertThresholds are fractions of the daily limit at which alerts
	// fire (e.g., 0.8, 1.0)
	AlertThresholds []float64 `yaml:"alert_thresholds" validate:"dive,gt=0,lte=1"`

	// LowBudgetFraction: when remaining budget drops below this fraction
	// of the daily limit, ranking switches to cost ascending
	LowBudgetFraction float64 `yaml:"low_budget_fraction" validate:"gte=0,lte=1"`
}

// ModelEntry is a single model definition in the catalog
type ModelEntry struct {
	Name            string   `yaml:"name" validate:"required"`
	Capabilities    []string `yaml:"capabilities" validate:"required,min=1"`
	CostPerCall     float64  `yaml:"cost_per_call" validate:"gte=0"`
	CostPer1MTokens float64  `yaml:"cost_per_1m_tokens" validate:"gte=0"`
	EffortScore     float64  `yaml:"effort_score" validate:"gte=0"`
	MaxContext      int      `yaml:"max_context" validate:"gte=0"`
	Priority        int      `yaml:"priority"`
	Available       *bool    `yaml:"available"`
}

// RuleEntry is a single routing rule. Empty When fields match anything;
// first matching rule wins.
type RuleEntry struct {
	Name      string      `yaml:"name"`
	When      WhenSection `yaml:"when"`
	Use       string      `yaml:"use" validate:"required"`
	Fallback  []string    `yaml:"fallback"`
	Reasoning string      `yaml:"reasoning"`
}

// WhenSection is the match condition of a routing rule
type WhenSection struct {
	TaskType   string `yaml:"task_type"`
	Complexity string `yaml:"complexity"`
}

// InvokeSection configures backend invocation behavior
type InvokeSection struct {
	// TimeoutSeconds caps a single backend call; zero means the default
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"gte=0"`
}

// Timeout returns the invocation timeout as a duration.
func (s InvokeSection) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// ClassifierSection carries optional keyword overrides for the classifier
type ClassifierSection struct {
	// TypeKeywords adds keywords per task type, checked before the
	// built-in tables
	TypeKeywords map[string][]string `yaml:"type_keywords"`

	// ComplexityKeywords adds keywords per complexity tier
	ComplexityKeywords map[string][]string `yaml:"complexity_keywords"`
}

// LoadRoutingConfig reads, parses, and validates the routing YAML.
// Any malformed descriptor or rule is a fatal config error.
func LoadRoutingConfig(path string) (*RoutingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeConfig,
			fmt.Sprintf("cannot read routing config %s", path), err)
	}

	var cfg RoutingConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, services.NewDomainError(services.ErrorTypeConfig,
			fmt.Sprintf("cannot parse routing config %s", path), err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults fills in omitted optional settings
func (c *RoutingConfig) applyDefaults() {
	if len(c.Budget.AlertThresholds) == 0 {
		c.Budget.AlertThresholds = []float64{0.8, 1.0}
	}
	sort.Float64s(c.Budget.AlertThresholds)
	if c.Budget.LowBudgetFraction == 0 {
		c.Budget.LowBudgetFraction = 0.2
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.Invoke.TimeoutSeconds == 0 {
		c.Invoke.TimeoutSeconds = 60
	}
}

// Validate checks structural constraints plus cross-references between
// rules, the default model, and the model catalog.
func (c *RoutingConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return services.NewDomainError(services.ErrorTypeConfig,
			"routing config failed validation", err)
	}

	for id, m := range c.Models {
		if id == "" {
			return services.NewDomainError(services.ErrorTypeConfig,
				"model identifier cannot be empty", nil)
		}
		if m.CostPerCall <= 0 && m.CostPer1MTokens <= 0 {
			return services.NewDomainError(services.ErrorTypeConfig,
				fmt.Sprintf("model %q needs a positive cost_per_call or cost_per_1m_tokens", id), nil)
		}
		for _, cap := range m.Capabilities {
			if _, err := models.ParseTaskType(cap); err != nil {
				return services.NewDomainError(services.ErrorTypeConfig,
					fmt.Sprintf("model %q has invalid capability", id), err)
			}
		}
	}

	for i, rule := range c.RoutingRules {
		if _, ok := c.Models[rule.Use]; !ok {
			return services.NewDomainError(services.ErrorTypeConfig,
				fmt.Sprintf("rule %d references unknown model %q", i, rule.Use), nil)
		}
		for _, fb := range rule.Fallback {
			if _, ok := c.Models[fb]; !ok {
				return services.NewDomainError(services.ErrorTypeConfig,
					fmt.Sprintf("rule %d fallback references unknown model %q", i, fb), nil)
			}
		}
		if rule.When.TaskType != "" {
			if _, err := models.ParseTaskType(rule.When.TaskType); err != nil {
				return services.NewDomainError(services.ErrorTypeConfig,
					fmt.Sprintf("rule %d has invalid task type", i), err)
			}
		}
		if rule.When.Complexity != "" {
			if _, err := models.ParseComplexity(rule.When.Complexity); err != nil {
				return services.NewDomainError(services.ErrorTypeConfig,
					fmt.Sprintf("rule %d has invalid complexity", i), err)
			}
		}
	}

	if c.DefaultModel != "" {
		if _, ok := c.Models[c.DefaultModel]; !ok {
			return services.NewDomainError(services.ErrorTypeConfig,
				fmt.Sprintf("default_model %q is not in the model catalog", c.DefaultModel), nil)
		}
	}

	return nil
}

// Descriptors converts the model catalog to immutable descriptors, sorted
// by priority then identifier for deterministic registry ordering.
func (c *RoutingConfig) Descriptors() []*models.ModelDescriptor {
	out := make([]*models.ModelDescriptor, 0, len(c.Models))
	for id, m := range c.Models {
		caps := make([]models.TaskType, 0, len(m.Capabilities))
		for _, cap := range m.Capabilities {
			t, err := models.ParseTaskType(cap)
			if err != nil {
				// Validate rejects these before Descriptors runs
				continue
			}
			caps = append(caps, t)
		}

		available := true
		if m.Available != nil {
			available = *m.Available
		}

		out = append(out, &models.ModelDescriptor{
			ID:              id,
			Name:            m.Name,
			Capabilities:    caps,
			CostPerCall:     m.CostPerCall,
			CostPer1MTokens: m.CostPer1MTokens,
			EffortScore:     m.EffortScore,
			MaxContext:      m.MaxContext,
			Priority:        m.Priority,
			Available:       available,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})

	return out
}
