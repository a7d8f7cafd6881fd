package classifier

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openclaw/model-router/models"
)

// typeRule maps keywords to a task type. Rules are evaluated in order and
// the first match wins, so more specific categories come first.
type typeRule struct {
	taskType models.TaskType
	keywords []string
}

// complexityRule maps keywords to a complexity tier.
type complexityRule struct {
	complexity models.Complexity
	keywords   []string
}

// defaultTypeRules is the built-in keyword table. Rules are ordered most
// specific first: review and architecture descriptions routinely contain
// generic code verbs ("implement a scalable architecture", "review this
// function"), so checking code_simple first would send them to the cheap
// tier. Debugging phrases route to code_complex: a production bug hunt
// wants the stronger model.
func defaultTypeRules() []typeRule {
	return []typeRule{
		{models.TaskCodeReview, []string{"review code", "review this code", "refactor", "audit"}},
		{models.TaskCodeComplex, []string{"architecture", "design system", "design a", "scale", "debug", "fix error", "solve bug"}},
		{models.TaskCodeSimple, []string{"write code", "create function", "implement", "function", "script", "boilerplate"}},
		{models.TaskImage, []string{"generate image", "create picture", "draw"}},
		{models.TaskData, []string{"analyze data", "process data", "dataset", "csv"}},
	}
}

func defaultComplexityRules() []complexityRule {
	return []complexityRule{
		{models.ComplexityLow, []string{"simple", "basic", "easy", "trivial"}},
		{models.ComplexityHigh, []string{"complex", "advanced", "architecture", "production"}},
	}
}

// Classifier maps a raw task description to a (task type, complexity)
// pair. Classification is a pure keyword heuristic: deterministic for
// identical input and configuration, and it never fails — unmatched input
// defaults to (chat, medium) so the pipeline always produces a decision.
type Classifier struct {
	typeRules       []typeRule
	complexityRules []complexityRule
	logger          *zap.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTypeKeywords prepends extra keywords for a task type. Configured
// keywords are checked before the built-in table.
func WithTypeKeywords(t models.TaskType, keywords []string) Option {
	return func(c *Classifier) {
		c.typeRules = append([]typeRule{{taskType: t, keywords: lowerAll(keywords)}}, c.typeRules...)
	}
}

// WithComplexityKeywords prepends extra keywords for a complexity tier.
func WithComplexityKeywords(cx models.Complexity, keywords []string) Option {
	return func(c *Classifier) {
		c.complexityRules = append([]complexityRule{{complexity: cx, keywords: lowerAll(keywords)}}, c.complexityRules...)
	}
}

// New creates a classifier with the built-in keyword tables.
func New(logger *zap.Logger, opts ...Option) *Classifier {
	c := &Classifier{
		typeRules:       defaultTypeRules(),
		complexityRules: defaultComplexityRules(),
		logger:          logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify builds a Task from the raw description. The DefaultApplied flag
// marks tasks whose type could not be inferred.
func (c *Classifier) Classify(description string) *models.Task {
	desc := strings.ToLower(description)

	taskType, typeMatched := c.matchType(desc)
	complexity := c.matchComplexity(desc)

	task := &models.Task{
		ID:             uuid.New(),
		Description:    description,
		Type:           taskType,
		Complexity:     complexity,
		DefaultApplied: !typeMatched,
		CreatedAt:      time.Now(),
	}

	if !typeMatched {
		c.logger.Debug("classification fallback applied",
			zap.String("task_id", task.ID.String()),
			zap.String("type", string(taskType)),
			zap.String("complexity", string(complexity)))
	}

	return task
}

func (c *Classifier) matchType(desc string) (models.TaskType, bool) {
	for _, rule := range c.typeRules {
		for _, kw := range rule.keywords {
			if strings.Contains(desc, kw) {
				return rule.taskType, true
			}
		}
	}
	return models.TaskChat, false
}

func (c *Classifier) matchComplexity(desc string) models.Complexity {
	for _, rule := range c.complexityRules {
		for _, kw := range rule.keywords {
			if strings.Contains(desc, kw) {
				return rule.complexity
			}
		}
	}
	return models.ComplexityMedium
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
