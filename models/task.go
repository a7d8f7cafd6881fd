package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskType is the coarse category of requested work.
type TaskType string

const (
	TaskCodeSimple  TaskType = "code_simple"
	TaskCodeComplex TaskType = "code_complex"
	TaskCodeReview  TaskType = "code_review"
	TaskImage       TaskType = "image"
	TaskData        TaskType = "data"
	TaskChat        TaskType = "chat"
)

// AllTaskTypes returns every recognized task type.
func AllTaskTypes() []TaskType {
	return []TaskType{
		TaskCodeSimple,
		TaskCodeComplex,
		TaskCodeReview,
		TaskImage,
		TaskData,
		TaskChat,
	}
}

// Valid reports whether t is a recognized task type.
func (t TaskType) Valid() bool {
	switch t {
	case TaskCodeSimple, TaskCodeComplex, TaskCodeReview, TaskImage, TaskData, TaskChat:
		return true
	}
	return false
}

// ParseTaskType parses a string into a TaskType.
func ParseTaskType(s string) (TaskType, error) {
	t := TaskType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown task type %q", s)
	}
	return t, nil
}

// Complexity is the coarse difficulty tier of a task.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Valid reports whether c is a recognized complexity tier.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return true
	}
	return false
}

// ParseComplexity parses a string into a Complexity.
func ParseComplexity(s string) (Complexity, error) {
	c := Complexity(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown complexity %q", s)
	}
	return c, nil
}

// Task is a single routing request. It is created per request and discarded
// once the routing decision has been recorded.
type Task struct {
	// ID uniquely identifies the task for tracing and budget records
	ID uuid.UUID `json:"id"`

	// Description is the raw task text supplied by the caller
	Description string `json:"description"`

	// Type is the inferred task type
	Type TaskType `json:"type"`

	// Complexity is the inferred difficulty tier
	Complexity Complexity `json:"complexity"`

	// DefaultApplied is set when the classifier could not match the
	// description and fell back to (chat, medium)
	DefaultApplied bool `json:"default_applied,omitempty"`

	// CreatedAt is when the task entered the pipeline
	CreatedAt time.Time `json:"created_at"`
}
