package models

import (
	"time"

	"github.com/google/uuid"
)

// Reservation is a provisional budget hold made before executing a call.
// It is finalized with Commit or rolled back with Release.
type Reservation struct {
	ID        uuid.UUID `json:"id"`
	TaskID    uuid.UUID `json:"task_id"`
	ModelID   string    `json:"model_id"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// BudgetSnapshot is a read-only view of the date-scoped budget state.
// Spend is monotonically non-decreasing within a day and never negative.
type BudgetSnapshot struct {
	// Date is the budget day key (YYYY-MM-DD)
	Date string `json:"date"`

	// DailyLimit is the configured spend ceiling for the day
	DailyLimit float64 `json:"daily_limit"`

	// Spent is the committed spend so far today
	Spent float64 `json:"spent"`

	// Reserved is the sum of outstanding reservations
	Reserved float64 `json:"reserved"`

	// Remaining is DailyLimit - Spent - Reserved, floored at zero
	Remaining float64 `json:"remaining"`
}
