package handlers

import (
	"net/http"

	"github.com/openclaw/model-router/models"
)

// BudgetReader exposes the budget state the handlers need
type BudgetReader interface {
	Snapshot() models.BudgetSnapshot
}

// BudgetHandler returns a snapshot of today's budget state
func BudgetHandler(tracker BudgetReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, tracker.Snapshot())
	}
}
