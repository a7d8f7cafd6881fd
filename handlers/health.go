package handlers

import (
	"database/sql"
	"net/http"
)

// HealthResponse is the health/readiness response body
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck reports process liveness
func HealthCheck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	}
}

// ReadinessCheck reports whether the router can serve requests: the
// registry must be non-empty and, when configured, the database reachable.
func ReadinessCheck(registrySize func() int, db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registrySize() == 0 {
			respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "no models registered"})
			return
		}

		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "database unreachable"})
				return
			}
		}

		respondJSON(w, http.StatusOK, HealthResponse{Status: "ready"})
	}
}
