package handler

import (
	"encoding/json"
	"net/http"

	"github.com/attaboy/backoffice/internal/infra"
)

// HealthHandler returns a health check endpoint. A nil db reports healthy so the
// engine can run without reference storage in tests.
func HealthHandler(db infra.Pinger, eventsEnabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := infra.HealthCheck(r.Context(), db); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
				return
			}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "healthy",
			"events": eventsEnabled,
		})
	}
}
