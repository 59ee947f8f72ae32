// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/magic-amatlan/backend/internal/storage"
	"github.com/magic-amatlan/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"dbConnected"`
	WSRunning   bool   `json:"wsRunning"`
	WSClients   int    `json:"wsClients"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db != nil && db.PingContext(r.Context()) == nil
		wsRunning := hub != nil && hub.Running()

		status := "healthy"
		if !dbConnected || !wsRunning {
			status = "degraded"
		}

		response := HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
			WSRunning:   wsRunning,
		}
		if hub != nil {
			response.WSClients = hub.ClientCount()
		}

		w.Header().Set("Content-Type", "application/json")
		if status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(response)
	}
}
