package httpx

import (
	"net/http"
	"time"
)

// healthHandler handles GET /health.
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"message":   "dispatch service is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
