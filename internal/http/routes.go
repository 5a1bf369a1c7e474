// Package httpx wires the HTTP surface of the dispatch orchestrator.
package httpx

import (
	"log/slog"
	"net/http"

	"github.com/dispatchlab/dispatch/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs     *service.JobService
	Webhooks *service.WebhookService
	Streams  *service.StreamService
	Logger   *slog.Logger // Logger for handler errors (optional)
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{Svc: services.Jobs}
	webhookHandlers := &WebhookHandlers{Svc: services.Webhooks}
	streamHandlers := &StreamHandlers{Svc: services.Streams, Logger: services.Logger}

	registerJobRoutes(mux, jobHandlers)
	registerWebhookRoutes(mux, webhookHandlers)
	registerStreamRoutes(mux, streamHandlers)
	mux.Handle("GET /health", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /health", http.HandlerFunc(healthHandler))

	return mux
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers) {
	mux.HandleFunc("POST /submit-job", h.SubmitJob)
	mux.HandleFunc("GET /job/{job_id}", h.GetJob)
}

func registerWebhookRoutes(mux *http.ServeMux, h *WebhookHandlers) {
	mux.HandleFunc("POST /webhook", h.Receive)
}

func registerStreamRoutes(mux *http.ServeMux, h *StreamHandlers) {
	mux.HandleFunc("GET /ws/{job_id}", h.Watch)
}
