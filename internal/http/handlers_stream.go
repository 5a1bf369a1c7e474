package httpx

import (
	"log/slog"
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/dispatchlab/dispatch/internal/domain/model"
	"github.com/dispatchlab/dispatch/internal/service"
)

// StreamHandlers serves live job status over WebSocket.
type StreamHandlers struct {
	Svc    *service.StreamService
	Logger *slog.Logger
}

// Watch handles GET /ws/{job_id}. The connection receives a JSON frame for
// the current state and for every subsequent change, then closes once the job
// reaches a terminal status.
func (h *StreamHandlers) Watch(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")

	srv := websocket.Server{
		// Accept any origin; the stream carries no credentials.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(ws *websocket.Conn) {
			defer func() {
				if closeErr := ws.Close(); closeErr != nil {
					_ = closeErr
				}
			}()

			err := h.Svc.Stream(r.Context(), jobID, func(frame model.StreamFrame) error {
				return websocket.JSON.Send(ws, frame)
			})
			if err != nil && h.Logger != nil {
				h.Logger.Error("status stream failed", "job_id", jobID, "error", err)
			}
		},
	}
	srv.ServeHTTP(w, r)
}
