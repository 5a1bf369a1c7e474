package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/dispatchlab/dispatch/internal/domain/model"
	"github.com/dispatchlab/dispatch/internal/service"
)

// WebhookHandlers handles status notifications pushed by the compute service.
type WebhookHandlers struct {
	Svc *service.WebhookService
}

// Receive handles POST /webhook.
//
// Any parseable delivery is acknowledged with 200: the compute service does
// not retry, so rejecting it would only lose it. The response body carries an
// informational message describing what happened. Only a body that is not
// JSON at all is refused. Unknown fields are tolerated since the sender's
// payload is not under our control.
func (h *WebhookHandlers) Receive(w http.ResponseWriter, r *http.Request) {
	var payload model.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return
	}

	message := h.Svc.Handle(r.Context(), payload)
	WriteJSON(w, http.StatusOK, map[string]string{"message": message})
}
