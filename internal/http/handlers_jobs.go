package httpx

import (
	"errors"
	"net/http"

	"github.com/dispatchlab/dispatch/internal/domain/model"
	"github.com/dispatchlab/dispatch/internal/service"
)

// JobHandlers handles job submission and status requests.
type JobHandlers struct {
	Svc *service.JobService
}

// SubmitJob handles POST /submit-job.
// It acknowledges the job immediately; the compute handoff happens in the background.
func (h *JobHandlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	resp, err := h.Svc.Submit(r.Context(), req)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

// GetJob handles GET /job/{job_id}.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if jobID == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "validation",
			Err:     errors.New("job_id is required"),
		})
		return
	}

	resp, err := h.Svc.Get(r.Context(), jobID)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}
