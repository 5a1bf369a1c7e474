package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dispatchlab/dispatch/config"
	"github.com/dispatchlab/dispatch/internal/core"
	"github.com/dispatchlab/dispatch/internal/domain/model"
	apperrors "github.com/dispatchlab/dispatch/internal/errors"
	"github.com/dispatchlab/dispatch/internal/mocks"
	"github.com/dispatchlab/dispatch/internal/service"
)

type jobHandlerMocks struct {
	repo    *mocks.MockJobRepository
	client  *mocks.MockComputeClient
	pollers *mocks.MockPollerStarter
}

func newJobHandlers(t *testing.T) (*JobHandlers, jobHandlerMocks, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := jobHandlerMocks{
		repo:    mocks.NewMockJobRepository(ctrl),
		client:  mocks.NewMockComputeClient(ctrl),
		pollers: mocks.NewMockPollerStarter(ctrl),
	}
	svc, err := service.NewJobService(service.JobServiceOptions{
		Repo:    m.repo,
		Client:  m.client,
		Pollers: m.pollers,
		Config: config.ComputeConfig{
			WebhookURL:    "https://dispatch.example.com/webhook",
			SubmitTimeout: 5 * time.Second,
		},
	})
	require.NoError(t, err)
	return &JobHandlers{Svc: svc}, m, ctrl
}

func TestSubmitJob_Success(t *testing.T) {
	h, m, ctrl := newJobHandlers(t)
	defer ctrl.Finish()

	handoff := make(chan struct{})

	m.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	m.client.EXPECT().
		Run(gomock.Any(), gomock.Any()).
		Return(&core.RunResponse{ID: "ext-1", Status: "IN_QUEUE"}, nil)
	m.repo.EXPECT().
		Update(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&model.JobRecord{ID: "job-1", Status: model.StatusSubmitted}, nil)
	m.pollers.EXPECT().
		Start(gomock.Any(), "ext-1").
		Do(func(string, string) { close(handoff) })

	b, _ := json.Marshal(model.SubmitJobRequest{Prompt: "summarize this"})
	r := httptest.NewRequest(http.MethodPost, "/submit-job", bytes.NewReader(b))
	w := httptest.NewRecorder()

	h.SubmitJob(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got model.JobResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.NotEmpty(t, got.JobID)
	assert.Equal(t, model.StatusPending, got.Status)

	select {
	case <-handoff:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for background handoff")
	}
}

func TestSubmitJob_InvalidJSON(t *testing.T) {
	h, _, ctrl := newJobHandlers(t)
	defer ctrl.Finish()

	r := httptest.NewRequest(http.MethodPost, "/submit-job", bytes.NewBufferString("{bad"))
	w := httptest.NewRecorder()

	h.SubmitJob(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitJob_EmptyPrompt(t *testing.T) {
	h, _, ctrl := newJobHandlers(t)
	defer ctrl.Finish()

	r := httptest.NewRequest(http.MethodPost, "/submit-job", bytes.NewBufferString(`{"prompt":""}`))
	w := httptest.NewRecorder()

	h.SubmitJob(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "validation", body["error"])
}

func TestGetJob_Success(t *testing.T) {
	h, m, ctrl := newJobHandlers(t)
	defer ctrl.Finish()

	result := `{"answer":42}`
	m.repo.EXPECT().
		GetByID(gomock.Any(), "job-1").
		Return(&model.JobRecord{ID: "job-1", Status: model.StatusCompleted, Result: &result}, nil)

	r := httptest.NewRequest(http.MethodGet, "/job/job-1", nil)
	r.SetPathValue("job_id", "job-1")
	w := httptest.NewRecorder()

	h.GetJob(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.JSONEq(t, `"job-1"`, string(got["job_id"]))
	assert.JSONEq(t, `"COMPLETED"`, string(got["status"]))
	assert.JSONEq(t, `{"answer":42}`, string(got["result"]))
}

func TestGetJob_UnparseableResultStillServed(t *testing.T) {
	h, m, ctrl := newJobHandlers(t)
	defer ctrl.Finish()

	result := "plain text, not json"
	m.repo.EXPECT().
		GetByID(gomock.Any(), "job-1").
		Return(&model.JobRecord{ID: "job-1", Status: model.StatusCompleted, Result: &result}, nil)

	r := httptest.NewRequest(http.MethodGet, "/job/job-1", nil)
	r.SetPathValue("job_id", "job-1")
	w := httptest.NewRecorder()

	h.GetJob(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Result map[string]string `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "could not parse result as JSON", got.Result["error"])
	assert.Equal(t, result, got.Result["raw"])
}

func TestGetJob_MissingID(t *testing.T) {
	h, _, ctrl := newJobHandlers(t)
	defer ctrl.Finish()

	r := httptest.NewRequest(http.MethodGet, "/job/", nil)
	w := httptest.NewRecorder()

	h.GetJob(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetJob_NotFound(t *testing.T) {
	h, m, ctrl := newJobHandlers(t)
	defer ctrl.Finish()

	m.repo.EXPECT().
		GetByID(gomock.Any(), "missing").
		Return(nil, apperrors.NotFoundf("job %s not found", "missing"))

	r := httptest.NewRequest(http.MethodGet, "/job/missing", nil)
	r.SetPathValue("job_id", "missing")
	w := httptest.NewRecorder()

	h.GetJob(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "not_found", body["error"])
}
