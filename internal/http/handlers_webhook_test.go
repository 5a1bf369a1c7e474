package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dispatchlab/dispatch/internal/domain/model"
	apperrors "github.com/dispatchlab/dispatch/internal/errors"
	"github.com/dispatchlab/dispatch/internal/mocks"
	"github.com/dispatchlab/dispatch/internal/service"
)

func newWebhookHandlers(t *testing.T) (*WebhookHandlers, *mocks.MockJobRepository, *mocks.MockCanceller, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockJobRepository(ctrl)
	mockCanceller := mocks.NewMockCanceller(ctrl)
	svc, err := service.NewWebhookService(service.WebhookServiceOptions{
		Repo:      mockRepo,
		Canceller: mockCanceller,
	})
	require.NoError(t, err)
	return &WebhookHandlers{Svc: svc}, mockRepo, mockCanceller, ctrl
}

func postWebhook(t *testing.T, h *WebhookHandlers, body []byte) (*http.Response, map[string]string) {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Receive(w, r)

	resp := w.Result()
	t.Cleanup(func() { resp.Body.Close() })

	var msg map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	return resp, msg
}

func TestWebhookReceive_TerminalDelivery(t *testing.T) {
	h, mockRepo, mockCanceller, ctrl := newWebhookHandlers(t)
	defer ctrl.Finish()

	mockRepo.EXPECT().
		GetByExternalID(gomock.Any(), "ext-1").
		Return(&model.JobRecord{ID: "job-1", Status: model.StatusSubmitted}, nil)
	mockRepo.EXPECT().
		Update(gomock.Any(), "job-1", gomock.Any()).
		Return(&model.JobRecord{ID: "job-1", Status: model.StatusCompleted}, nil)
	mockCanceller.EXPECT().RequestCancel(gomock.Any(), "job-1").Return(nil)

	resp, msg := postWebhook(t, h, []byte(`{"id":"ext-1","status":"COMPLETED","output":{"answer":42}}`))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "job updated", msg["message"])
}

func TestWebhookReceive_NonTerminalDelivery(t *testing.T) {
	h, mockRepo, _, ctrl := newWebhookHandlers(t)
	defer ctrl.Finish()

	mockRepo.EXPECT().
		GetByExternalID(gomock.Any(), "ext-1").
		Return(&model.JobRecord{ID: "job-1", Status: model.StatusSubmitted}, nil)
	mockRepo.EXPECT().
		Update(gomock.Any(), "job-1", gomock.Any()).
		Return(&model.JobRecord{ID: "job-1", Status: model.Status("IN_PROGRESS")}, nil)
	// No poller cancellation for a job that is still running.

	resp, msg := postWebhook(t, h, []byte(`{"id":"ext-1","status":"IN_PROGRESS"}`))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "job updated", msg["message"])
}

func TestWebhookReceive_MalformedBodyRejected(t *testing.T) {
	h, _, _, ctrl := newWebhookHandlers(t)
	defer ctrl.Finish()

	resp, msg := postWebhook(t, h, []byte("{not json"))

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_json", msg["error"])
}

func TestWebhookReceive_UnknownJobStillAcknowledged(t *testing.T) {
	h, mockRepo, _, ctrl := newWebhookHandlers(t)
	defer ctrl.Finish()

	mockRepo.EXPECT().
		GetByExternalID(gomock.Any(), "ext-unknown").
		Return(nil, apperrors.NotFoundf("no job with external id %s", "ext-unknown"))

	resp, msg := postWebhook(t, h, []byte(`{"id":"ext-unknown","status":"FAILED"}`))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ignored: no job matches the delivered id", msg["message"])
}
