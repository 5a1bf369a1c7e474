package poller

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dispatchlab/dispatch/config"
	"github.com/dispatchlab/dispatch/internal/core"
	"github.com/dispatchlab/dispatch/internal/data"
	"github.com/dispatchlab/dispatch/internal/domain/model"
	apperrors "github.com/dispatchlab/dispatch/internal/errors"
	"github.com/dispatchlab/dispatch/internal/mocks"
)

type managerMocks struct {
	repo      *mocks.MockJobRepository
	client    *mocks.MockComputeClient
	canceller *mocks.MockCanceller
}

func newTestManager(t *testing.T, cfg config.PollerConfig) (*Manager, managerMocks, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := managerMocks{
		repo:      mocks.NewMockJobRepository(ctrl),
		client:    mocks.NewMockComputeClient(ctrl),
		canceller: mocks.NewMockCanceller(ctrl),
	}
	mgr, err := NewManager(ManagerOptions{
		Repo:         m.repo,
		Client:       m.client,
		Canceller:    m.canceller,
		Config:       cfg,
		TimeProvider: data.NewFixedTimeProvider(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	return mgr, m, ctrl
}

func fastPollerConfig(maxPolls int) config.PollerConfig {
	return config.PollerConfig{Interval: time.Millisecond, MaxPolls: maxPolls}
}

// applyUpdate runs the mutation against a fresh submitted record so tests can
// inspect what the poller would have written.
func applyUpdate(id string, params core.JobUpdateParams) *model.JobRecord {
	rec := &model.JobRecord{ID: id, Status: model.StatusSubmitted}
	if params.Mutate != nil {
		params.Mutate(rec)
	}
	return rec
}

func TestNewManager_RequiredDependencies(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, err := NewManager(ManagerOptions{
		Client:    mocks.NewMockComputeClient(ctrl),
		Canceller: mocks.NewMockCanceller(ctrl),
	})
	assert.Error(t, err)

	_, err = NewManager(ManagerOptions{
		Repo:      mocks.NewMockJobRepository(ctrl),
		Canceller: mocks.NewMockCanceller(ctrl),
	})
	assert.Error(t, err)

	_, err = NewManager(ManagerOptions{
		Repo:   mocks.NewMockJobRepository(ctrl),
		Client: mocks.NewMockComputeClient(ctrl),
	})
	assert.Error(t, err)
}

func TestPoll_TerminalStatusStopsPoller(t *testing.T) {
	mgr, m, ctrl := newTestManager(t, fastPollerConfig(10))
	defer ctrl.Finish()

	m.canceller.EXPECT().IsCancelRequested(gomock.Any(), "job-1").Return(false, nil)
	m.client.EXPECT().
		Status(gomock.Any(), "ext-1").
		Return(&core.StatusResponse{ID: "ext-1", Status: "COMPLETED", Output: json.RawMessage(`{"answer":42}`)}, nil)

	m.repo.EXPECT().
		Update(gomock.Any(), "job-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, id string, params core.JobUpdateParams) (*model.JobRecord, error) {
			assert.True(t, params.NonTerminalOnly)
			rec := applyUpdate(id, params)
			assert.Equal(t, model.StatusCompleted, rec.Status)
			require.NotNil(t, rec.Result)
			assert.JSONEq(t, `{"answer":42}`, *rec.Result)
			assert.Equal(t, 1, rec.PollCount)
			require.NotNil(t, rec.LastPolledAt)
			assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), *rec.LastPolledAt)
			return rec, nil
		})

	m.canceller.EXPECT().Clear(gomock.Any(), "job-1").Return(nil)

	mgr.Start("job-1", "ext-1")
	mgr.wg.Wait()
}

func TestPoll_TransportErrorLeavesRecordUntouched(t *testing.T) {
	mgr, m, ctrl := newTestManager(t, fastPollerConfig(2))
	defer ctrl.Finish()

	transportErr := apperrors.Wrap(errors.New("connection reset"), apperrors.ErrCodePollTransport, "status request failed")

	m.canceller.EXPECT().IsCancelRequested(gomock.Any(), "job-1").Return(false, nil).Times(2)
	m.client.EXPECT().Status(gomock.Any(), "ext-1").Return(nil, transportErr).Times(2)

	// Transport failures never touch the record; only the exhausted budget does.
	m.repo.EXPECT().
		Update(gomock.Any(), "job-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, id string, params core.JobUpdateParams) (*model.JobRecord, error) {
			rec := applyUpdate(id, params)
			assert.Equal(t, model.StatusTimeout, rec.Status)
			assert.Equal(t, 0, rec.PollCount)
			return rec, nil
		})

	mgr.Start("job-1", "ext-1")
	mgr.wg.Wait()
}

func TestPoll_ServerErrorDoesNotFinalizeJob(t *testing.T) {
	mgr, m, ctrl := newTestManager(t, fastPollerConfig(10))
	defer ctrl.Finish()

	serverErr := apperrors.Wrapf(errors.New("internal error"), apperrors.ErrCodePollTransport,
		"compute service returned %s", "500 Internal Server Error")

	m.canceller.EXPECT().IsCancelRequested(gomock.Any(), "job-1").Return(false, nil).Times(2)

	// A transient 500 must not write anything; the next successful poll still
	// lands the real terminal status.
	gomock.InOrder(
		m.client.EXPECT().Status(gomock.Any(), "ext-1").Return(nil, serverErr),
		m.client.EXPECT().
			Status(gomock.Any(), "ext-1").
			Return(&core.StatusResponse{ID: "ext-1", Status: "COMPLETED", Output: json.RawMessage(`{"answer":42}`)}, nil),
	)

	m.repo.EXPECT().
		Update(gomock.Any(), "job-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, id string, params core.JobUpdateParams) (*model.JobRecord, error) {
			rec := applyUpdate(id, params)
			assert.Equal(t, model.StatusCompleted, rec.Status)
			assert.Equal(t, 1, rec.PollCount)
			return rec, nil
		})
	m.canceller.EXPECT().Clear(gomock.Any(), "job-1").Return(nil)

	mgr.Start("job-1", "ext-1")
	mgr.wg.Wait()
}

func TestPoll_FailedStatusStoresReportedError(t *testing.T) {
	mgr, m, ctrl := newTestManager(t, fastPollerConfig(10))
	defer ctrl.Finish()

	m.canceller.EXPECT().IsCancelRequested(gomock.Any(), "job-1").Return(false, nil)
	m.client.EXPECT().
		Status(gomock.Any(), "ext-1").
		Return(&core.StatusResponse{ID: "ext-1", Status: "FAILED", Error: json.RawMessage(`"worker exploded"`)}, nil)

	m.repo.EXPECT().
		Update(gomock.Any(), "job-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, id string, params core.JobUpdateParams) (*model.JobRecord, error) {
			rec := applyUpdate(id, params)
			assert.Equal(t, model.StatusFailed, rec.Status)
			require.NotNil(t, rec.Result)
			assert.JSONEq(t, `"worker exploded"`, *rec.Result)
			return rec, nil
		})
	m.canceller.EXPECT().Clear(gomock.Any(), "job-1").Return(nil)

	mgr.Start("job-1", "ext-1")
	mgr.wg.Wait()
}

func TestPoll_ProtocolErrorRecordsPollError(t *testing.T) {
	mgr, m, ctrl := newTestManager(t, fastPollerConfig(10))
	defer ctrl.Finish()

	protocolErr := apperrors.Wrap(errors.New("bad body"), apperrors.ErrCodePollProtocol, "decode status response")

	m.canceller.EXPECT().IsCancelRequested(gomock.Any(), "job-1").Return(false, nil).Times(2)

	gomock.InOrder(
		m.client.EXPECT().Status(gomock.Any(), "ext-1").Return(nil, protocolErr),
		m.repo.EXPECT().
			Update(gomock.Any(), "job-1", gomock.Any()).
			DoAndReturn(func(_ context.Context, id string, params core.JobUpdateParams) (*model.JobRecord, error) {
				rec := applyUpdate(id, params)
				assert.Equal(t, model.StatusPollError, rec.Status)
				assert.Equal(t, 1, rec.PollCount)
				return rec, nil
			}),
		// The protocol error finalized the record, so the next write is
		// rejected by the terminal guard and the poller stands down.
		m.client.EXPECT().
			Status(gomock.Any(), "ext-1").
			Return(&core.StatusResponse{ID: "ext-1", Status: "IN_PROGRESS"}, nil),
		m.repo.EXPECT().
			Update(gomock.Any(), "job-1", gomock.Any()).
			Return(nil, apperrors.Conflict("job is already terminal")),
	)

	mgr.Start("job-1", "ext-1")
	mgr.wg.Wait()
}

func TestPoll_CancellationFlagStopsPoller(t *testing.T) {
	mgr, m, ctrl := newTestManager(t, fastPollerConfig(10))
	defer ctrl.Finish()

	m.canceller.EXPECT().IsCancelRequested(gomock.Any(), "job-1").Return(true, nil)
	m.canceller.EXPECT().Clear(gomock.Any(), "job-1").Return(nil)
	// No status poll happens once the flag is observed.

	mgr.Start("job-1", "ext-1")
	mgr.wg.Wait()
}

func TestPoll_PassthroughStatusRecordedUntilBudgetExhausted(t *testing.T) {
	mgr, m, ctrl := newTestManager(t, fastPollerConfig(2))
	defer ctrl.Finish()

	m.canceller.EXPECT().IsCancelRequested(gomock.Any(), "job-1").Return(false, nil).Times(2)
	m.client.EXPECT().
		Status(gomock.Any(), "ext-1").
		Return(&core.StatusResponse{ID: "ext-1", Status: "IN_PROGRESS"}, nil).
		Times(2)

	var statuses []model.Status
	m.repo.EXPECT().
		Update(gomock.Any(), "job-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, id string, params core.JobUpdateParams) (*model.JobRecord, error) {
			rec := applyUpdate(id, params)
			statuses = append(statuses, rec.Status)
			return rec, nil
		}).
		Times(3)

	mgr.Start("job-1", "ext-1")
	mgr.wg.Wait()

	// Two passthrough writes, then the timeout mark.
	assert.Equal(t, []model.Status{
		model.Status("IN_PROGRESS"),
		model.Status("IN_PROGRESS"),
		model.StatusTimeout,
	}, statuses)
}

func TestPoll_RecordGoneStopsPoller(t *testing.T) {
	mgr, m, ctrl := newTestManager(t, fastPollerConfig(10))
	defer ctrl.Finish()

	m.canceller.EXPECT().IsCancelRequested(gomock.Any(), "job-1").Return(false, nil)
	m.client.EXPECT().
		Status(gomock.Any(), "ext-1").
		Return(&core.StatusResponse{ID: "ext-1", Status: "IN_PROGRESS"}, nil)
	m.repo.EXPECT().
		Update(gomock.Any(), "job-1", gomock.Any()).
		Return(nil, apperrors.NotFoundf("job %s not found", "job-1"))

	mgr.Start("job-1", "ext-1")
	mgr.wg.Wait()
}

func TestStart_SecondCallForRunningJobIsNoOp(t *testing.T) {
	mgr, m, ctrl := newTestManager(t, fastPollerConfig(10))
	defer ctrl.Finish()

	entered := make(chan struct{})
	release := make(chan struct{})

	m.canceller.EXPECT().
		IsCancelRequested(gomock.Any(), "job-1").
		DoAndReturn(func(context.Context, string) (bool, error) {
			close(entered)
			<-release
			return false, nil
		})
	m.client.EXPECT().
		Status(gomock.Any(), "ext-1").
		Return(&core.StatusResponse{ID: "ext-1", Status: "COMPLETED"}, nil)
	m.repo.EXPECT().
		Update(gomock.Any(), "job-1", gomock.Any()).
		Return(&model.JobRecord{ID: "job-1", Status: model.StatusCompleted}, nil)
	m.canceller.EXPECT().Clear(gomock.Any(), "job-1").Return(nil)

	mgr.Start("job-1", "ext-1")
	<-entered
	// The first poller is mid-iteration; a duplicate start must not add a
	// second goroutine (the single-call expectations above would trip).
	mgr.Start("job-1", "ext-1")
	close(release)
	mgr.wg.Wait()
}

func TestResume_RestartsWithRemainingBudget(t *testing.T) {
	mgr, m, ctrl := newTestManager(t, fastPollerConfig(60))
	defer ctrl.Finish()

	ext := "ext-1"
	m.repo.EXPECT().ListResumable(gomock.Any()).Return([]*model.JobRecord{
		{ID: "job-1", ExternalID: &ext, Status: model.StatusSubmitted, PollCount: 59},
	}, nil)

	// One iteration of budget left; it finds no terminal status and the
	// budget runs out immediately after.
	m.canceller.EXPECT().IsCancelRequested(gomock.Any(), "job-1").Return(false, nil)
	m.client.EXPECT().
		Status(gomock.Any(), ext).
		Return(&core.StatusResponse{ID: ext, Status: "IN_PROGRESS"}, nil)

	var statuses []model.Status
	m.repo.EXPECT().
		Update(gomock.Any(), "job-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, id string, params core.JobUpdateParams) (*model.JobRecord, error) {
			rec := applyUpdate(id, params)
			statuses = append(statuses, rec.Status)
			return rec, nil
		}).
		Times(2)

	require.NoError(t, mgr.Resume(context.Background()))
	mgr.wg.Wait()

	assert.Equal(t, []model.Status{model.Status("IN_PROGRESS"), model.StatusTimeout}, statuses)
}

func TestResume_ExhaustedBudgetMarksTimeoutWithoutPolling(t *testing.T) {
	mgr, m, ctrl := newTestManager(t, fastPollerConfig(60))
	defer ctrl.Finish()

	ext := "ext-2"
	m.repo.EXPECT().ListResumable(gomock.Any()).Return([]*model.JobRecord{
		{ID: "job-2", ExternalID: &ext, Status: model.StatusSubmitted, PollCount: 60},
	}, nil)

	m.repo.EXPECT().
		Update(gomock.Any(), "job-2", gomock.Any()).
		DoAndReturn(func(_ context.Context, id string, params core.JobUpdateParams) (*model.JobRecord, error) {
			rec := applyUpdate(id, params)
			assert.Equal(t, model.StatusTimeout, rec.Status)
			return rec, nil
		})

	require.NoError(t, mgr.Resume(context.Background()))
	mgr.wg.Wait()
}

func TestResume_ListError(t *testing.T) {
	mgr, m, ctrl := newTestManager(t, fastPollerConfig(60))
	defer ctrl.Finish()

	listErr := errors.New("db down")
	m.repo.EXPECT().ListResumable(gomock.Any()).Return(nil, listErr)

	err := mgr.Resume(context.Background())

	assert.ErrorIs(t, err, listErr)
}

func TestPoll_FirstPollHappensImmediately(t *testing.T) {
	mgr, m, ctrl := newTestManager(t, config.PollerConfig{Interval: time.Hour, MaxPolls: 10})
	defer ctrl.Finish()

	m.canceller.EXPECT().IsCancelRequested(gomock.Any(), "job-1").Return(false, nil)
	m.client.EXPECT().
		Status(gomock.Any(), "ext-1").
		Return(&core.StatusResponse{ID: "ext-1", Status: "COMPLETED"}, nil)
	m.repo.EXPECT().
		Update(gomock.Any(), "job-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, id string, params core.JobUpdateParams) (*model.JobRecord, error) {
			return applyUpdate(id, params), nil
		})
	m.canceller.EXPECT().Clear(gomock.Any(), "job-1").Return(nil)

	// A job that is already done must be observed without waiting out the
	// interval first.
	mgr.Start("job-1", "ext-1")

	done := make(chan struct{})
	go func() {
		mgr.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("first poll waited for the interval")
	}
}

func TestStop_CancelsInFlightPollers(t *testing.T) {
	mgr, m, ctrl := newTestManager(t, config.PollerConfig{Interval: time.Hour, MaxPolls: 10})
	defer ctrl.Finish()

	m.canceller.EXPECT().IsCancelRequested(gomock.Any(), "job-1").Return(false, nil)
	m.client.EXPECT().
		Status(gomock.Any(), "ext-1").
		Return(&core.StatusResponse{ID: "ext-1", Status: "IN_PROGRESS"}, nil)
	m.repo.EXPECT().
		Update(gomock.Any(), "job-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, id string, params core.JobUpdateParams) (*model.JobRecord, error) {
			return applyUpdate(id, params), nil
		})

	// After the first poll the goroutine sits in its hour-long interval wait;
	// Stop must not hang on it.
	mgr.Start("job-1", "ext-1")

	done := make(chan struct{})
	go func() {
		mgr.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the in-flight poller")
	}
}
