package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dispatchlab/dispatch/config"
	"github.com/dispatchlab/dispatch/internal/core"
	"github.com/dispatchlab/dispatch/internal/domain/model"
	apperrors "github.com/dispatchlab/dispatch/internal/errors"
)

// StreamServiceOptions groups dependencies for StreamService.
type StreamServiceOptions struct {
	Repo   core.JobRepository  // Required: job record store
	Config config.StreamConfig // Required: re-read interval
	Logger *slog.Logger        // Optional: structured logger
}

// StreamService feeds live status updates to a subscriber.
//
// It re-reads the job record on a fixed interval and emits a frame whenever
// the observed state changes, so a subscriber sees every transition the store
// captured without the transports having to share any in-process signal.
type StreamService struct {
	repo   core.JobRepository
	cfg    config.StreamConfig
	logger *slog.Logger
}

// NewStreamService constructs a new StreamService.
func NewStreamService(opts StreamServiceOptions) (*StreamService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StreamService{
		repo:   opts.Repo,
		cfg:    opts.Config,
		logger: logger.With("component", "stream_service"),
	}, nil
}

// Stream delivers status frames for a job through send until the job reaches
// a terminal status, the subscriber goes away, or the context is cancelled.
// The current state is always delivered first.
func (s *StreamService) Stream(ctx context.Context, jobID string, send func(model.StreamFrame) error) error {
	var (
		lastStatus model.Status
		lastResult string
		sentAny    bool
	)

	for {
		rec, err := s.repo.GetByID(ctx, jobID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				// Deliver the miss as a frame so the subscriber knows why the
				// stream is over.
				_ = send(model.StreamFrame{Error: "job not found"})
				return nil
			}
			return err
		}

		result := ""
		if rec.Result != nil {
			result = *rec.Result
		}

		if !sentAny || rec.Status != lastStatus || result != lastResult {
			frame := model.StreamFrame{
				JobID:  rec.ID,
				Status: rec.Status,
				Result: model.ParseResult(rec.Result),
			}
			if sendErr := send(frame); sendErr != nil {
				// Subscriber hung up.
				return nil
			}
			lastStatus = rec.Status
			lastResult = result
			sentAny = true
		}

		if rec.Status.Terminal() {
			return nil
		}

		timer := time.NewTimer(s.cfg.Interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return nil
		case <-timer.C:
		}
	}
}
