// Package poller provides the background status pollers that track submitted
// jobs on the compute service.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dispatchlab/dispatch/config"
	"github.com/dispatchlab/dispatch/internal/core"
	"github.com/dispatchlab/dispatch/internal/data"
	"github.com/dispatchlab/dispatch/internal/domain/model"
	apperrors "github.com/dispatchlab/dispatch/internal/errors"
)

// Manager launches and tracks one polling goroutine per submitted job.
//
// Each poller races the webhook channel: whichever observes a terminal status
// first wins the write, and the loser's update is rejected by the store's
// terminal guard. A webhook win additionally raises a cancellation flag so
// the poller stands down at its next iteration instead of polling on.
type Manager struct {
	repo      core.JobRepository
	client    core.ComputeClient
	canceller core.Canceller
	cfg       config.PollerConfig
	logger    *slog.Logger
	time      data.TimeProvider

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	active map[string]struct{}
	wg     sync.WaitGroup
}

// ManagerOptions holds the dependencies for creating a Manager.
type ManagerOptions struct {
	Repo      core.JobRepository
	Client    core.ComputeClient
	Canceller core.Canceller
	Config    config.PollerConfig
	Logger    *slog.Logger

	// Optional dependency injection for testing/decoupling
	TimeProvider data.TimeProvider
}

// NewManager creates a new poller manager with the given options.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Repo == nil {
		return nil, errors.New("job repository is required")
	}
	if opts.Client == nil {
		return nil, errors.New("compute client is required")
	}
	if opts.Canceller == nil {
		return nil, errors.New("canceller is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		repo:      opts.Repo,
		client:    opts.Client,
		canceller: opts.Canceller,
		cfg:       opts.Config,
		logger:    opts.Logger.With("component", "poller"),
		time:      tp,
		ctx:       ctx,
		cancel:    cancel,
		active:    make(map[string]struct{}),
	}, nil
}

// Start launches a poller for the given job. A second call for the same job
// while its poller is still running is a no-op.
func (m *Manager) Start(jobID, externalID string) {
	m.startWithBudget(jobID, externalID, m.cfg.MaxPolls)
}

func (m *Manager) startWithBudget(jobID, externalID string, budget int) {
	m.mu.Lock()
	if _, running := m.active[jobID]; running {
		m.mu.Unlock()
		return
	}
	m.active[jobID] = struct{}{}
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.active, jobID)
			m.mu.Unlock()
		}()
		m.poll(jobID, externalID, budget)
	}()
}

// Run revives pollers for jobs that were in flight when the process last
// stopped, then blocks until the context is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Resume(ctx); err != nil {
		return fmt.Errorf("resume pollers: %w", err)
	}
	<-ctx.Done()
	m.Stop()
	return ctx.Err()
}

// Resume sweeps the store for non-terminal jobs with an external ID and
// restarts their pollers with whatever budget they have left. Jobs that
// already spent their budget are marked timed out instead.
func (m *Manager) Resume(ctx context.Context) error {
	recs, err := m.repo.ListResumable(ctx)
	if err != nil {
		return err
	}

	for _, rec := range recs {
		remaining := m.cfg.MaxPolls - rec.PollCount
		if remaining <= 0 {
			m.markTimeout(ctx, rec.ID)
			continue
		}
		m.logger.InfoContext(ctx, "resuming poller",
			"job_id", rec.ID,
			"external_id", *rec.ExternalID,
			"remaining_polls", remaining,
		)
		m.startWithBudget(rec.ID, *rec.ExternalID, remaining)
	}
	return nil
}

// Stop cancels all pollers and waits for them to exit.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) poll(jobID, externalID string, budget int) {
	logger := m.logger.With("job_id", jobID, "external_id", externalID)

	// Poll immediately, sleep after: a job that finishes fast is observed on
	// the first iteration rather than a full interval later.
	for range budget {
		if m.cancelRequested(jobID, logger) {
			return
		}

		done := m.pollOnce(jobID, externalID, logger)
		if done {
			return
		}

		timer := time.NewTimer(m.cfg.Interval)
		select {
		case <-m.ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}

	logger.WarnContext(m.ctx, "polling budget exhausted, marking job timed out")
	m.markTimeout(m.ctx, jobID)
}

// pollOnce performs a single status poll. It returns true when the poller
// should stop, either because the job reached a terminal status or because
// its record is gone or already terminal.
func (m *Manager) pollOnce(jobID, externalID string, logger *slog.Logger) bool {
	st, err := m.client.Status(m.ctx, externalID)
	if err != nil {
		switch {
		case apperrors.IsPollTransport(err):
			// Flaky network. Leave the record untouched and try again.
			logger.WarnContext(m.ctx, "status poll transport failure", "error", err)
			return false
		case apperrors.IsPollProtocol(err):
			logger.WarnContext(m.ctx, "status poll protocol failure", "error", err)
			return m.recordPoll(jobID, func(rec *model.JobRecord) {
				rec.Status = model.StatusPollError
			}, logger)
		default:
			if m.ctx.Err() != nil {
				return true
			}
			logger.ErrorContext(m.ctx, "status poll failed", "error", err)
			return false
		}
	}

	status := model.MapComputeStatus(st.Status)
	if status.Terminal() {
		logger.InfoContext(m.ctx, "job reached terminal status via polling", "status", status)
		// A failed job reports its diagnostic in the error field, not output.
		raw := st.Output
		if status == model.StatusFailed && len(st.Error) > 0 {
			raw = st.Error
		}
		m.recordPoll(jobID, func(rec *model.JobRecord) {
			rec.Status = status
			if out := string(raw); out != "" {
				rec.Result = &out
			}
		}, logger)
		// Poller won the race; nothing left for a late webhook to cancel.
		if clearErr := m.canceller.Clear(m.ctx, jobID); clearErr != nil {
			logger.WarnContext(m.ctx, "clear cancellation flag failed", "error", clearErr)
		}
		return true
	}

	return m.recordPoll(jobID, func(rec *model.JobRecord) {
		rec.Status = status
	}, logger)
}

// recordPoll applies a status mutation along with poll bookkeeping. It
// returns true when the poller should stop: the record is gone, or another
// writer already made it terminal.
func (m *Manager) recordPoll(jobID string, mutate func(*model.JobRecord), logger *slog.Logger) bool {
	now := m.time.Now().UTC()
	_, err := m.repo.Update(m.ctx, jobID, core.JobUpdateParams{
		NonTerminalOnly: true,
		Mutate: func(rec *model.JobRecord) {
			mutate(rec)
			rec.PollCount++
			rec.LastPolledAt = &now
		},
	})
	switch {
	case err == nil:
		return false
	case apperrors.IsConflict(err):
		logger.InfoContext(m.ctx, "job already terminal, stopping poller")
		return true
	case apperrors.IsNotFound(err):
		logger.WarnContext(m.ctx, "job record missing, stopping poller")
		return true
	default:
		logger.ErrorContext(m.ctx, "persist poll result failed", "error", err)
		return false
	}
}

func (m *Manager) cancelRequested(jobID string, logger *slog.Logger) bool {
	requested, err := m.canceller.IsCancelRequested(m.ctx, jobID)
	if err != nil {
		logger.WarnContext(m.ctx, "check cancellation flag failed", "error", err)
		return false
	}
	if !requested {
		return false
	}

	logger.InfoContext(m.ctx, "cancellation requested, stopping poller")
	if clearErr := m.canceller.Clear(m.ctx, jobID); clearErr != nil {
		logger.WarnContext(m.ctx, "clear cancellation flag failed", "error", clearErr)
	}
	return true
}

func (m *Manager) markTimeout(ctx context.Context, jobID string) {
	_, err := m.repo.Update(ctx, jobID, core.JobUpdateParams{
		NonTerminalOnly: true,
		Mutate: func(rec *model.JobRecord) {
			rec.Status = model.StatusTimeout
		},
	})
	if err != nil && !apperrors.IsConflict(err) && !apperrors.IsNotFound(err) {
		m.logger.ErrorContext(ctx, "mark job timed out failed", "job_id", jobID, "error", err)
	}
}
