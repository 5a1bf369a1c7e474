// Package service contains the business logic of the dispatch orchestrator.
// Services depend on the port interfaces in internal/core, never on concrete
// adapters, so every collaborator can be swapped out in tests.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dispatchlab/dispatch/config"
	"github.com/dispatchlab/dispatch/internal/core"
	"github.com/dispatchlab/dispatch/internal/domain/model"
	apperrors "github.com/dispatchlab/dispatch/internal/errors"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo    core.JobRepository   // Required: job record store
	Client  core.ComputeClient   // Required: compute service client
	Pollers core.PollerStarter   // Required: launches status pollers
	Config  config.ComputeConfig // Required: webhook callback and timeouts
	Logger  *slog.Logger         // Optional: structured logger
}

// JobService handles job submission and status reads.
//
// Submission is acknowledged before the compute service is involved: the
// caller gets a pending record immediately and the handoff happens in a
// background goroutine, so a slow or dead compute service never blocks the
// submit endpoint.
type JobService struct {
	repo    core.JobRepository
	client  core.ComputeClient
	pollers core.PollerStarter
	cfg     config.ComputeConfig
	logger  *slog.Logger
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Client == nil {
		return nil, errors.New("ComputeClient is required")
	}
	if opts.Pollers == nil {
		return nil, errors.New("PollerStarter is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JobService{
		repo:    opts.Repo,
		client:  opts.Client,
		pollers: opts.Pollers,
		cfg:     opts.Config,
		logger:  logger.With("component", "job_service"),
	}, nil
}

// Submit records a new job and hands it to the compute service in the
// background. The returned response always reports the pending status; the
// caller learns the outcome of the handoff through the status endpoints.
func (s *JobService) Submit(ctx context.Context, req model.SubmitJobRequest) (*model.JobResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	rec := &model.JobRecord{
		ID:     uuid.NewString(),
		Status: model.StatusPending,
		Prompt: req.Prompt,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "job accepted", "job_id", rec.ID)

	// Detached from the request context on purpose: the handoff must survive
	// the client disconnecting right after the ack.
	go s.submitToCompute(rec.ID, rec.Prompt)

	return model.NewJobResponse(rec), nil
}

// Get returns the client view of a job.
func (s *JobService) Get(ctx context.Context, id string) (*model.JobResponse, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return model.NewJobResponse(rec), nil
}

func (s *JobService) submitToCompute(jobID, prompt string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SubmitTimeout)
	defer cancel()

	resp, err := s.client.Run(ctx, core.RunRequest{
		Prompt:     prompt,
		WebhookURL: s.cfg.WebhookURL,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "compute handoff failed", "job_id", jobID, "error", err)
		s.recordSubmitFailure(ctx, jobID, err)
		return
	}

	_, updateErr := s.repo.Update(ctx, jobID, core.JobUpdateParams{
		NonTerminalOnly: true,
		Mutate: func(rec *model.JobRecord) {
			rec.ExternalID = &resp.ID
			rec.Status = model.StatusSubmitted
		},
	})
	if updateErr != nil {
		// A conflict here means something else already finished the job;
		// either way there is nothing to poll for.
		s.logger.ErrorContext(ctx, "record compute handoff failed", "job_id", jobID, "error", updateErr)
		return
	}

	s.logger.InfoContext(ctx, "job submitted to compute service",
		"job_id", jobID,
		"external_id", resp.ID,
	)
	s.pollers.Start(jobID, resp.ID)
}

func (s *JobService) recordSubmitFailure(ctx context.Context, jobID string, cause error) {
	diagnostic, marshalErr := json.Marshal(map[string]string{"error": cause.Error()})
	if marshalErr != nil {
		diagnostic = []byte(`{"error":"submission failed"}`)
	}
	result := string(diagnostic)

	if _, err := s.repo.Update(ctx, jobID, core.JobUpdateParams{
		NonTerminalOnly: true,
		Mutate: func(rec *model.JobRecord) {
			rec.Status = model.StatusFailed
			rec.Result = &result
		},
	}); err != nil {
		s.logger.ErrorContext(ctx, "record submission failure failed", "job_id", jobID, "error", err)
	}
}
