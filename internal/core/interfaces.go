// Package core defines the ports between the service layer and its
// infrastructure adapters. Implementations live under internal/data and
// internal/adapters; mocks are generated into internal/mocks.
package core

import (
	"context"
	"encoding/json"

	"github.com/dispatchlab/dispatch/internal/domain/model"
)

// JobUpdateParams groups parameters for JobRepository.Update.
type JobUpdateParams struct {
	// NonTerminalOnly rejects the update with a conflict error when the
	// record is already in a terminal status. Terminal results are written
	// once and never overwritten.
	NonTerminalOnly bool

	// Mutate is applied to the freshly loaded record while the row is locked.
	Mutate func(rec *model.JobRecord)
}

// JobRepository provides persistence for job records.
type JobRepository interface {
	// Create inserts a new job record.
	Create(ctx context.Context, rec *model.JobRecord) error

	// GetByID retrieves a job record by its internal ID.
	GetByID(ctx context.Context, id string) (*model.JobRecord, error)

	// GetByExternalID retrieves a job record by the compute service's job ID.
	GetByExternalID(ctx context.Context, externalID string) (*model.JobRecord, error)

	// Update atomically loads, mutates, and persists a job record.
	// It returns the record as persisted.
	Update(ctx context.Context, id string, params JobUpdateParams) (*model.JobRecord, error)

	// ListResumable returns non-terminal records that already have an
	// external ID, i.e. jobs whose pollers should be revived after a restart.
	ListResumable(ctx context.Context) ([]*model.JobRecord, error)
}

// RunRequest carries the parameters for submitting work to the compute service.
type RunRequest struct {
	Prompt     string
	WebhookURL string
}

// RunResponse is the compute service's acknowledgment of a submission.
type RunResponse struct {
	ID     string
	Status string
}

// StatusResponse is one status poll result from the compute service.
// Output carries the job result on success; Error carries the reported
// failure detail when the job failed.
type StatusResponse struct {
	ID     string
	Status string
	Output json.RawMessage
	Error  json.RawMessage
}

// ComputeClient talks to the external best-effort compute service.
type ComputeClient interface {
	// Run submits a job and returns the compute service's job ID.
	Run(ctx context.Context, req RunRequest) (*RunResponse, error)

	// Status fetches the current status of a previously submitted job.
	Status(ctx context.Context, externalID string) (*StatusResponse, error)
}

// Canceller tracks per-job poller cancellation flags.
type Canceller interface {
	// RequestCancel marks a job's poller for shutdown.
	RequestCancel(ctx context.Context, jobID string) error

	// IsCancelRequested reports whether a job's poller was marked for shutdown.
	IsCancelRequested(ctx context.Context, jobID string) (bool, error)

	// Clear removes a job's cancellation flag.
	Clear(ctx context.Context, jobID string) error
}

// PollerStarter launches background status pollers for submitted jobs.
type PollerStarter interface {
	// Start launches a poller for the given job. Launching is idempotent
	// per process; a second call for the same job is a no-op.
	Start(jobID, externalID string)
}
