package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dispatchlab/dispatch/internal/core"
	"github.com/dispatchlab/dispatch/internal/domain/model"
	apperrors "github.com/dispatchlab/dispatch/internal/errors"
)

// WebhookServiceOptions groups dependencies for WebhookService.
type WebhookServiceOptions struct {
	Repo      core.JobRepository // Required: job record store
	Canceller core.Canceller     // Required: poller cancellation flags
	Logger    *slog.Logger       // Optional: structured logger
}

// WebhookService processes status notifications pushed by the compute service.
//
// The webhook is the fast path in the race against the poller. Deliveries are
// treated as informational: whatever the outcome, the caller gets an
// acknowledgment message rather than an error, because the compute service
// retries nothing and a rejected delivery would simply be lost.
type WebhookService struct {
	repo      core.JobRepository
	canceller core.Canceller
	logger    *slog.Logger
}

// NewWebhookService constructs a new WebhookService.
func NewWebhookService(opts WebhookServiceOptions) (*WebhookService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Canceller == nil {
		return nil, errors.New("Canceller is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &WebhookService{
		repo:      opts.Repo,
		canceller: opts.Canceller,
		logger:    logger.With("component", "webhook_service"),
	}, nil
}

// Handle applies one webhook delivery and returns an informational message
// describing what happened to it.
func (s *WebhookService) Handle(ctx context.Context, payload model.WebhookPayload) string {
	if payload.ID == "" {
		s.logger.WarnContext(ctx, "webhook delivery without job id")
		return "ignored: delivery has no job id"
	}

	if payload.Status == "" {
		s.logger.WarnContext(ctx, "webhook delivery without status", "external_id", payload.ID)
		return "ignored: delivery has no status"
	}

	status := model.MapComputeStatus(string(payload.Status))

	rec, err := s.repo.GetByExternalID(ctx, payload.ID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.logger.WarnContext(ctx, "webhook delivery for unknown job", "external_id", payload.ID)
			return "ignored: no job matches the delivered id"
		}
		s.logger.ErrorContext(ctx, "webhook job lookup failed", "external_id", payload.ID, "error", err)
		return "delivery could not be processed"
	}

	_, updateErr := s.repo.Update(ctx, rec.ID, core.JobUpdateParams{
		NonTerminalOnly: true,
		Mutate: func(r *model.JobRecord) {
			r.Status = status
			if out := string(payload.Output); out != "" {
				r.Result = &out
			}
		},
	})
	switch {
	case updateErr == nil:
		if status.Terminal() {
			// Webhook won the race; flag the poller so it stands down early.
			if cancelErr := s.canceller.RequestCancel(ctx, rec.ID); cancelErr != nil {
				s.logger.WarnContext(ctx, "request poller cancellation failed", "job_id", rec.ID, "error", cancelErr)
			}
		}
		s.logger.InfoContext(ctx, "job updated via webhook", "job_id", rec.ID, "status", status)
		return "job updated"
	case apperrors.IsConflict(updateErr):
		s.logger.InfoContext(ctx, "webhook arrived after job was already terminal", "job_id", rec.ID)
		return "ignored: job already finalized"
	default:
		s.logger.ErrorContext(ctx, "webhook update failed", "job_id", rec.ID, "error", updateErr)
		return "delivery could not be processed"
	}
}
