// Package model defines the core data types shared across the dispatch job orchestrator.
package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Status represents the lifecycle state of a job.
//
// The set is deliberately open: the compute service may report intermediate
// statuses (IN_QUEUE, IN_PROGRESS, ...) that are passed through verbatim, so
// only the states owned by the orchestrator are enumerated here.
type Status string

const (
	// StatusPending indicates the record exists but the job has not yet been
	// handed to the compute service.
	StatusPending Status = "PENDING"
	// StatusSubmitted indicates the compute service accepted the job and
	// assigned an external id.
	StatusSubmitted Status = "SUBMITTED"
	// StatusCompleted indicates the compute service finished the job successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job failed, either at submission or during execution.
	StatusFailed Status = "FAILED"
	// StatusTimeout indicates the polling budget was exhausted before a terminal report.
	StatusTimeout Status = "TIMEOUT"
	// StatusPollError indicates the last poll response could not be interpreted.
	StatusPollError Status = "POLL_ERROR"
)

// Terminal returns true if no further transition is expected from the status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimeout || s == StatusPollError
}

// MapComputeStatus translates a compute service status report into a job
// status. Terminal reports map onto the orchestrator's own terminal states;
// anything else (IN_QUEUE, IN_PROGRESS, ...) is passed through verbatim.
func MapComputeStatus(s string) Status {
	switch s {
	case "COMPLETED":
		return StatusCompleted
	case "FAILED":
		return StatusFailed
	default:
		return Status(s)
	}
}

// JobRecord is the single durable entity tracked per job.
//
// Result holds the raw payload reported by the compute service. It is stored
// verbatim and only parsed when served to a client, so a malformed payload
// never poisons the record itself.
type JobRecord struct {
	ID           string     `json:"id"                       db:"id"`
	ExternalID   *string    `json:"external_id,omitempty"    db:"external_id"`
	Status       Status     `json:"status"                   db:"status"`
	Prompt       string     `json:"prompt"                   db:"prompt"`
	Result       *string    `json:"result,omitempty"         db:"result"`
	PollCount    int        `json:"poll_count"               db:"poll_count"`
	LastPolledAt *time.Time `json:"last_polled_at,omitempty" db:"last_polled_at"`
	CreatedAt    time.Time  `json:"created_at"               db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"               db:"updated_at"`
}

// SubmitJobRequest is the payload accepted by the submit endpoint.
type SubmitJobRequest struct {
	Prompt string `json:"prompt"`
}

// Validate validates the SubmitJobRequest fields.
func (r *SubmitJobRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.New("prompt is required")
	}
	return nil
}

// JobResponse is the client-facing view of a job.
type JobResponse struct {
	JobID  string `json:"job_id"`
	Status Status `json:"status"`
	Result any    `json:"result,omitempty"`
}

// WebhookPayload is the notification body delivered by the compute service.
type WebhookPayload struct {
	ID     string          `json:"id"`
	Status Status          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
}

// StreamFrame is one message delivered to a live-status subscriber.
type StreamFrame struct {
	JobID  string `json:"job_id,omitempty"`
	Status Status `json:"status,omitempty"`
	Result any    `json:"result"`
	Error  string `json:"error,omitempty"`
}

// ParseResult interprets a stored result payload for delivery to a client.
//
// A missing or JSON-null payload yields nil. Valid JSON is passed through
// untouched. Anything else is wrapped so the request still succeeds and the
// raw value remains inspectable.
func ParseResult(raw *string) any {
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	return map[string]any{
		"error": "could not parse result as JSON",
		"raw":   *raw,
	}
}

// NewJobResponse builds the client view for a record, parsing the stored result.
func NewJobResponse(rec *JobRecord) *JobResponse {
	return &JobResponse{
		JobID:  rec.ID,
		Status: rec.Status,
		Result: ParseResult(rec.Result),
	}
}
