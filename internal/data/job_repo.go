package data

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/dispatchlab/dispatch/internal/domain/model"
)

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides database operations for job records.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const jobRecordColumns = `
  id,
  external_id,
  status,
  prompt,
  result,
  poll_count,
  last_polled_at,
  created_at,
  updated_at
`

type recordRowScanner interface {
	Scan(dest ...any) error
}

func scanJobRecord(scanner recordRowScanner) (*model.JobRecord, error) {
	rec := &model.JobRecord{}
	var (
		externalID   sql.NullString
		result       sql.NullString
		lastPolledAt sql.NullTime
	)

	if err := scanner.Scan(
		&rec.ID,
		&externalID,
		&rec.Status,
		&rec.Prompt,
		&result,
		&rec.PollCount,
		&lastPolledAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rec.ExternalID = cloneNullableString(externalID)
	rec.Result = cloneNullableString(result)
	rec.LastPolledAt = cloneNullableTime(lastPolledAt)
	return rec, nil
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
