package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dispatchlab/dispatch/internal/core"
	"github.com/dispatchlab/dispatch/internal/data/pgxutil"
	"github.com/dispatchlab/dispatch/internal/domain/model"
	apperrors "github.com/dispatchlab/dispatch/internal/errors"
)

// Create inserts a new job record.
func (r *JobRepo) Create(ctx context.Context, rec *model.JobRecord) error {
	if rec == nil {
		return errors.New("job record is required")
	}

	now := r.timeProvider.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO job_records (id, external_id, status, prompt, result, poll_count, last_polled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.ID, rec.ExternalID, rec.Status, rec.Prompt, rec.Result, rec.PollCount, rec.LastPolledAt, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return apperrors.Conflict(fmt.Sprintf("job record %s already exists", rec.ID))
		}
		return fmt.Errorf("insert job record: %w", err)
	}
	return nil
}

// GetByID retrieves a job record by its internal ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.JobRecord, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

// GetByExternalID retrieves a job record by the compute service's job ID.
func (r *JobRepo) GetByExternalID(ctx context.Context, externalID string) (*model.JobRecord, error) {
	return r.getOne(ctx, `WHERE external_id = $1`, externalID)
}

func (r *JobRepo) getOne(ctx context.Context, where string, arg any) (*model.JobRecord, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+jobRecordColumns+` FROM job_records `+where, arg)
	rec, err := scanJobRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("job record not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get job record: %w", err)
	}
	return rec, nil
}

// Update atomically loads, mutates, and persists a job record. The row is
// locked for the duration of the transaction so concurrent writers (poller
// and webhook racing each other) serialize here.
func (r *JobRepo) Update(ctx context.Context, id string, params core.JobUpdateParams) (*model.JobRecord, error) {
	if params.Mutate == nil {
		return nil, errors.New("mutate function is required")
	}

	var updated *model.JobRecord
	txErr := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			row := tx.QueryRow(ctx, `
				SELECT `+jobRecordColumns+`
				FROM job_records
				WHERE id = $1
				FOR UPDATE
			`, id)

			rec, scanErr := scanJobRecord(row)
			if errors.Is(scanErr, pgx.ErrNoRows) {
				return apperrors.NotFound("job record not found")
			}
			if scanErr != nil {
				return fmt.Errorf("load job record: %w", scanErr)
			}

			if params.NonTerminalOnly && rec.Status.Terminal() {
				return apperrors.Conflict(fmt.Sprintf("job %s is already in terminal status %s", id, rec.Status))
			}

			params.Mutate(rec)
			rec.UpdatedAt = r.timeProvider.Now().UTC()

			if _, execErr := tx.Exec(ctx, `
				UPDATE job_records
				SET external_id = $2,
				    status = $3,
				    result = $4,
				    poll_count = $5,
				    last_polled_at = $6,
				    updated_at = $7
				WHERE id = $1
			`, rec.ID, rec.ExternalID, rec.Status, rec.Result, rec.PollCount, rec.LastPolledAt, rec.UpdatedAt); execErr != nil {
				return fmt.Errorf("update job record: %w", execErr)
			}

			updated = rec
			return nil
		},
	})
	if txErr != nil {
		return nil, txErr
	}
	return updated, nil
}

// ListResumable returns non-terminal records that already have an external ID.
// These are the jobs whose pollers should be revived after a restart.
func (r *JobRepo) ListResumable(ctx context.Context) ([]*model.JobRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+jobRecordColumns+`
		FROM job_records
		WHERE external_id IS NOT NULL
		  AND status NOT IN ($1, $2, $3, $4)
		ORDER BY created_at ASC
	`, model.StatusCompleted, model.StatusFailed, model.StatusTimeout, model.StatusPollError)
	if err != nil {
		return nil, fmt.Errorf("list resumable job records: %w", err)
	}
	defer rows.Close()

	var recs []*model.JobRecord
	for rows.Next() {
		rec, scanErr := scanJobRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job record: %w", scanErr)
		}
		recs = append(recs, rec)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate job records: %w", rowsErr)
	}
	return recs, nil
}
