package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// PhotoRepositoryPG implements domain.PhotoRepository backed by PostgreSQL.
type PhotoRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewPhotoRepository creates a new photo job repository.
func NewPhotoRepository(pool *pgxpool.Pool) *PhotoRepositoryPG {
	return &PhotoRepositoryPG{pool: pool}
}

// Create inserts a new photo job record.
func (r *PhotoRepositoryPG) Create(ctx context.Context, job *domain.PhotoJob) error {
	query := `
INSERT INTO photo_jobs (id, user_id, source_url, style, status, reserved_credits, processed_url, thumbnail_url, error_reason)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.UserID,
		job.SourceURL,
		job.Style,
		job.Status,
		job.ReservedCredits,
		job.ProcessedURL,
		job.ThumbnailURL,
		job.ErrorReason,
	)
	return err
}

// UpdateStatus transitions a non-terminal job. Empty strings leave the stored
// columns untouched. A transition attempted on a terminal job is an invariant
// violation and is rejected.
func (r *PhotoRepositoryPG) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errReason, processedURL, thumbnailURL string) error {
	query := `
UPDATE photo_jobs
SET status = $2,
    updated_at = NOW(),
    error_reason = CASE WHEN $3 <> '' THEN $3 ELSE error_reason END,
    processed_url = CASE WHEN $4 <> '' THEN $4 ELSE processed_url END,
    thumbnail_url = CASE WHEN $5 <> '' THEN $5 ELSE thumbnail_url END
WHERE id = $1
  AND status IN ('queued', 'processing');
`
	tag, err := r.pool.Exec(ctx, query, jobID, status, errReason, processedURL, thumbnailURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, jobID); err != nil {
			return err
		}
		return domain.ErrLedgerConflict
	}
	return nil
}

// GetByID fetches a job by its identifier.
func (r *PhotoRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.PhotoJob, error) {
	row := r.pool.QueryRow(ctx, selectJobColumns+` WHERE id = $1`, jobID)
	return scanJob(row)
}

// ListByUser returns the user's jobs, newest first.
func (r *PhotoRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.PhotoJob, error) {
	rows, err := r.pool.Query(ctx, selectJobColumns+` WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []domain.PhotoJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// ListStuck returns non-terminal jobs whose last update predates the cutoff.
func (r *PhotoRepositoryPG) ListStuck(ctx context.Context, cutoff time.Time) ([]domain.PhotoJob, error) {
	rows, err := r.pool.Query(ctx, selectJobColumns+` WHERE status IN ('queued', 'processing') AND updated_at < $1`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []domain.PhotoJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

const selectJobColumns = `
SELECT id, user_id, source_url, style, status, reserved_credits, processed_url, thumbnail_url, error_reason, created_at, updated_at
FROM photo_jobs`

func scanJob(row pgx.Row) (*domain.PhotoJob, error) {
	var job domain.PhotoJob
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.SourceURL,
		&job.Style,
		&job.Status,
		&job.ReservedCredits,
		&job.ProcessedURL,
		&job.ThumbnailURL,
		&job.ErrorReason,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}
