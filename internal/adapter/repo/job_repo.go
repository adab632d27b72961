package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vibevideo/internal/domain"
)

const jobColumns = `id, user_id, vibe_id, source_image_url, prompt, duration_seconds, aspect_ratio,
       external_task_id, status, progress, error_message, created_at, updated_at, completed_at`

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.GenerationJob) error {
	query := `
INSERT INTO generation_jobs (id, user_id, vibe_id, source_image_url, prompt, duration_seconds, aspect_ratio, status, progress)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.UserID,
		job.VibeID,
		job.SourceImageURL,
		job.Prompt,
		job.DurationSeconds,
		job.AspectRatio,
		job.Status,
		job.Progress,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, id string) (*domain.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1;`
	return r.scanJob(r.pool.QueryRow(ctx, query, id))
}

// GetByExternalTaskID fetches the job correlated with a provider task.
func (r *JobRepositoryPG) GetByExternalTaskID(ctx context.Context, taskID string) (*domain.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE external_task_id = $1;`
	return r.scanJob(r.pool.QueryRow(ctx, query, taskID))
}

// FindRecentBySourceImage returns the newest job for the image with no
// external task id created after cutoff.
func (r *JobRepositoryPG) FindRecentBySourceImage(ctx context.Context, imageURL string, cutoff time.Time) (*domain.GenerationJob, error) {
	query := `
SELECT ` + jobColumns + `
FROM generation_jobs
WHERE source_image_url = $1
  AND external_task_id IS NULL
  AND created_at >= $2
ORDER BY created_at DESC
LIMIT 1;
`
	return r.scanJob(r.pool.QueryRow(ctx, query, imageURL, cutoff))
}

// SetExternalTaskID backfills the provider task id and moves the job to
// processing. A job whose id is already set is left untouched.
func (r *JobRepositoryPG) SetExternalTaskID(ctx context.Context, jobID, taskID string) error {
	query := `
UPDATE generation_jobs
SET external_task_id = $2,
    status = $3,
    updated_at = NOW()
WHERE id = $1
  AND external_task_id IS NULL
  AND status IN ($4, $5);
`
	tag, err := r.pool.Exec(ctx, query, jobID, taskID,
		domain.JobStatusProcessing, domain.JobStatusQueued, domain.JobStatusProcessing)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateOperation
	}
	return nil
}

// UpdateProgress raises progress on a non-terminal job. GREATEST keeps the
// persisted value monotonic under out-of-order events.
func (r *JobRepositoryPG) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	query := `
UPDATE generation_jobs
SET progress = GREATEST(progress, $2),
    updated_at = NOW()
WHERE id = $1
  AND status IN ($3, $4);
`
	_, err := r.pool.Exec(ctx, query, jobID, progress, domain.JobStatusQueued, domain.JobStatusProcessing)
	return err
}

// MarkCompleted transitions processing -> completed. The status guard makes
// concurrent success reconciliations race safely: only one update wins.
func (r *JobRepositoryPG) MarkCompleted(ctx context.Context, jobID string, completedAt time.Time) error {
	query := `
UPDATE generation_jobs
SET status = $2,
    progress = 100,
    completed_at = $3,
    updated_at = NOW()
WHERE id = $1
  AND status = $4;
`
	tag, err := r.pool.Exec(ctx, query, jobID, domain.JobStatusCompleted, completedAt, domain.JobStatusProcessing)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobTerminal
	}
	return nil
}

// MarkFailed transitions a non-terminal job to failed.
func (r *JobRepositoryPG) MarkFailed(ctx context.Context, jobID, errMsg string) error {
	query := `
UPDATE generation_jobs
SET status = $2,
    error_message = $3,
    completed_at = NOW(),
    updated_at = NOW()
WHERE id = $1
  AND status IN ($4, $5);
`
	tag, err := r.pool.Exec(ctx, query, jobID, domain.JobStatusFailed, errMsg,
		domain.JobStatusQueued, domain.JobStatusProcessing)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobTerminal
	}
	return nil
}

// MarkCancelled transitions queued/processing to cancelled.
func (r *JobRepositoryPG) MarkCancelled(ctx context.Context, jobID string) error {
	query := `
UPDATE generation_jobs
SET status = $2,
    completed_at = NOW(),
    updated_at = NOW()
WHERE id = $1
  AND status IN ($3, $4);
`
	tag, err := r.pool.Exec(ctx, query, jobID, domain.JobStatusCancelled,
		domain.JobStatusQueued, domain.JobStatusProcessing)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobTerminal
	}
	return nil
}

// ListStaleProcessing returns processing jobs not touched since cutoff.
func (r *JobRepositoryPG) ListStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]domain.GenerationJob, error) {
	query := `
SELECT ` + jobColumns + `
FROM generation_jobs
WHERE status = $1
  AND external_task_id IS NOT NULL
  AND updated_at < $2
ORDER BY updated_at ASC
LIMIT $3;
`
	rows, err := r.pool.Query(ctx, query, domain.JobStatusProcessing, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.GenerationJob
	for rows.Next() {
		job, err := scanJobFrom(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (r *JobRepositoryPG) scanJob(row pgx.Row) (*domain.GenerationJob, error) {
	job, err := scanJobFrom(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func scanJobFrom(row pgx.Row) (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.VibeID,
		&job.SourceImageURL,
		&job.Prompt,
		&job.DurationSeconds,
		&job.AspectRatio,
		&job.ExternalTaskID,
		&job.Status,
		&job.Progress,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &job, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
