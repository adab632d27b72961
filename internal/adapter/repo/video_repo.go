package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vibevideo/internal/domain"
)

// VideoRepositoryPG implements domain.VideoRepository.
type VideoRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewVideoRepository creates a new video repository backed by PostgreSQL.
func NewVideoRepository(pool *pgxpool.Pool) *VideoRepositoryPG {
	return &VideoRepositoryPG{pool: pool}
}

// GetByJobID fetches the video produced by a job, if any.
func (r *VideoRepositoryPG) GetByJobID(ctx context.Context, jobID string) (*domain.Video, error) {
	query := `
SELECT id, job_id, url, thumbnail_url, duration, quality, public, views, likes, shares, created_at
FROM videos
WHERE job_id = $1;
`
	row := r.pool.QueryRow(ctx, query, jobID)
	var v domain.Video
	if err := row.Scan(
		&v.ID,
		&v.JobID,
		&v.URL,
		&v.ThumbnailURL,
		&v.Duration,
		&v.Quality,
		&v.Public,
		&v.Views,
		&v.Likes,
		&v.Shares,
		&v.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// Create inserts the video row. A unique index on job_id converts a replayed
// completion into ErrDuplicateOperation.
func (r *VideoRepositoryPG) Create(ctx context.Context, video *domain.Video) error {
	query := `
INSERT INTO videos (id, job_id, url, thumbnail_url, duration, quality, public)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	_, err := r.pool.Exec(ctx, query,
		video.ID,
		video.JobID,
		video.URL,
		video.ThumbnailURL,
		video.Duration,
		video.Quality,
		video.Public,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateOperation
	}
	return err
}

// SetThumbnailURL backfills a thumbnail produced after the video row.
func (r *VideoRepositoryPG) SetThumbnailURL(ctx context.Context, videoID, thumbnailURL string) error {
	_, err := r.pool.Exec(ctx, `UPDATE videos SET thumbnail_url = $2 WHERE id = $1;`, videoID, thumbnailURL)
	return err
}

// IncrementEngagement bumps a single engagement counter.
func (r *VideoRepositoryPG) IncrementEngagement(ctx context.Context, videoID string, kind domain.EngagementKind) error {
	var column string
	switch kind {
	case domain.EngagementView:
		column = "views"
	case domain.EngagementLike:
		column = "likes"
	case domain.EngagementShare:
		column = "shares"
	default:
		return fmt.Errorf("unsupported engagement kind %q", kind)
	}
	query := fmt.Sprintf(`UPDATE videos SET %s = %s + 1 WHERE id = $1;`, column, column)
	_, err := r.pool.Exec(ctx, query, videoID)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ domain.VideoRepository = (*VideoRepositoryPG)(nil)
