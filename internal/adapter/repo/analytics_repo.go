package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"vibevideo/internal/domain"
)

// AnalyticsRepositoryPG implements AnalyticsRepository using PostgreSQL.
type AnalyticsRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAnalyticsRepository constructs the repository.
func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepositoryPG {
	return &AnalyticsRepositoryPG{pool: pool}
}

// IncrementCounters upserts metrics for the provided day.
func (r *AnalyticsRepositoryPG) IncrementCounters(ctx context.Context, day string, counters map[string]int) error {
	query := `
INSERT INTO analytics_daily (
    day, jobs_submitted, videos_generated, generation_success, generation_fail
) VALUES (
    $1, $2, $3, $4, $5
) ON CONFLICT (day) DO UPDATE SET
    jobs_submitted = analytics_daily.jobs_submitted + EXCLUDED.jobs_submitted,
    videos_generated = analytics_daily.videos_generated + EXCLUDED.videos_generated,
    generation_success = analytics_daily.generation_success + EXCLUDED.generation_success,
    generation_fail = analytics_daily.generation_fail + EXCLUDED.generation_fail;
`
	_, err := r.pool.Exec(ctx, query,
		day,
		counters["jobs_submitted"],
		counters["videos_generated"],
		counters["generation_success"],
		counters["generation_fail"],
	)
	return err
}

var _ domain.AnalyticsRepository = (*AnalyticsRepositoryPG)(nil)
