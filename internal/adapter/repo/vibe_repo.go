package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vibevideo/internal/domain"
)

// VibeRepositoryPG implements domain.VibeRepository.
type VibeRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewVibeRepository creates a new vibe repository backed by PostgreSQL.
func NewVibeRepository(pool *pgxpool.Pool) *VibeRepositoryPG {
	return &VibeRepositoryPG{pool: pool}
}

// GetByID fetches a vibe campaign.
func (r *VibeRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Vibe, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, active, participants, created_at FROM vibes WHERE id = $1;`, id)
	var v domain.Vibe
	if err := row.Scan(&v.ID, &v.Name, &v.Active, &v.Participants, &v.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// IncrementParticipants bumps the counter at most once per job. The guard
// insert and the counter update run in one statement so a replayed
// completion is a no-op.
func (r *VibeRepositoryPG) IncrementParticipants(ctx context.Context, vibeID, jobID string) error {
	query := `
WITH claimed AS (
    INSERT INTO vibe_participations (vibe_id, job_id)
    VALUES ($1, $2)
    ON CONFLICT (job_id) DO NOTHING
    RETURNING vibe_id
)
UPDATE vibes
SET participants = participants + 1
WHERE id IN (SELECT vibe_id FROM claimed);
`
	_, err := r.pool.Exec(ctx, query, vibeID, jobID)
	return err
}

var _ domain.VibeRepository = (*VibeRepositoryPG)(nil)
