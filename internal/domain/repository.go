package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// JobRepository persists generation jobs.
type JobRepository interface {
	Create(ctx context.Context, job *GenerationJob) error
	GetByID(ctx context.Context, id string) (*GenerationJob, error)
	GetByExternalTaskID(ctx context.Context, taskID string) (*GenerationJob, error)
	// FindRecentBySourceImage returns the newest job matching the source
	// image with no external task id, created after cutoff. Used as the
	// fallback match for callbacks that raced the submit step.
	FindRecentBySourceImage(ctx context.Context, imageURL string, cutoff time.Time) (*GenerationJob, error)
	// SetExternalTaskID backfills the provider task id on a job that has
	// none yet and moves it to processing.
	SetExternalTaskID(ctx context.Context, jobID, taskID string) error
	// UpdateProgress raises progress on a non-terminal job; it never lowers
	// the persisted value.
	UpdateProgress(ctx context.Context, jobID string, progress int) error
	// MarkCompleted transitions processing -> completed. Returns
	// ErrJobTerminal when the job was no longer in processing.
	MarkCompleted(ctx context.Context, jobID string, completedAt time.Time) error
	// MarkFailed transitions a non-terminal job to failed.
	MarkFailed(ctx context.Context, jobID, errMsg string) error
	// MarkCancelled transitions queued/processing to cancelled.
	MarkCancelled(ctx context.Context, jobID string) error
	// ListStaleProcessing returns processing jobs with an external task id
	// not touched since cutoff, for the polling reconciler.
	ListStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]GenerationJob, error)
}

// VideoRepository persists produced videos.
type VideoRepository interface {
	GetByJobID(ctx context.Context, jobID string) (*Video, error)
	Create(ctx context.Context, video *Video) error
	SetThumbnailURL(ctx context.Context, videoID, thumbnailURL string) error
	IncrementEngagement(ctx context.Context, videoID string, kind EngagementKind) error
}

// LedgerRepository owns credit transactions and balances.
type LedgerRepository interface {
	GetBalance(ctx context.Context, userID string) (*Balance, error)
	// Grant appends a credit transaction and raises the balance.
	Grant(ctx context.Context, userID string, amount decimal.Decimal, description string) error
	// DebitForJob atomically records the debit for a job and lowers the
	// balance. Returns ErrDuplicateOperation if a debit for the job already
	// exists and ErrInsufficientCredits when the balance cannot cover it.
	DebitForJob(ctx context.Context, userID, jobID string, amount decimal.Decimal, description string) error
	HasDebitForJob(ctx context.Context, jobID string) (bool, error)
}

// VibeRepository persists campaigns and their participation counters.
type VibeRepository interface {
	GetByID(ctx context.Context, id string) (*Vibe, error)
	// IncrementParticipants bumps the counter at most once per job.
	IncrementParticipants(ctx context.Context, vibeID, jobID string) error
}

// AnalyticsRepository updates best-effort daily counters.
type AnalyticsRepository interface {
	IncrementCounters(ctx context.Context, day string, counters map[string]int) error
}
