package domain

import "time"

// JobStatus enumerates generation job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// GenerationJob tracks one image-to-video request through the external
// provider. Jobs are never deleted; terminal states are final.
type GenerationJob struct {
	ID              string
	UserID          *string
	VibeID          *string
	SourceImageURL  string
	Prompt          string
	DurationSeconds int
	AspectRatio     string
	ExternalTaskID  *string
	Status          JobStatus
	Progress        int
	ErrorMessage    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// EventKind classifies a provider report about a job.
type EventKind string

const (
	EventProgress  EventKind = "progress"
	EventSucceeded EventKind = "succeeded"
	EventFailed    EventKind = "failed"
)

// ProviderEvent is the normalized transition input fed into reconciliation.
// Webhook delivery and polling both produce this shape.
type ProviderEvent struct {
	// TaskID is the provider's identifier. May be empty for poll-originated
	// events that already resolved the job.
	TaskID string
	// JobID is set when the callback URL echoed our job id back.
	JobID string
	// SourceImageURL supports the fallback match when the webhook raced the
	// submit step and the external task id is not persisted yet.
	SourceImageURL string
	Kind           EventKind
	Progress       int
	ResultURL      string
	ErrorText      string
}

// JobOptions carries the optional attributes of a submission.
type JobOptions struct {
	UserID          *string
	VibeID          *string
	DurationSeconds int
	AspectRatio     string
}
