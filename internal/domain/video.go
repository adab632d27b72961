package domain

import "time"

// Video is the produced artifact of a completed job. Exactly one video
// exists per completed job; creation is guarded by a lookup on JobID.
type Video struct {
	ID           string
	JobID        string
	URL          string
	ThumbnailURL *string
	Duration     int
	Quality      string
	Public       bool
	Views        int64
	Likes        int64
	Shares       int64
	CreatedAt    time.Time
}

// EngagementKind enumerates the counters a viewer action can bump.
type EngagementKind string

const (
	EngagementView  EngagementKind = "view"
	EngagementLike  EngagementKind = "like"
	EngagementShare EngagementKind = "share"
)
