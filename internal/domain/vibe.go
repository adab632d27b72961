package domain

import "time"

// Vibe is a campaign that jobs may participate in. The participation
// counter is incremented at most once per completed job.
type Vibe struct {
	ID           string
	Name         string
	Active       bool
	Participants int64
	CreatedAt    time.Time
}
