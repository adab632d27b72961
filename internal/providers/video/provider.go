// Package video defines the adapter contract for the external
// image-to-video generation provider and its concrete HTTP client.
package video

import "context"

// TaskState is the provider's view of a task.
type TaskState string

const (
	StateWaiting    TaskState = "waiting"
	StateProcessing TaskState = "processing"
	StateSuccess    TaskState = "success"
	StateFail       TaskState = "fail"
)

// SubmitRequest carries the inputs for starting a generation task.
type SubmitRequest struct {
	ImageURL        string
	Prompt          string
	DurationSeconds int
	AspectRatio     string
	// CallbackURL is where the provider pushes task updates. It carries the
	// job id so callbacks can be correlated without the task id.
	CallbackURL string
}

// PollResult is the normalized status the provider reports, from either a
// poll response or a webhook payload.
type PollResult struct {
	TaskID    string
	State     TaskState
	Progress  int
	ResultURL string
	ErrorText string
}

// Provider is the external generation service. Implementations must bound
// every call with the context deadline.
type Provider interface {
	Submit(ctx context.Context, req SubmitRequest) (taskID string, err error)
	Poll(ctx context.Context, taskID string) (*PollResult, error)
	Cancel(ctx context.Context, taskID string) error
}
