// Package orchestrator owns the generation job state machine. It accepts
// submissions, reconciles provider webhooks and polls through a single
// ingest path, and drives the exactly-once completion side effects.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"vibevideo/internal/domain"
	"vibevideo/internal/infra"
	"vibevideo/internal/providers/video"
	"vibevideo/internal/storage"
)

const (
	// fallbackMatchWindow bounds how far back the source-image heuristic
	// looks when a callback races the submit step.
	fallbackMatchWindow = 5 * time.Minute

	defaultProviderTimeout = 30 * time.Second
	defaultDownloadTimeout = 2 * time.Minute
)

// Config wires the orchestrator's collaborators. Jobs, Videos, Ledger,
// Provider, Store and Logger are required; the rest have working defaults.
type Config struct {
	Jobs      domain.JobRepository
	Videos    domain.VideoRepository
	Ledger    domain.LedgerRepository
	Vibes     domain.VibeRepository
	Analytics domain.AnalyticsRepository
	Provider  video.Provider
	Store     storage.ObjectStore
	Locker    JobLocker
	Logger    infra.Logger

	// HTTPClient downloads provider results and source images.
	HTTPClient *http.Client
	// GenerationCost is debited per completed job for non-anonymous users.
	GenerationCost decimal.Decimal
	// CallbackBaseURL is this service's public base URL; the webhook path
	// and job id are appended to it on submit.
	CallbackBaseURL string
	ProviderTimeout time.Duration
	Now             func() time.Time
}

// Orchestrator implements the job lifecycle described above. All methods
// are safe for concurrent use, including concurrent calls for the same job.
type Orchestrator struct {
	jobs      domain.JobRepository
	videos    domain.VideoRepository
	ledger    domain.LedgerRepository
	vibes     domain.VibeRepository
	analytics domain.AnalyticsRepository
	provider  video.Provider
	store     storage.ObjectStore
	locker    JobLocker
	logger    infra.Logger

	httpClient      *http.Client
	cost            decimal.Decimal
	callbackBaseURL string
	providerTimeout time.Duration
	now             func() time.Time
}

// New validates the configuration and constructs an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.Jobs == nil:
		return nil, errors.New("orchestrator: job repository is required")
	case cfg.Videos == nil:
		return nil, errors.New("orchestrator: video repository is required")
	case cfg.Ledger == nil:
		return nil, errors.New("orchestrator: ledger repository is required")
	case cfg.Provider == nil:
		return nil, errors.New("orchestrator: provider is required")
	case cfg.Store == nil:
		return nil, errors.New("orchestrator: object store is required")
	}
	locker := cfg.Locker
	if locker == nil {
		locker = NewKeyedMutex()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultDownloadTimeout}
	}
	providerTimeout := cfg.ProviderTimeout
	if providerTimeout <= 0 {
		providerTimeout = defaultProviderTimeout
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Orchestrator{
		jobs:            cfg.Jobs,
		videos:          cfg.Videos,
		ledger:          cfg.Ledger,
		vibes:           cfg.Vibes,
		analytics:       cfg.Analytics,
		provider:        cfg.Provider,
		store:           cfg.Store,
		locker:          locker,
		logger:          cfg.Logger,
		httpClient:      httpClient,
		cost:            cfg.GenerationCost,
		callbackBaseURL: strings.TrimRight(cfg.CallbackBaseURL, "/"),
		providerTimeout: providerTimeout,
		now:             now,
	}, nil
}

// Submit creates a job and hands it to the provider. A provider rejection
// or timeout fails the job immediately; the caller may resubmit. The
// returned error wraps domain.ErrProviderFailure in that case while the job
// record still reflects the failure.
func (o *Orchestrator) Submit(ctx context.Context, imageURL, prompt string, opts domain.JobOptions) (*domain.GenerationJob, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, errors.New("orchestrator: source image is required")
	}

	if opts.VibeID != nil {
		vibe, err := o.vibes.GetByID(ctx, *opts.VibeID)
		if err != nil {
			return nil, fmt.Errorf("resolve vibe: %w", err)
		}
		if !vibe.Active {
			return nil, domain.ErrVibeInactive
		}
	}

	job := &domain.GenerationJob{
		ID:              uuid.NewString(),
		UserID:          opts.UserID,
		VibeID:          opts.VibeID,
		SourceImageURL:  imageURL,
		Prompt:          prompt,
		DurationSeconds: opts.DurationSeconds,
		AspectRatio:     opts.AspectRatio,
		Status:          domain.JobStatusQueued,
		CreatedAt:       o.now(),
	}
	if err := o.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	o.countAnalytics(ctx, "jobs_submitted")

	sctx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	defer cancel()
	taskID, err := o.provider.Submit(sctx, video.SubmitRequest{
		ImageURL:        imageURL,
		Prompt:          prompt,
		DurationSeconds: opts.DurationSeconds,
		AspectRatio:     opts.AspectRatio,
		CallbackURL:     o.callbackURL(job.ID),
	})
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("orchestrator: provider submit failed")
		msg := err.Error()
		if mErr := o.jobs.MarkFailed(ctx, job.ID, msg); mErr != nil && !errors.Is(mErr, domain.ErrJobTerminal) {
			o.logger.Error().Err(mErr).Str("job_id", job.ID).Msg("orchestrator: mark failed after submit error")
		}
		o.countAnalytics(ctx, "generation_fail")
		job.Status = domain.JobStatusFailed
		job.ErrorMessage = &msg
		return job, fmt.Errorf("%w: %s", domain.ErrProviderFailure, msg)
	}

	if err := o.jobs.SetExternalTaskID(ctx, job.ID, taskID); err != nil && !errors.Is(err, domain.ErrDuplicateOperation) {
		return nil, fmt.Errorf("persist task id: %w", err)
	}
	job.ExternalTaskID = &taskID
	job.Status = domain.JobStatusProcessing
	o.logger.Info().Str("job_id", job.ID).Str("task_id", taskID).Msg("orchestrator: job submitted")
	return job, nil
}

// IngestProviderEvent is the single reconciliation path for webhook pushes
// and poll results. Events for terminal jobs return domain.ErrJobTerminal
// and have no effect; events that match no job return
// domain.ErrEventUnresolved.
func (o *Orchestrator) IngestProviderEvent(ctx context.Context, evt domain.ProviderEvent) error {
	job, err := o.resolveJob(ctx, evt)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		o.logger.Debug().Str("job_id", job.ID).Str("status", string(job.Status)).
			Msg("orchestrator: event for terminal job dropped")
		return domain.ErrJobTerminal
	}

	// A heuristic match or a job-id-correlated callback may arrive before
	// the submit step persisted the task id.
	if job.ExternalTaskID == nil && evt.TaskID != "" {
		if err := o.jobs.SetExternalTaskID(ctx, job.ID, evt.TaskID); err != nil && !errors.Is(err, domain.ErrDuplicateOperation) {
			return fmt.Errorf("backfill task id: %w", err)
		}
		taskID := evt.TaskID
		job.ExternalTaskID = &taskID
	}

	switch evt.Kind {
	case domain.EventProgress:
		if err := o.jobs.UpdateProgress(ctx, job.ID, evt.Progress); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
		return nil

	case domain.EventFailed:
		if err := o.jobs.MarkFailed(ctx, job.ID, evt.ErrorText); err != nil {
			if errors.Is(err, domain.ErrJobTerminal) {
				return nil
			}
			return fmt.Errorf("mark failed: %w", err)
		}
		o.countAnalytics(ctx, "generation_fail")
		o.logger.Info().Str("job_id", job.ID).Str("error", evt.ErrorText).Msg("orchestrator: job failed")
		return nil

	case domain.EventSucceeded:
		unlock, err := o.locker.Lock(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("acquire job lock: %w", err)
		}
		defer unlock()

		// Re-read under the lock: a concurrent reconciliation may have
		// finished while we waited.
		job, err = o.jobs.GetByID(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("reload job: %w", err)
		}
		if job.Status.IsTerminal() {
			return nil
		}
		return o.completeJob(ctx, job, evt.ResultURL)

	default:
		return fmt.Errorf("orchestrator: unknown event kind %q", evt.Kind)
	}
}

// GetStatus returns the job and, when completed, its video. Non-terminal
// jobs with a task id are reconciled against the provider first; a poll
// error falls back to the last persisted state.
func (o *Orchestrator) GetStatus(ctx context.Context, jobID string) (*domain.GenerationJob, *domain.Video, error) {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}

	if !job.Status.IsTerminal() && job.ExternalTaskID != nil {
		if err := o.pollAndIngest(ctx, job); err != nil {
			o.logger.Warn().Err(err).Str("job_id", job.ID).Msg("orchestrator: poll failed, serving persisted state")
		} else if job, err = o.jobs.GetByID(ctx, jobID); err != nil {
			return nil, nil, err
		}
	}

	var v *domain.Video
	if job.Status == domain.JobStatusCompleted {
		v, err = o.videos.GetByJobID(ctx, job.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, nil, err
		}
	}
	return job, v, nil
}

// Reconcile polls the provider for one job and feeds the result through
// ingest. Used by the sweep worker for jobs whose webhooks never arrived.
func (o *Orchestrator) Reconcile(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() || job.ExternalTaskID == nil {
		return nil
	}
	return o.pollAndIngest(ctx, job)
}

// Cancel marks the job cancelled locally and notifies the provider on a
// best-effort basis. A late provider callback will hit the terminal no-op.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return domain.ErrJobTerminal
	}

	if job.ExternalTaskID != nil {
		cctx, cancel := context.WithTimeout(ctx, o.providerTimeout)
		defer cancel()
		if err := o.provider.Cancel(cctx, *job.ExternalTaskID); err != nil {
			o.logger.Warn().Err(err).Str("job_id", job.ID).Msg("orchestrator: provider cancel not acknowledged")
		}
	}

	if err := o.jobs.MarkCancelled(ctx, jobID); err != nil {
		return err
	}
	o.logger.Info().Str("job_id", jobID).Msg("orchestrator: job cancelled")
	return nil
}

func (o *Orchestrator) pollAndIngest(ctx context.Context, job *domain.GenerationJob) error {
	pctx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	defer cancel()
	res, err := o.provider.Poll(pctx, *job.ExternalTaskID)
	if err != nil {
		return fmt.Errorf("provider poll: %w", err)
	}
	evt := eventFromPoll(res)
	evt.JobID = job.ID
	if err := o.IngestProviderEvent(ctx, evt); err != nil &&
		!errors.Is(err, domain.ErrJobTerminal) && !errors.Is(err, domain.ErrEventUnresolved) {
		return err
	}
	return nil
}

// resolveJob finds the job an event belongs to: by our job id when the
// callback echoed it, by external task id otherwise, and finally by the
// source-image recency heuristic for callbacks that raced the submit step.
func (o *Orchestrator) resolveJob(ctx context.Context, evt domain.ProviderEvent) (*domain.GenerationJob, error) {
	if evt.JobID != "" {
		job, err := o.jobs.GetByID(ctx, evt.JobID)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	if evt.TaskID != "" {
		job, err := o.jobs.GetByExternalTaskID(ctx, evt.TaskID)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	if evt.SourceImageURL != "" {
		cutoff := o.now().Add(-fallbackMatchWindow)
		job, err := o.jobs.FindRecentBySourceImage(ctx, evt.SourceImageURL, cutoff)
		if err == nil {
			o.logger.Info().Str("job_id", job.ID).Str("task_id", evt.TaskID).
				Msg("orchestrator: event matched via source image heuristic")
			return job, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	o.logger.Warn().Str("task_id", evt.TaskID).Str("job_id", evt.JobID).
		Msg("orchestrator: provider event unresolvable, dropping")
	return nil, domain.ErrEventUnresolved
}

func (o *Orchestrator) callbackURL(jobID string) string {
	if o.callbackBaseURL == "" {
		return ""
	}
	return o.callbackBaseURL + "/v1/webhooks/generation?job_id=" + url.QueryEscape(jobID)
}

func (o *Orchestrator) countAnalytics(ctx context.Context, counter string) {
	if o.analytics == nil {
		return
	}
	day := o.now().Format("2006-01-02")
	if err := o.analytics.IncrementCounters(ctx, day, map[string]int{counter: 1}); err != nil {
		o.logger.Warn().Err(err).Str("counter", counter).Msg("orchestrator: analytics increment failed")
	}
}

func eventFromPoll(res *video.PollResult) domain.ProviderEvent {
	evt := domain.ProviderEvent{
		TaskID:    res.TaskID,
		Progress:  res.Progress,
		ResultURL: res.ResultURL,
		ErrorText: res.ErrorText,
	}
	switch res.State {
	case video.StateSuccess:
		evt.Kind = domain.EventSucceeded
	case video.StateFail:
		evt.Kind = domain.EventFailed
	default:
		evt.Kind = domain.EventProgress
	}
	return evt
}
