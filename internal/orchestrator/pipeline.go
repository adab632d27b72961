package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"vibevideo/internal/domain"
	"vibevideo/internal/thumbnail"
)

// maxAssetBytes caps downloads of provider results and source images.
const maxAssetBytes = 256 << 20

// completeJob runs the completion side effects and then marks the job
// completed. Every step is idempotent, so the whole pipeline can rerun from
// the top after a crash: the storage key is deterministic, the video row is
// guarded by its job id, the debit by a per-job lookup and the counter by a
// participation insert. A fatal step returns an error and leaves the job in
// processing for a later redelivery or poll to retry.
func (o *Orchestrator) completeJob(ctx context.Context, job *domain.GenerationJob, resultURL string) error {
	existing, err := o.videos.GetByJobID(ctx, job.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("lookup video: %w", err)
	}

	v := existing
	if v == nil {
		if resultURL == "" {
			return errors.New("success event without result url")
		}
		data, err := o.download(ctx, resultURL)
		if err != nil {
			return fmt.Errorf("fetch provider result: %w", err)
		}
		storedURL, err := o.store.Put(ctx, videoKey(job.ID), data, "video/mp4")
		if err != nil {
			return fmt.Errorf("persist video asset: %w", err)
		}

		v = &domain.Video{
			ID:       uuid.NewString(),
			JobID:    job.ID,
			URL:      storedURL,
			Duration: job.DurationSeconds,
			Quality:  "hd",
			Public:   true,
		}
		if err := o.videos.Create(ctx, v); err != nil {
			if errors.Is(err, domain.ErrDuplicateOperation) {
				// A concurrent reconciliation inserted it first.
				if v, err = o.videos.GetByJobID(ctx, job.ID); err != nil {
					return fmt.Errorf("reload video: %w", err)
				}
			} else {
				return fmt.Errorf("create video: %w", err)
			}
		} else {
			o.generateThumbnail(ctx, job, v)
		}
	}

	if job.UserID != nil {
		err := o.ledger.DebitForJob(ctx, *job.UserID, job.ID, o.cost,
			fmt.Sprintf("video generation %s", job.ID))
		switch {
		case errors.Is(err, domain.ErrDuplicateOperation):
			o.logger.Debug().Str("job_id", job.ID).Msg("pipeline: debit already recorded")
		case errors.Is(err, domain.ErrInsufficientCredits):
			// Deliberate policy: the generation already happened, so the
			// user keeps the result and the missed debit is only logged.
			o.logger.Warn().Str("job_id", job.ID).Str("user_id", *job.UserID).
				Msg("pipeline: insufficient balance, debit skipped")
		case err != nil:
			return fmt.Errorf("debit credits: %w", err)
		}
	}

	if job.VibeID != nil {
		if err := o.vibes.IncrementParticipants(ctx, *job.VibeID, job.ID); err != nil {
			return fmt.Errorf("increment vibe counter: %w", err)
		}
	}

	if err := o.jobs.MarkCompleted(ctx, job.ID, o.now()); err != nil {
		if errors.Is(err, domain.ErrJobTerminal) {
			// Lost the final race; the winner applied the same idempotent
			// effects.
			return nil
		}
		return fmt.Errorf("mark completed: %w", err)
	}

	o.countAnalytics(ctx, "videos_generated")
	o.countAnalytics(ctx, "generation_success")
	o.logger.Info().Str("job_id", job.ID).Str("video_id", v.ID).Msg("pipeline: job completed")
	return nil
}

// generateThumbnail renders a thumbnail from the source image, not the
// video. Failures are logged and never fail the pipeline; the thumbnail can
// be backfilled out of band.
func (o *Orchestrator) generateThumbnail(ctx context.Context, job *domain.GenerationJob, v *domain.Video) {
	data, err := o.download(ctx, job.SourceImageURL)
	if err != nil {
		o.logger.Warn().Err(err).Str("job_id", job.ID).Msg("pipeline: thumbnail source fetch failed")
		return
	}
	thumb, err := thumbnail.FromImage(data, 0)
	if err != nil {
		o.logger.Warn().Err(err).Str("job_id", job.ID).Msg("pipeline: thumbnail render failed")
		return
	}
	thumbURL, err := o.store.Put(ctx, thumbnailKey(job.ID), thumb, "image/jpeg")
	if err != nil {
		o.logger.Warn().Err(err).Str("job_id", job.ID).Msg("pipeline: thumbnail upload failed")
		return
	}
	if err := o.videos.SetThumbnailURL(ctx, v.ID, thumbURL); err != nil {
		o.logger.Warn().Err(err).Str("job_id", job.ID).Msg("pipeline: thumbnail persist failed")
		return
	}
	v.ThumbnailURL = &thumbURL
}

func (o *Orchestrator) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("download %s: status %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
}

// videoKey is deterministic per job so a rerun overwrites instead of
// duplicating.
func videoKey(jobID string) string {
	return "videos/" + jobID + ".mp4"
}

func thumbnailKey(jobID string) string {
	return "thumbnails/" + jobID + ".jpg"
}
