package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vibevideo/internal/domain"
)

type jobCreateRequest struct {
	ImageURL        string  `json:"image_url" validate:"required,url"`
	Prompt          string  `json:"prompt" validate:"required,max=2000"`
	DurationSeconds int     `json:"duration_seconds" validate:"omitempty,min=1,max=60"`
	AspectRatio     string  `json:"aspect_ratio" validate:"omitempty,oneof=16:9 9:16 1:1"`
	UserID          *string `json:"user_id" validate:"omitempty,uuid"`
	VibeID          *string `json:"vibe_id" validate:"omitempty,uuid"`
}

type jobResponse struct {
	ID             string         `json:"id"`
	Status         string         `json:"status"`
	Progress       int            `json:"progress"`
	ErrorMessage   *string        `json:"error_message,omitempty"`
	ExternalTaskID *string        `json:"external_task_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	Video          *videoResponse `json:"video,omitempty"`
}

type videoResponse struct {
	ID           string  `json:"id"`
	URL          string  `json:"url"`
	ThumbnailURL *string `json:"thumbnail_url,omitempty"`
	Duration     int     `json:"duration"`
	Quality      string  `json:"quality"`
}

// JobsCreate accepts a submission and hands it to the orchestrator.
func (a *App) JobsCreate(w http.ResponseWriter, r *http.Request) {
	var req jobCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.DurationSeconds == 0 {
		req.DurationSeconds = 5
	}
	if req.AspectRatio == "" {
		req.AspectRatio = "16:9"
	}

	job, err := a.Orch.Submit(r.Context(), req.ImageURL, req.Prompt, domain.JobOptions{
		UserID:          req.UserID,
		VibeID:          req.VibeID,
		DurationSeconds: req.DurationSeconds,
		AspectRatio:     req.AspectRatio,
	})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "vibe not found")
		return
	case errors.Is(err, domain.ErrVibeInactive):
		a.error(w, http.StatusUnprocessableEntity, "vibe_inactive", "vibe is not accepting submissions")
		return
	case errors.Is(err, domain.ErrProviderFailure):
		// The job record exists and reflects the failure; the caller may
		// resubmit as a new job.
		a.json(w, http.StatusBadGateway, toJobResponse(job, nil))
		return
	case err != nil:
		a.Logger.Error().Err(err).Msg("handlers: job create failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}
	a.json(w, http.StatusAccepted, toJobResponse(job, nil))
}

// JobsStatus serves job status; the orchestrator may reconcile against the
// provider before answering.
func (a *App) JobsStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, video, err := a.Orch.GetStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: job status failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, toJobResponse(job, video))
}

// JobsCancel cancels a queued or processing job.
func (a *App) JobsCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	err := a.Orch.Cancel(r.Context(), jobID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrJobTerminal):
		a.error(w, http.StatusConflict, "terminal", "job already finished")
	case err != nil:
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: job cancel failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to cancel job")
	default:
		a.json(w, http.StatusOK, map[string]string{"id": jobID, "status": string(domain.JobStatusCancelled)})
	}
}

type engagementRequest struct {
	Kind string `json:"kind" validate:"required,oneof=view like share"`
}

// VideosEngage bumps a video engagement counter.
func (a *App) VideosEngage(w http.ResponseWriter, r *http.Request) {
	if a.Videos == nil {
		a.error(w, http.StatusNotFound, "not_found", "engagement not enabled")
		return
	}
	videoID := chi.URLParam(r, "video_id")
	var req engagementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := a.Videos.IncrementEngagement(r.Context(), videoID, domain.EngagementKind(req.Kind)); err != nil {
		a.Logger.Error().Err(err).Str("video_id", videoID).Msg("handlers: engagement failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to record engagement")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toJobResponse(job *domain.GenerationJob, video *domain.Video) jobResponse {
	resp := jobResponse{
		ID:             job.ID,
		Status:         string(job.Status),
		Progress:       job.Progress,
		ErrorMessage:   job.ErrorMessage,
		ExternalTaskID: job.ExternalTaskID,
		CreatedAt:      job.CreatedAt,
		CompletedAt:    job.CompletedAt,
	}
	if video != nil {
		resp.Video = &videoResponse{
			ID:           video.ID,
			URL:          video.URL,
			ThumbnailURL: video.ThumbnailURL,
			Duration:     video.Duration,
			Quality:      video.Quality,
		}
	}
	return resp
}
