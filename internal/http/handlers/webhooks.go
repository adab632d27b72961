package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"vibevideo/internal/domain"
)

// generationWebhook is the provider's push payload. The job id travels in
// the callback URL's query string, not the body.
type generationWebhook struct {
	TaskID   string  `json:"task_id"`
	Status   string  `json:"status"`
	Progress int     `json:"progress"`
	VideoURL string  `json:"video_url"`
	ImageURL string  `json:"image_url"`
	Error    *string `json:"error"`
}

// WebhookGeneration ingests a provider callback. It always answers 2xx so
// the provider stops redelivering; the body distinguishes processed,
// duplicate and unresolved outcomes for observability.
func (a *App) WebhookGeneration(w http.ResponseWriter, r *http.Request) {
	var payload generationWebhook
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	evt := domain.ProviderEvent{
		TaskID:         payload.TaskID,
		JobID:          r.URL.Query().Get("job_id"),
		SourceImageURL: payload.ImageURL,
		Kind:           webhookEventKind(payload.Status),
		Progress:       payload.Progress,
		ResultURL:      payload.VideoURL,
	}
	if payload.Error != nil {
		evt.ErrorText = *payload.Error
	}

	err := a.Orch.IngestProviderEvent(r.Context(), evt)
	switch {
	case errors.Is(err, domain.ErrEventUnresolved):
		a.json(w, http.StatusOK, map[string]string{"outcome": "unresolved"})
	case errors.Is(err, domain.ErrJobTerminal):
		a.json(w, http.StatusOK, map[string]string{"outcome": "duplicate"})
	case err != nil:
		a.Logger.Error().Err(err).Str("task_id", payload.TaskID).Msg("handlers: webhook ingest failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to process event")
	default:
		a.json(w, http.StatusOK, map[string]string{"outcome": "processed"})
	}
}

func webhookEventKind(status string) domain.EventKind {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success", "succeeded", "completed":
		return domain.EventSucceeded
	case "fail", "failed", "error":
		return domain.EventFailed
	default:
		return domain.EventProgress
	}
}
