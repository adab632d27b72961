package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"vibevideo/internal/domain"
	"vibevideo/internal/infra"
)

// JobService is the orchestrator surface the HTTP layer consumes.
type JobService interface {
	Submit(ctx context.Context, imageURL, prompt string, opts domain.JobOptions) (*domain.GenerationJob, error)
	IngestProviderEvent(ctx context.Context, evt domain.ProviderEvent) error
	GetStatus(ctx context.Context, jobID string) (*domain.GenerationJob, *domain.Video, error)
	Cancel(ctx context.Context, jobID string) error
}

// App is the handler container. Videos is optional; without it the
// engagement endpoint returns 404.
type App struct {
	Orch     JobService
	Videos   domain.VideoRepository
	Logger   infra.Logger
	validate *validator.Validate
}

// NewApp wires the handler container.
func NewApp(orch JobService, videos domain.VideoRepository, logger infra.Logger) *App {
	return &App{
		Orch:     orch,
		Videos:   videos,
		Logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]any{
		"error":   kind,
		"message": message,
	})
}
