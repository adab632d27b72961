package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"vibevideo/internal/http/handlers"
	"vibevideo/internal/infra"
	"vibevideo/internal/middleware"
)

// Options tunes the router's cross-cutting behavior.
type Options struct {
	RateLimitPerMin int
	AllowedOrigins  []string
	// StaticDir, when set, serves the filesystem object store under
	// /static for development deployments.
	StaticDir string
}

// NewRouter assembles the HTTP surface.
func NewRouter(app *handlers.App, logger infra.Logger, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.Logger(logger))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(opts.AllowedOrigins))
	}

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/jobs", func(r chi.Router) {
		if opts.RateLimitPerMin > 0 {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		}
		r.Post("/", app.JobsCreate)
		r.Get("/{job_id}", app.JobsStatus)
		r.Post("/{job_id}/cancel", app.JobsCancel)
	})

	// Provider callbacks are not rate limited: dropping a delivery costs a
	// reconcile cycle.
	r.Post("/v1/webhooks/generation", app.WebhookGeneration)

	r.Post("/v1/videos/{video_id}/engagement", app.VideosEngage)

	if opts.StaticDir != "" {
		fs := stdhttp.StripPrefix("/static/", stdhttp.FileServer(stdhttp.Dir(opts.StaticDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
