package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"vibevideo/internal/domain"
)

type fakeService struct {
	submitJob *domain.GenerationJob
	submitErr error
	statusJob *domain.GenerationJob
	statusVid *domain.Video
	statusErr error
	cancelErr error
	ingestErr error

	lastOpts  domain.JobOptions
	lastEvent domain.ProviderEvent
}

func (f *fakeService) Submit(_ context.Context, _, _ string, opts domain.JobOptions) (*domain.GenerationJob, error) {
	f.lastOpts = opts
	return f.submitJob, f.submitErr
}

func (f *fakeService) IngestProviderEvent(_ context.Context, evt domain.ProviderEvent) error {
	f.lastEvent = evt
	return f.ingestErr
}

func (f *fakeService) GetStatus(_ context.Context, _ string) (*domain.GenerationJob, *domain.Video, error) {
	return f.statusJob, f.statusVid, f.statusErr
}

func (f *fakeService) Cancel(_ context.Context, _ string) error {
	return f.cancelErr
}

type fakeEngagement struct {
	domain.VideoRepository
	kinds []domain.EngagementKind
	err   error
}

func (f *fakeEngagement) IncrementEngagement(_ context.Context, _ string, kind domain.EngagementKind) error {
	if f.err != nil {
		return f.err
	}
	f.kinds = append(f.kinds, kind)
	return nil
}

func newTestRouter(svc *fakeService, videos domain.VideoRepository) http.Handler {
	app := NewApp(svc, videos, zerolog.Nop())
	r := chi.NewRouter()
	r.Post("/v1/jobs", app.JobsCreate)
	r.Get("/v1/jobs/{job_id}", app.JobsStatus)
	r.Post("/v1/jobs/{job_id}/cancel", app.JobsCancel)
	r.Post("/v1/webhooks/generation", app.WebhookGeneration)
	r.Post("/v1/videos/{video_id}/engagement", app.VideosEngage)
	r.Get("/v1/healthz", app.Health)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestJobsCreateAccepted(t *testing.T) {
	svc := &fakeService{
		submitJob: &domain.GenerationJob{
			ID:        "7c2f2f9a-64a7-4a58-9876-5f2e8f4f4a01",
			Status:    domain.JobStatusProcessing,
			CreatedAt: time.Now().UTC(),
		},
	}
	router := newTestRouter(svc, nil)

	rec := doJSON(t, router, http.MethodPost, "/v1/jobs", map[string]any{
		"image_url": "https://cdn.example.com/selfie.png",
		"prompt":    "gentle camera pan",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "processing" {
		t.Fatalf("body status = %v", body["status"])
	}
	// Omitted fields get server-side defaults before reaching the service.
	if svc.lastOpts.DurationSeconds != 5 || svc.lastOpts.AspectRatio != "16:9" {
		t.Fatalf("defaults not applied: %+v", svc.lastOpts)
	}
}

func TestJobsCreateValidation(t *testing.T) {
	router := newTestRouter(&fakeService{}, nil)

	cases := []struct {
		name    string
		payload map[string]any
	}{
		{"missing image", map[string]any{"prompt": "p"}},
		{"image not a url", map[string]any{"image_url": "not-a-url", "prompt": "p"}},
		{"missing prompt", map[string]any{"image_url": "https://x.test/a.png"}},
		{"duration too long", map[string]any{"image_url": "https://x.test/a.png", "prompt": "p", "duration_seconds": 600}},
		{"bad aspect ratio", map[string]any{"image_url": "https://x.test/a.png", "prompt": "p", "aspect_ratio": "4:3"}},
		{"bad user id", map[string]any{"image_url": "https://x.test/a.png", "prompt": "p", "user_id": "42"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/v1/jobs", tc.payload)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestJobsCreateProviderFailure(t *testing.T) {
	msg := "upstream 500"
	svc := &fakeService{
		submitJob: &domain.GenerationJob{
			ID:           "7c2f2f9a-64a7-4a58-9876-5f2e8f4f4a01",
			Status:       domain.JobStatusFailed,
			ErrorMessage: &msg,
			CreatedAt:    time.Now().UTC(),
		},
		submitErr: domain.ErrProviderFailure,
	}
	router := newTestRouter(svc, nil)

	rec := doJSON(t, router, http.MethodPost, "/v1/jobs", map[string]any{
		"image_url": "https://cdn.example.com/selfie.png",
		"prompt":    "p",
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "failed" {
		t.Fatalf("body status = %v, want failed with job record", body["status"])
	}
	if body["error_message"] != msg {
		t.Fatalf("error_message = %v", body["error_message"])
	}
}

func TestJobsCreateInactiveVibe(t *testing.T) {
	svc := &fakeService{submitErr: domain.ErrVibeInactive}
	router := newTestRouter(svc, nil)

	rec := doJSON(t, router, http.MethodPost, "/v1/jobs", map[string]any{
		"image_url": "https://cdn.example.com/selfie.png",
		"prompt":    "p",
		"vibe_id":   "7c2f2f9a-64a7-4a58-9876-5f2e8f4f4a01",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestJobsStatusWithVideo(t *testing.T) {
	thumb := "https://cdn.test/thumbnails/j1.jpg"
	svc := &fakeService{
		statusJob: &domain.GenerationJob{ID: "j1", Status: domain.JobStatusCompleted, Progress: 100},
		statusVid: &domain.Video{ID: "v1", JobID: "j1", URL: "https://cdn.test/videos/j1.mp4", ThumbnailURL: &thumb, Quality: "hd"},
	}
	router := newTestRouter(svc, nil)

	rec := doJSON(t, router, http.MethodGet, "/v1/jobs/j1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	video, ok := body["video"].(map[string]any)
	if !ok {
		t.Fatalf("video missing in %v", body)
	}
	if video["url"] != "https://cdn.test/videos/j1.mp4" {
		t.Fatalf("video url = %v", video["url"])
	}
}

func TestJobsStatusNotFound(t *testing.T) {
	svc := &fakeService{statusErr: domain.ErrNotFound}
	router := newTestRouter(svc, nil)

	rec := doJSON(t, router, http.MethodGet, "/v1/jobs/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestJobsCancelConflictWhenTerminal(t *testing.T) {
	svc := &fakeService{cancelErr: domain.ErrJobTerminal}
	router := newTestRouter(svc, nil)

	rec := doJSON(t, router, http.MethodPost, "/v1/jobs/j1/cancel", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestJobsCancelOK(t *testing.T) {
	svc := &fakeService{}
	router := newTestRouter(svc, nil)

	rec := doJSON(t, router, http.MethodPost, "/v1/jobs/j1/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "cancelled" {
		t.Fatalf("body status = %v", body["status"])
	}
}

func TestVideosEngage(t *testing.T) {
	videos := &fakeEngagement{}
	router := newTestRouter(&fakeService{}, videos)

	rec := doJSON(t, router, http.MethodPost, "/v1/videos/v1/engagement", map[string]any{"kind": "like"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(videos.kinds) != 1 || videos.kinds[0] != domain.EngagementLike {
		t.Fatalf("recorded kinds = %v", videos.kinds)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/videos/v1/engagement", map[string]any{"kind": "download"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown kind", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&fakeService{}, nil)

	rec := doJSON(t, router, http.MethodGet, "/v1/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
