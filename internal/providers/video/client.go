package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vibevideo/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("video: api key is required")

// Options configures the generation API client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the image-to-video generation API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type submitPayload struct {
	Model       string `json:"model"`
	ImageURL    string `json:"image_url"`
	Prompt      string `json:"prompt"`
	Duration    int    `json:"duration,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type taskResponse struct {
	TaskID   string  `json:"task_id"`
	Status   string  `json:"status"`
	Progress int     `json:"progress"`
	VideoURL string  `json:"video_url"`
	Error    *string `json:"error"`
	Code     string  `json:"code"`
	Message  string  `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.vidmotion.ai/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "motion-1.5"
	}
	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     opts.Logger,
	}, nil
}

// Submit starts a generation task and returns the provider's task id.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	payload := submitPayload{
		Model:       c.model,
		ImageURL:    req.ImageURL,
		Prompt:      req.Prompt,
		Duration:    req.DurationSeconds,
		AspectRatio: req.AspectRatio,
		CallbackURL: req.CallbackURL,
	}
	var resp taskResponse
	if err := c.do(ctx, http.MethodPost, "/tasks", payload, &resp); err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("video: submit accepted without task id (code=%s message=%s)", resp.Code, resp.Message)
	}
	return resp.TaskID, nil
}

// Poll fetches the current state of a task.
func (c *Client) Poll(ctx context.Context, taskID string) (*PollResult, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, errors.New("video: task id is required")
	}
	var resp taskResponse
	if err := c.do(ctx, http.MethodGet, "/tasks/"+taskID, nil, &resp); err != nil {
		return nil, err
	}
	result := &PollResult{
		TaskID:    resp.TaskID,
		State:     normalizeState(resp.Status),
		Progress:  resp.Progress,
		ResultURL: resp.VideoURL,
	}
	if resp.Error != nil {
		result.ErrorText = *resp.Error
	}
	return result, nil
}

// Cancel asks the provider to stop a task. The provider treats this as
// advisory and may still deliver a final callback.
func (c *Client) Cancel(ctx context.Context, taskID string) error {
	if strings.TrimSpace(taskID) == "" {
		return errors.New("video: task id is required")
	}
	return c.do(ctx, http.MethodPost, "/tasks/"+taskID+"/cancel", nil, &taskResponse{})
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("video: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("video: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("video: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("video: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr taskResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("video: %s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("video: %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("video: decode response: %w", err)
		}
	}
	if c.logger != nil {
		c.logger.Debug().Str("method", method).Str("path", path).Msg("video: provider call ok")
	}
	return nil
}

func normalizeState(raw string) TaskState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "queued", "waiting", "pending":
		return StateWaiting
	case "processing", "running", "generating":
		return StateProcessing
	case "success", "succeeded", "completed":
		return StateSuccess
	case "fail", "failed", "error":
		return StateFail
	default:
		return StateProcessing
	}
}

var _ Provider = (*Client)(nil)
