// Package client is the HTTP client for the demostudio daemon API. The CLI
// uses it for every daemon interaction so commands never couple to internal
// stores.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"demostudio/internal/api"
	"demostudio/internal/records"
)

// ErrDaemonUnavailable marks transport-level failures reaching the daemon.
var ErrDaemonUnavailable = errors.New("daemon unavailable")

// Client talks to one daemon instance.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New builds a client for the given bind address ("host:port" or full URL).
func New(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("api bind address is required")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: token,
		// No client timeout; the progress endpoint long-polls and request
		// contexts bound everything else.
		http: &http.Client{},
	}, nil
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var out api.DaemonStatus
	err := c.get(ctx, "/api/status", nil, &out)
	return out, err
}

// Stats fetches per-lane queue counts.
func (c *Client) Stats(ctx context.Context) (api.StatsResponse, error) {
	var out api.StatsResponse
	err := c.get(ctx, "/api/stats", nil, &out)
	return out, err
}

// Jobs lists jobs, optionally filtered to the given lanes.
func (c *Client) Jobs(ctx context.Context, lanes ...string) ([]api.Job, error) {
	values := url.Values{}
	for _, lane := range lanes {
		values.Add("lane", lane)
	}
	var out api.JobListResponse
	if err := c.get(ctx, "/api/jobs", values, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// Job fetches a single job by id, nil when absent.
func (c *Client) Job(ctx context.Context, id string) (*api.Job, error) {
	var out api.JobResponse
	err := c.get(ctx, "/api/jobs/"+url.PathEscape(id), nil, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &out.Job, nil
}

// RetryJobs re-queues failed jobs. No ids means every failed job. Returns the
// number of jobs re-queued.
func (c *Client) RetryJobs(ctx context.Context, ids ...string) (int64, error) {
	var out api.MaintenanceResponse
	err := c.post(ctx, "/api/jobs/retry", api.RetryRequest{IDs: ids}, &out)
	return out.Affected, err
}

// ClearJobs removes terminal jobs in the given state ("completed" or
// "failed"). Returns the number of jobs removed.
func (c *Client) ClearJobs(ctx context.Context, state string) (int64, error) {
	var out api.MaintenanceResponse
	err := c.post(ctx, "/api/jobs/clear", api.ClearRequest{State: state}, &out)
	return out.Affected, err
}

// CreateRecording registers a new recording.
func (c *Client) CreateRecording(ctx context.Context, req api.CreateRecordingRequest) (api.Recording, error) {
	var out api.RecordingResponse
	err := c.post(ctx, "/api/recordings", req, &out)
	return out.Recording, err
}

// Recording fetches a recording by id, nil when absent.
func (c *Client) Recording(ctx context.Context, id string) (*api.Recording, error) {
	var out api.RecordingResponse
	err := c.get(ctx, "/api/recordings/"+url.PathEscape(id), nil, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &out.Recording, nil
}

// Process enqueues post-upload processing for a recording.
func (c *Client) Process(ctx context.Context, recordingID, sourceURL string) (api.EnqueueResponse, error) {
	var out api.EnqueueResponse
	err := c.post(ctx, "/api/recordings/"+url.PathEscape(recordingID)+"/process",
		api.ProcessRequest{SourceURL: sourceURL}, &out)
	return out, err
}

// Voice enqueues narration synthesis. Empty segments means the recording's
// stored script.
func (c *Client) Voice(ctx context.Context, recordingID string, segments []records.ScriptSegment) (api.EnqueueResponse, error) {
	var out api.EnqueueResponse
	err := c.post(ctx, "/api/recordings/"+url.PathEscape(recordingID)+"/voice",
		api.VoiceRequest{Segments: segments}, &out)
	return out, err
}

// Export enqueues an export render.
func (c *Client) Export(ctx context.Context, recordingID, format string, options records.ExportOptions) (api.EnqueueResponse, error) {
	var out api.EnqueueResponse
	err := c.post(ctx, "/api/recordings/"+url.PathEscape(recordingID)+"/export",
		api.ExportRequest{Format: format, Options: options}, &out)
	return out, err
}

// Progress long-polls one progress channel. A nil-length result means the
// wait window elapsed quietly.
func (c *Client) Progress(ctx context.Context, channel string, wait time.Duration) ([]api.ProgressEvent, error) {
	values := url.Values{}
	values.Set("channel", channel)
	if wait > 0 {
		values.Set("wait_ms", strconv.Itoa(int(wait.Milliseconds())))
	}
	var out api.ProgressResponse
	if err := c.get(ctx, "/api/progress", values, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// APIError carries a non-2xx response from the daemon.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("daemon returned %d", e.Status)
}

func (c *Client) get(ctx context.Context, path string, values url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, values, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, values url.Values, body, out any) error {
	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	if len(values) > 0 {
		endpoint.RawQuery = values.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 512))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}
