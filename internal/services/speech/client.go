// Package speech synthesizes narration audio through an HTTP text-to-speech
// provider.
package speech

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

	"demostudio/internal/config"
	"demostudio/internal/services"
)

// Request describes one synthesis call. Stability, Clarity, and
// StyleStrength are provider tuning knobs in the range [0, 1]; zero means
// "provider default".
type Request struct {
	Text          string  `json:"text"`
	VoiceID       string  `json:"voice_id,omitempty"`
	Speed         float64 `json:"speed,omitempty"`
	Emotion       string  `json:"emotion,omitempty"`
	Stability     float64 `json:"stability,omitempty"`
	Clarity       float64 `json:"clarity,omitempty"`
	StyleStrength float64 `json:"style_strength,omitempty"`
}

// Voice describes one synthesis voice offered by the provider.
type Voice struct {
	ID       string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// Result carries the synthesized audio and its media type.
type Result struct {
	Audio       []byte
	ContentType string
}

// Synthesizer defines the synthesis operations used by the voice lane.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (*Result, error)
	ListVoices(ctx context.Context) ([]Voice, error)
}

// Disabled is the Synthesizer installed when no API key is configured. The
// transform and export lanes never synthesize, so the daemon still runs;
// voice jobs fail with a configuration error until a key is set.
type Disabled struct{}

var _ Synthesizer = Disabled{}

// Synthesize always fails with a configuration error.
func (Disabled) Synthesize(context.Context, Request) (*Result, error) {
	return nil, errUnconfigured("synthesize")
}

// ListVoices always fails with a configuration error.
func (Disabled) ListVoices(context.Context) ([]Voice, error) {
	return nil, errUnconfigured("list voices")
}

func errUnconfigured(op string) error {
	return services.Wrap(services.ErrConfiguration, "speech", op, "api key not configured", nil)
}

// Client calls an HTTP speech provider.
type Client struct {
	apiKey       string
	baseURL      string
	defaultVoice string
	httpClient   *http.Client
}

var _ Synthesizer = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a speech client from configuration.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.Speech.APIKey)
	if apiKey == "" {
		return nil, errors.New("speech api key required")
	}
	baseURL := strings.TrimSpace(cfg.Speech.BaseURL)
	if baseURL == "" {
		return nil, errors.New("speech base url required")
	}
	timeout := time.Duration(cfg.Speech.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &Client{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		defaultVoice: strings.TrimSpace(cfg.Speech.DefaultVoice),
		httpClient:   &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Synthesize renders one text segment to audio. Provider 5xx responses and
// transport failures are marked transient so the queue retries them; 4xx
// responses are permanent.
func (c *Client) Synthesize(ctx context.Context, req Request) (*Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, "speech", "synthesize", "text must not be empty", nil)
	}
	if req.VoiceID == "" {
		req.VoiceID = c.defaultVoice
	}
	req.Text = text

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode synthesis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "speech", "synthesize", fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return nil, services.Wrap(services.ErrTransient, "speech", "synthesize", fmt.Sprintf("provider returned %d (latency=%v)", resp.StatusCode, latency), nil)
	default:
		detail := readErrorDetail(resp.Body)
		return nil, services.Wrap(services.ErrExternalTool, "speech", "synthesize", fmt.Sprintf("provider returned %d: %s", resp.StatusCode, detail), nil)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "speech", "synthesize", "read audio body", err)
	}
	if len(audio) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "speech", "synthesize", "provider returned empty audio", nil)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return &Result{Audio: audio, ContentType: contentType}, nil
}

// ListVoices fetches the provider's available voices.
func (c *Client) ListVoices(ctx context.Context) ([]Voice, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "speech", "list voices", "execute request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrExternalTool, "speech", "list voices", fmt.Sprintf("provider returned %d", resp.StatusCode), nil)
	}

	var payload struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode voices response: %w", err)
	}
	return payload.Voices, nil
}

func readErrorDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 512))
	if err != nil || len(raw) == 0 {
		return "no detail"
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(raw))
}
