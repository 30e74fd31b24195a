package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"redub/internal/services"
)

const (
	defaultHTTPTimeout   = 60 * time.Second
	defaultRetryAttempts = 5
	defaultRetryBase     = time.Second
	defaultRetryMax      = 10 * time.Second
)

// Request describes one synthesis call.
type Request struct {
	Text    string
	VoiceID string
	Emotion string
}

// Client issues synthesis requests and returns raw audio bytes in the
// configured format at the configured sample rate.
type Client interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

// ClientConfig captures the runtime settings for the synthesis service.
type ClientConfig struct {
	AppID      string
	Token      string
	BaseURL    string
	ResourceID string
	Format     string
	SampleRate int
	Timeout    time.Duration
}

// HTTPClient is the production synthesis client.
type HTTPClient struct {
	cfg        ClientConfig
	httpClient *http.Client
	sleeper    func(context.Context, time.Duration) error
}

// Option customizes the client.
type Option func(*HTTPClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(c *HTTPClient) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// NewHTTPClient constructs a synthesis client.
func NewHTTPClient(cfg ClientConfig, opts ...Option) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	c := &HTTPClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		sleeper:    sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type synthesisRequest struct {
	ReqParams struct {
		Text        string `json:"text"`
		Speaker     string `json:"speaker"`
		AudioParams struct {
			Format     string `json:"format"`
			SampleRate int    `json:"sample_rate"`
		} `json:"audio_params"`
		Additions map[string]string `json:"additions,omitempty"`
	} `json:"req_params"`
}

// Synthesize implements Client with bounded retry on transient failures.
func (c *HTTPClient) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if req.Text == "" {
		return nil, services.Wrap(services.ErrValidation, "synthesize", "request", "empty text", nil)
	}
	if req.VoiceID == "" {
		return nil, services.Wrap(services.ErrValidation, "synthesize", "request", "no voice id", nil)
	}

	var payload synthesisRequest
	payload.ReqParams.Text = req.Text
	payload.ReqParams.Speaker = req.VoiceID
	payload.ReqParams.AudioParams.Format = c.cfg.Format
	payload.ReqParams.AudioParams.SampleRate = c.cfg.SampleRate
	if req.Emotion != "" {
		payload.ReqParams.Additions = map[string]string{"emotion": req.Emotion}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode synthesis request: %w", err)
	}

	var lastErr error
	delay := defaultRetryBase
	for attempt := 1; attempt <= defaultRetryAttempts; attempt++ {
		audio, err := c.once(ctx, body)
		if err == nil {
			return audio, nil
		}
		lastErr = err
		if !services.IsRetryable(err) {
			return nil, err
		}
		if sleepErr := c.sleeper(ctx, delay); sleepErr != nil {
			return nil, sleepErr
		}
		delay *= 2
		if delay > defaultRetryMax {
			delay = defaultRetryMax
		}
	}
	return nil, services.Wrap(services.ErrTransient, "synthesize", "request",
		fmt.Sprintf("gave up after %d attempts", defaultRetryAttempts), lastErr)
}

func (c *HTTPClient) once(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-App-Key", c.cfg.AppID)
	req.Header.Set("X-Api-Access-Key", c.cfg.Token)
	req.Header.Set("X-Api-Resource-Id", c.cfg.ResourceID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrTransient, "synthesize", "request", "", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "synthesize", "request", "read body", err)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		if len(data) == 0 {
			return nil, services.Wrap(services.ErrTransient, "synthesize", "request", "empty audio payload", nil)
		}
		return data, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, services.Wrap(services.ErrTransient, "synthesize", "request",
			fmt.Sprintf("http %d", resp.StatusCode), nil)
	default:
		return nil, services.Wrap(services.ErrPermanent, "synthesize", "request",
			fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
