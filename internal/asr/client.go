package asr

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

	"github.com/google/uuid"

	"redub/internal/services"
)

const (
	defaultHTTPTimeout   = 30 * time.Second
	defaultPollInterval  = 2 * time.Second
	defaultPollMaxDelay  = 30 * time.Second
	defaultPollDeadline  = time.Hour
	defaultRetryAttempts = 5
)

// Config captures the runtime settings required to talk to the
// recognition service.
type Config struct {
	AppID        string
	Token        string
	BaseURL      string
	Preset       string
	Language     string
	Hotwords     []string
	PollInterval time.Duration
	PollDeadline time.Duration
	Timeout      time.Duration
}

// Client wraps the asynchronous recognition API: submit a job, then poll
// until it completes or the deadline passes.
type Client struct {
	cfg        Config
	httpClient *http.Client
	sleeper    func(context.Context, time.Duration) error
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how poll waits are performed (useful for tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// NewClient constructs a recognition client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollDeadline <= 0 {
		cfg.PollDeadline = defaultPollDeadline
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		sleeper:    sleepCtx,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type submitRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	Audio struct {
		URL      string `json:"url"`
		Format   string `json:"format"`
		Language string `json:"language"`
	} `json:"audio"`
	Request struct {
		Preset   string   `json:"preset"`
		Hotwords []string `json:"hotwords,omitempty"`
	} `json:"request"`
}

// Recognize submits audioURL and polls until the provider returns a
// terminal state. The returned bytes are the provider's response verbatim;
// callers persist them unmodified as the raw recognition artifact.
func (c *Client) Recognize(ctx context.Context, audioURL string) ([]byte, error) {
	if strings.TrimSpace(audioURL) == "" {
		return nil, services.Wrap(services.ErrValidation, "recognize", "submit", "audio url is empty", nil)
	}

	jobID, err := c.submit(ctx, audioURL)
	if err != nil {
		return nil, err
	}
	return c.poll(ctx, jobID)
}

func (c *Client) submit(ctx context.Context, audioURL string) (string, error) {
	var req submitRequest
	req.User.UID = c.cfg.AppID
	req.Audio.URL = audioURL
	req.Audio.Format = guessAudioFormat(audioURL)
	req.Audio.Language = c.cfg.Language
	req.Request.Preset = c.cfg.Preset
	req.Request.Hotwords = c.cfg.Hotwords

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode submit request: %w", err)
	}

	jobID := uuid.NewString()
	var lastErr error
	for attempt := 1; attempt <= defaultRetryAttempts; attempt++ {
		status, _, err := c.post(ctx, c.cfg.BaseURL+"/submit", jobID, body)
		if err == nil && status < http.StatusMultipleChoices {
			return jobID, nil
		}
		lastErr = classifyHTTP("submit job", status, err)
		if !services.IsRetryable(lastErr) {
			return "", lastErr
		}
		if sleepErr := c.sleeper(ctx, backoff(c.cfg.PollInterval, attempt)); sleepErr != nil {
			return "", sleepErr
		}
	}
	return "", services.Wrap(services.ErrTransient, "recognize", "submit job",
		fmt.Sprintf("gave up after %d attempts", defaultRetryAttempts), lastErr)
}

func (c *Client) poll(ctx context.Context, jobID string) ([]byte, error) {
	deadline := time.Now().Add(c.cfg.PollDeadline)
	delay := c.cfg.PollInterval
	for attempt := 1; ; attempt++ {
		if time.Now().After(deadline) {
			return nil, services.Wrap(services.ErrTimeout, "recognize", "poll job",
				fmt.Sprintf("job %s exceeded deadline %s", jobID, c.cfg.PollDeadline), nil)
		}

		status, body, err := c.post(ctx, c.cfg.BaseURL+"/query", jobID, []byte("{}"))
		switch {
		case err != nil:
			// Network errors keep polling until the deadline.
		case status == http.StatusOK:
			done, jobErr := jobState(body)
			if jobErr != nil {
				return nil, jobErr
			}
			if done {
				return body, nil
			}
		case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
			// Transient; keep polling.
		default:
			return nil, classifyHTTP("poll job", status, nil)
		}

		if sleepErr := c.sleeper(ctx, delay); sleepErr != nil {
			return nil, sleepErr
		}
		delay *= 2
		if delay > defaultPollMaxDelay {
			delay = defaultPollMaxDelay
		}
	}
}

// jobState inspects a poll response for terminal status. The provider
// reports code 20000000 on success, 2000000x while in flight, and other
// codes on failure.
func jobState(body []byte) (bool, error) {
	var payload struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false, services.Wrap(services.ErrValidation, "recognize", "poll job", "unparseable poll response", err)
	}
	switch payload.Code {
	case 20000000:
		return true, nil
	case 20000001, 20000002:
		return false, nil
	default:
		return false, services.Wrap(services.ErrPermanent, "recognize", "poll job",
			fmt.Sprintf("provider returned code %d: %s", payload.Code, payload.Message), nil)
	}
}

func (c *Client) post(ctx context.Context, endpoint, jobID string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-App-Key", c.cfg.AppID)
	req.Header.Set("X-Api-Access-Key", c.cfg.Token)
	req.Header.Set("X-Api-Request-Id", jobID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

func classifyHTTP(operation string, status int, err error) error {
	switch {
	case err != nil:
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return services.Wrap(services.ErrTransient, "recognize", operation, "request failed", err)
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, "recognize", operation,
			fmt.Sprintf("http %d", status), nil)
	case status >= http.StatusBadRequest:
		return services.Wrap(services.ErrPermanent, "recognize", operation,
			fmt.Sprintf("http %d", status), nil)
	default:
		return nil
	}
}

func backoff(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > defaultPollMaxDelay {
			return defaultPollMaxDelay
		}
	}
	return delay
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

func guessAudioFormat(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".mp3"):
		return "mp3"
	case strings.HasSuffix(lower, ".ogg"):
		return "ogg"
	default:
		return "wav"
	}
}
