package translate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"redub/internal/services"
)

// Completer issues one chat completion and returns the text content.
// The production implementation talks to the translation service; tests
// substitute a fake.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ClientConfig captures the runtime settings for the translation service.
type ClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client wraps the chat-completion API used for translation.
type Client struct {
	api   openai.Client
	model string
	temp  float64
}

// NewClient constructs a translation client.
func NewClient(cfg ClientConfig) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &Client{
		api:   openai.NewClient(opts...),
		model: cfg.Model,
		temp:  cfg.Temperature,
	}
}

// Complete implements Completer.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Model:       c.model,
		Temperature: openai.Float(c.temp),
	})
	if err != nil {
		return "", classifyCompletionError(err)
	}
	if len(resp.Choices) == 0 {
		return "", services.Wrap(services.ErrTransient, "translate", "request", "empty choices", nil)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", services.Wrap(services.ErrTransient, "translate", "request", "empty content", nil)
	}
	return stripQuotes(content), nil
}

func classifyCompletionError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429 || apiErr.StatusCode >= 500:
			return services.Wrap(services.ErrTransient, "translate", "request", apiErr.Error(), nil)
		default:
			return services.Wrap(services.ErrPermanent, "translate", "request", apiErr.Error(), nil)
		}
	}
	return services.Wrap(services.ErrTransient, "translate", "request", "", err)
}

// stripQuotes removes a single layer of wrapping quotes some models add.
func stripQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
