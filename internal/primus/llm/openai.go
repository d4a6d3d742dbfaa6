package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bdobrica/Primus/common/redact"
	"github.com/bdobrica/Primus/common/retry"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 30 * time.Second

	// maxBodyBytes bounds how much of a response is read.
	maxBodyBytes = 1 << 20
)

// Config configures the OpenAI-compatible client.
type Config struct {
	// APIKey is the bearer token. It is redacted from every error.
	APIKey string

	// BaseURL overrides the endpoint, e.g. a local Ollama or LM Studio
	// server. Defaults to https://api.openai.com/v1.
	BaseURL string

	// Model defaults to gpt-4o-mini.
	Model string

	// Timeout bounds each HTTP attempt. Defaults to 30s.
	Timeout time.Duration

	// Retry controls retries of transient failures. Zero value means
	// retry.DefaultConfig.
	Retry retry.Config

	// RequestsPerMinute throttles calls client-side; 0 disables it.
	RequestsPerMinute int

	Breaker BreakerConfig

	Logger *slog.Logger
}

// StatusError is a non-2xx answer from the endpoint.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("llm: HTTP %d", e.Code)
	}
	return fmt.Sprintf("llm: HTTP %d: %s", e.Code, e.Message)
}

// Client is a Chatter over the chat completions API. It is safe for
// concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *breaker
	logger  *slog.Logger
}

// New returns a Client for cfg.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig
	}
	cfg.Retry.ShouldRetry = retryable
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: newBreaker(cfg.Breaker, cfg.Logger),
		logger:  cfg.Logger,
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// BreakerState returns "closed", "half-open", or "open".
func (c *Client) BreakerState() string { return c.breaker.state() }

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiRequest struct {
	Model     string       `json:"model"`
	Messages  []oaiMessage `json:"messages"`
	MaxTokens int          `json:"max_tokens,omitempty"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

// ChatOnce implements Chatter. The prompt is sent as a single user message.
func (c *Client) ChatOnce(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("llm: throttle: %w", err)
		}
	}

	body, err := json.Marshal(oaiRequest{
		Model:     c.cfg.Model,
		Messages:  []oaiMessage{{Role: "user", Content: prompt}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	attempt := 0
	reply, err := retry.Value(ctx, c.cfg.Retry, func() (string, error) {
		attempt++
		return c.breaker.execute(func() (string, error) {
			return c.post(ctx, body)
		})
	})
	if err != nil {
		c.logger.Debug("llm: chat failed", "attempts", attempt, "err", err)
		return "", err
	}
	return reply, nil
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: http request: %s: %w", c.redact(err.Error()), unwrapTransport(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("llm: read response: %w", err)
	}

	var parsed oaiResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimit
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := ""
		if decodeErr == nil && parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", &StatusError{Code: resp.StatusCode, Message: c.redact(msg)}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("llm: decode response: %w", decodeErr)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("llm: API error (%s): %s", parsed.Error.Type, c.redact(parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", ErrNoReply
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", ErrNoReply
	}
	return text, nil
}

func (c *Client) redact(s string) string {
	return redact.String(s, c.cfg.APIKey)
}

// unwrapTransport keeps context errors matchable after the message has been
// redacted.
func unwrapTransport(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return context.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded
	default:
		return errTransport
	}
}

var errTransport = errors.New("transport failure")

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrNoReply) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return true
}
