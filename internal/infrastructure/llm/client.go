package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"IntelDigest/internal/config"
	"IntelDigest/internal/domain"
	"IntelDigest/internal/ports"
)

const (
	defaultTimeout        = 120 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 2 * time.Second
	defaultRetryMaxDelay  = 30 * time.Second
	defaultTemperature    = 0.1
)

// Client implements ports.TextGenerator against OpenAI-compatible chat APIs (Ollama by default).
type Client struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	temperature  float64
	httpClient   *http.Client
	logger       *slog.Logger

	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	sleeper   func(time.Duration)
}

var _ ports.TextGenerator = (*Client)(nil)

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

// WithRetry overrides attempt count and backoff bounds.
func WithRetry(attempts int, baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.baseDelay = baseDelay
		c.maxDelay = maxDelay
	}
}

// WithSleeper replaces the backoff sleep; tests use it to avoid waiting.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient builds a client from configuration.
func NewClient(cfg config.LLMConfig, logger *slog.Logger, opts ...Option) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	temperature := defaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		endpoint:     strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
		model:        strings.TrimSpace(cfg.Model),
		apiKey:       strings.TrimSpace(cfg.APIKey),
		systemPrompt: cfg.SystemPrompt,
		temperature:  temperature,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
		attempts:     defaultRetryAttempts,
		baseDelay:    defaultRetryBaseDelay,
		maxDelay:     defaultRetryMaxDelay,
	}
	if cfg.MaxAttempts > 0 {
		c.attempts = cfg.MaxAttempts
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.attempts <= 0 {
		c.attempts = 1
	}
	return c
}

// Generate sends prompt as a single user message. Connection-class failures are
// retried with exponential backoff; HTTP status and decode errors are not.
func (c *Client) Generate(ctx context.Context, prompt string) (ports.Generation, error) {
	if c == nil {
		return ports.Generation{}, fmt.Errorf("%w: llm client is nil", domain.ErrGeneration)
	}
	if c.endpoint == "" || c.model == "" {
		return ports.Generation{}, fmt.Errorf("%w: llm client misconfigured", domain.ErrGeneration)
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		start := time.Now()
		content, err := c.complete(ctx, prompt)
		if err == nil {
			latency := time.Since(start)
			c.logger.Debug("generation complete",
				"model", c.model,
				"attempt", attempt,
				"latency_ms", latency.Milliseconds(),
			)
			return ports.Generation{Content: content, Latency: latency}, nil
		}
		lastErr = err

		if attempt == c.attempts || !retryable(ctx, err) {
			break
		}

		delay := c.backoffDelay(attempt)
		c.logger.Warn("generation failed, retrying",
			"attempt", attempt,
			"max_attempts", c.attempts,
			"backoff", delay,
			"error", err,
		)
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	return ports.Generation{}, fmt.Errorf("%w: %w", domain.ErrGeneration, lastErr)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// statusError is an HTTP-level rejection; never retried.
type statusError struct {
	Status string
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("llm error %s: %s", e.Status, e.Body)
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if sp := strings.TrimSpace(c.systemPrompt); sp != "" {
		messages = append(messages, chatMessage{Role: "system", Content: sp})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &statusError{Status: resp.Status, Body: strings.TrimSpace(string(payload))}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("llm api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("llm response has no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

func retryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var status *statusError
	if errors.As(err, &status) {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	if c.baseDelay <= 0 {
		return 0
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		if c.maxDelay > 0 && delay > c.maxDelay/2 {
			return c.maxDelay
		}
		delay *= 2
	}
	if c.maxDelay > 0 && delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if c.sleeper != nil {
		c.sleeper(d)
		return ctx.Err()
	}
	if d <= 0 {
		return ctx.Err()
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
