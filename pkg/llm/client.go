// Package llm calls the text-generation backend: a single blocking HTTP
// endpoint taking {model, prompt, stream:false} and returning {response}.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultMaxAttempts    = 3
	defaultRetryDelay     = 2 * time.Second
	defaultRequestTimeout = 60 * time.Second
)

// Client is a backend client with a bounded fixed-delay retry policy.
type Client struct {
	url        string
	model      string
	httpClient *http.Client

	maxAttempts int
	retryDelay  time.Duration
}

// Options configures a Client.
type Options struct {
	URL         string
	Model       string
	MaxAttempts int           // attempts including the first (default 3)
	RetryDelay  time.Duration // fixed delay between attempts (default 2s)
	Timeout     time.Duration // per-request timeout (default 60s)
}

// NewClient creates a backend client.
func NewClient(opts Options) *Client {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRequestTimeout
	}
	return &Client{
		url:         opts.URL,
		model:       opts.Model,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response *string `json:"response"`
}

// Generate asks the backend for a completion of prompt. Backend
// unavailability is non-fatal: after the retry budget is exhausted it
// returns an empty string so the caller can record a reasoning error and
// keep going.
func (c *Client) Generate(ctx context.Context, prompt string) string {
	slog.Info("[LLM] asking backend for next action", "model", c.model)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			slog.Warn("[LLM] backend call failed, retrying",
				"attempt", attempt, "maxAttempts", c.maxAttempts,
				"delay", c.retryDelay, "error", lastErr)
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return ""
			}
		}

		text, err := c.generateOnce(ctx, prompt)
		if err == nil {
			return text
		}
		lastErr = err
		if ctx.Err() != nil {
			return ""
		}
	}

	slog.Error("[LLM] backend call failed after all retries",
		"attempts", c.maxAttempts, "error", lastErr)
	return ""
}

func (c *Client) generateOnce(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("llm: backend returned %d: %s", resp.StatusCode, data)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if parsed.Response == nil {
		return "", fmt.Errorf("llm: unexpected response shape, missing response field")
	}

	slog.Debug("[LLM] backend responded", "bytes", len(*parsed.Response))
	return *parsed.Response, nil
}
