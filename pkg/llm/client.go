// Package llm issues chat-completion requests to an OpenAI-compatible
// endpoint and classifies what came back.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/xaenou/origami-chat/pkg/config"
)

const defaultTimeout = 2 * time.Minute

// maxErrorBody bounds how much of an upstream error body is kept for logs.
const maxErrorBody = 8 << 10

// Client talks to one configured provider. One request per Complete
// call, no automatic retries; a circuit breaker trips after repeated
// upstream failures so a dead backend fails fast.
type Client struct {
	name    string
	cfg     config.ProviderConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(name string, cfg config.ProviderConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    fmt.Sprintf("provider-%s", name),
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		name:    name,
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		breaker: cb,
	}
}

// Name returns the provider name this client was built for.
func (c *Client) Name() string {
	return c.name
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one system+user message pair upstream and extracts the
// generated text. The configured request timeout applies on top of ctx.
func (c *Client) Complete(ctx context.Context, userPrompt string) Result {
	start := time.Now()
	res, err := c.breaker.Execute(func() (interface{}, error) {
		r := c.complete(ctx, userPrompt)
		switch r.(type) {
		case UpstreamError, TransportFailure:
			return r, fmt.Errorf("completion failed")
		}
		return r, nil
	})
	upstreamLatency.WithLabelValues(c.name).Observe(time.Since(start).Seconds())

	if res == nil {
		// Breaker refused the call before it started.
		return TransportFailure{Err: err}
	}
	return res.(Result)
}

func (c *Client) complete(ctx context.Context, userPrompt string) Result {
	body := map[string]interface{}{
		"model": c.cfg.Model,
		"messages": []chatMessage{
			{Role: "system", Content: c.cfg.SystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		"temperature": c.cfg.Temperature,
	}
	if c.cfg.TokenLimit > 0 {
		param := c.cfg.TokenLimitParam
		if param == "" {
			param = "max_tokens"
		}
		body[param] = c.cfg.TokenLimit
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return TransportFailure{Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return TransportFailure{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return TransportFailure{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return UpstreamError{
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(raw)),
		}
	}

	var envelope chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return TransportFailure{Err: fmt.Errorf("decode response: %w", err)}
	}

	if len(envelope.Choices) == 0 {
		return Empty{}
	}
	text := strings.TrimSpace(envelope.Choices[0].Message.Content)
	if text == "" {
		return Empty{}
	}
	return Success{Text: text}
}
