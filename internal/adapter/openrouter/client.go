// Package openrouter implements the chat model port against the OpenRouter
// chat-completions API.
package openrouter

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

	"github.com/aruna-bi/aruna/internal/config"
	"github.com/aruna-bi/aruna/internal/domain/chat"
	"github.com/aruna-bi/aruna/internal/port/llm"
	"github.com/aruna-bi/aruna/internal/resilience"
)

// maxErrorBody bounds how much of an error response is kept in the error.
const maxErrorBody = 2048

// KeySource provides the API key at call time.
type KeySource interface {
	Require(key string) (string, error)
}

// Redactor masks secrets in strings that may end up in logs.
type Redactor interface {
	RedactString(s string) string
}

// Client talks to the OpenRouter chat-completions endpoint.
type Client struct {
	cfg        config.OpenRouter
	keys       KeySource
	httpClient *http.Client
	breaker    *resilience.Breaker
	redactor   Redactor
}

var _ llm.ChatModel = (*Client)(nil)

// NewClient creates a new OpenRouter client. The API key is looked up in keys
// under cfg.APIKeyEnv on every call, so a rotated or late-provisioned key is
// picked up without a restart.
func NewClient(cfg config.OpenRouter, keys KeySource) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		keys:       keys,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// SetRedactor masks secrets in upstream error bodies.
func (c *Client) SetRedactor(r Redactor) {
	c.redactor = r
}

type completionRequest struct {
	Model      string                `json:"model"`
	Messages   []chat.Message        `json:"messages"`
	Tools      []chat.ToolDefinition `json:"tools,omitempty"`
	ToolChoice string                `json:"tool_choice,omitempty"`
}

// Complete sends one chat-completion request. Every failure wraps
// llm.ErrModelUnavailable; a response without choices is not a failure.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	key, err := c.keys.Require(c.cfg.APIKeyEnv)
	if err != nil {
		return nil, fmt.Errorf("%w: api key: %w", llm.ErrModelUnavailable, err)
	}

	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	body := completionRequest{Model: model, Messages: req.Messages}
	if len(req.Tools) > 0 {
		body.Tools = req.Tools
		body.ToolChoice = "auto"
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %w", llm.ErrModelUnavailable, err)
	}

	data, err := c.doRequest(ctx, key, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", llm.ErrModelUnavailable, err)
	}

	var resp llm.CompletionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", llm.ErrModelUnavailable, err)
	}
	return &resp, nil
}

// statusError is a non-2xx reply from the API.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("openrouter API error %d: %s", e.Code, e.Body)
}

// countsAgainstBreaker keeps client-side 4xx replies (other than rate limits)
// from opening the circuit.
func countsAgainstBreaker(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled)
}

// BreakerFilter is the failure predicate to build the client's breaker with.
func BreakerFilter() func(error) bool { return countsAgainstBreaker }

func (c *Client) doRequest(ctx context.Context, key string, payload []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+key)
		if c.cfg.Referer != "" {
			req.Header.Set("HTTP-Referer", c.cfg.Referer)
		}
		if c.cfg.Title != "" {
			req.Header.Set("X-Title", c.cfg.Title)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body := string(data)
			if len(body) > maxErrorBody {
				body = body[:maxErrorBody]
			}
			if c.redactor != nil {
				body = c.redactor.RedactString(body)
			}
			return &statusError{Code: resp.StatusCode, Body: body}
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
