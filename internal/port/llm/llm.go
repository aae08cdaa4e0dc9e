// Package llm defines the chat-completion model port.
package llm

import (
	"context"
	"errors"

	"github.com/aruna-bi/aruna/internal/domain/chat"
)

// ErrModelUnavailable wraps every failure to obtain a completion: missing
// credentials, transport errors, non-2xx statuses, undecodable bodies and an
// open circuit breaker.
var ErrModelUnavailable = errors.New("model unavailable")

// Finish reasons that signal the model wants tools executed.
const (
	FinishToolCalls    = "tool_calls"
	FinishFunctionCall = "function_call"
	FinishStop         = "stop"
)

// CompletionRequest is one round-trip to the model.
type CompletionRequest struct {
	Model    string
	Messages []chat.Message
	Tools    []chat.ToolDefinition
}

// Choice is one candidate completion.
type Choice struct {
	Index        int          `json:"index"`
	Message      chat.Message `json:"message"`
	FinishReason string       `json:"finish_reason"`
}

// WantsTools reports whether the choice requests tool execution. Either
// signal is sufficient: the finish reason or non-empty tool calls.
func (c *Choice) WantsTools() bool {
	if c.FinishReason == FinishToolCalls || c.FinishReason == FinishFunctionCall {
		return true
	}
	return len(c.Message.ToolCalls) > 0
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the decoded model reply. Choices may be empty.
type CompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// First returns the first choice, if any.
func (r *CompletionResponse) First() (*Choice, bool) {
	if r == nil || len(r.Choices) == 0 {
		return nil, false
	}
	return &r.Choices[0], true
}

// ChatModel is a tool-capable chat-completion model.
type ChatModel interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
