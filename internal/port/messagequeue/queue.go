// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Close shuts down the queue connection.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subject constants for NATS subjects used by Aruna.
const (
	SubjectAgentLog = "agent.logs" // audit records of agent interactions
)

// AgentLogPayload is the schema for agent.logs messages.
type AgentLogPayload struct {
	ID                string   `json:"id"`
	BusinessID        string   `json:"business_id"`
	UserMessage       string   `json:"user_message"`
	AgentReplySummary string   `json:"agent_reply_summary"`
	ToolsUsed         []string `json:"tools_used"`
	Success           bool     `json:"success"`
	DurationMS        int64    `json:"duration_ms"`
	ErrorCode         string   `json:"error_code,omitempty"`
	ErrorMessage      string   `json:"error_message,omitempty"`
	Timestamp         string   `json:"timestamp"`
}
