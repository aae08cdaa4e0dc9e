package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "aruna"

// Metrics holds all Aruna metric instruments.
type Metrics struct {
	ChatRequests   metric.Int64Counter
	ChatFailures   metric.Int64Counter
	ChatDuration   metric.Float64Histogram
	ModelCalls     metric.Int64Counter
	ModelTokens    metric.Int64Counter
	ToolCalls      metric.Int64Counter
	LoopIterations metric.Int64Histogram
	AuditFailed    metric.Int64Counter
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ChatRequests, err = meter.Int64Counter("aruna.chat.requests",
		metric.WithDescription("Number of agent chat requests"))
	if err != nil {
		return nil, err
	}

	m.ChatFailures, err = meter.Int64Counter("aruna.chat.failures",
		metric.WithDescription("Number of agent chat requests that returned an error"))
	if err != nil {
		return nil, err
	}

	m.ChatDuration, err = meter.Float64Histogram("aruna.chat.duration_seconds",
		metric.WithDescription("Agent chat duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.ModelCalls, err = meter.Int64Counter("aruna.model.calls",
		metric.WithDescription("Number of chat-completion round-trips"))
	if err != nil {
		return nil, err
	}

	m.ModelTokens, err = meter.Int64Counter("aruna.model.tokens",
		metric.WithDescription("Tokens consumed by chat completions"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("aruna.toolcalls",
		metric.WithDescription("Number of tool calls"))
	if err != nil {
		return nil, err
	}

	m.LoopIterations, err = meter.Int64Histogram("aruna.loop.iterations",
		metric.WithDescription("Tool iterations per agent request"))
	if err != nil {
		return nil, err
	}

	m.AuditFailed, err = meter.Int64Counter("aruna.audit.failed",
		metric.WithDescription("Agent log records that could not be persisted"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
