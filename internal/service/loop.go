package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/aruna-bi/aruna/internal/adapter/otel"
	"github.com/aruna-bi/aruna/internal/domain/chat"
	"github.com/aruna-bi/aruna/internal/domain/tool"
	"github.com/aruna-bi/aruna/internal/port/llm"
)

// DefaultMaxIterations caps model/tool round-trips per request.
const DefaultMaxIterations = 5

// loopPhase is the state of the orchestration state machine.
type loopPhase int

const (
	phaseAwaitingModel loopPhase = iota
	phaseDispatchingTools
	phaseDone
)

func (p loopPhase) String() string {
	switch p {
	case phaseAwaitingModel:
		return "awaiting_model"
	case phaseDispatchingTools:
		return "dispatching_tools"
	default:
		return "done"
	}
}

// StopReason records why a loop run ended.
type StopReason string

const (
	StopFinalAnswer  StopReason = "final_answer"
	StopNoChoices    StopReason = "no_choices"
	StopMaxIteration StopReason = "max_iterations"
	StopModelFailed  StopReason = "model_failed" // degraded to the last assistant answer
)

// loopState is the complete state of one loop run. step consumes a state
// and returns the next one; nothing else is mutated.
type loopState struct {
	phase      loopPhase
	transcript *chat.Transcript
	iteration  int
	modelCalls int

	// Assistant output of this run only; client-supplied history does not count.
	hasAssistant bool
	lastContent  string
	calls        []chat.ToolCall

	dashboard *tool.DashboardUpdate
	toolsUsed []string

	stop StopReason
	err  error
}

// LoopResult is the outcome of a completed loop run.
type LoopResult struct {
	Transcript *chat.Transcript
	Reply      string
	Dashboard  *tool.DashboardUpdate
	ToolsUsed  []string
	Iterations int
	ModelCalls int
	Stop       StopReason
}

// AgentLoop drives the bounded model/tool conversation.
type AgentLoop struct {
	model         llm.ChatModel
	modelName     string
	tools         []chat.ToolDefinition
	maxIterations int
	metrics       *cfotel.Metrics
}

// NewAgentLoop creates a loop. maxIterations <= 0 uses DefaultMaxIterations.
func NewAgentLoop(model llm.ChatModel, modelName string, tools []chat.ToolDefinition, maxIterations int) *AgentLoop {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &AgentLoop{model: model, modelName: modelName, tools: tools, maxIterations: maxIterations}
}

// SetMetrics enables model and loop metrics.
func (l *AgentLoop) SetMetrics(m *cfotel.Metrics) { l.metrics = m }

// Run executes the loop over transcript, dispatching tool calls through d
// one at a time in emitted order. It fails only when the very first usable
// model call fails; the error then wraps llm.ErrModelUnavailable.
func (l *AgentLoop) Run(ctx context.Context, transcript *chat.Transcript, d Dispatcher) (*LoopResult, error) {
	st := loopState{phase: phaseAwaitingModel, transcript: transcript}
	for st.phase != phaseDone {
		st = l.step(ctx, st, d)
	}
	if l.metrics != nil {
		l.metrics.LoopIterations.Record(ctx, int64(st.iteration),
			metric.WithAttributes(attribute.String("stop", string(st.stop))))
	}
	if st.err != nil {
		return nil, st.err
	}
	return &LoopResult{
		Transcript: st.transcript,
		Reply:      st.reply(),
		Dashboard:  st.dashboard,
		ToolsUsed:  st.toolsUsed,
		Iterations: st.iteration,
		ModelCalls: st.modelCalls,
		Stop:       st.stop,
	}, nil
}

func (l *AgentLoop) step(ctx context.Context, st loopState, d Dispatcher) loopState {
	switch st.phase {
	case phaseAwaitingModel:
		return l.awaitModel(ctx, st)
	case phaseDispatchingTools:
		return l.dispatchTools(ctx, st, d)
	}
	return st
}

func (l *AgentLoop) awaitModel(ctx context.Context, st loopState) loopState {
	st.modelCalls++
	ctx, span := cfotel.StartModelSpan(ctx, l.modelName, st.iteration)
	resp, err := l.model.Complete(ctx, llm.CompletionRequest{
		Model:    l.modelName,
		Messages: st.transcript.Messages(),
		Tools:    l.tools,
	})
	cfotel.EndSpan(span, err)
	l.recordModelCall(ctx, resp, err)

	if err != nil {
		if !errors.Is(err, llm.ErrModelUnavailable) {
			err = fmt.Errorf("%w: %w", llm.ErrModelUnavailable, err)
		}
		if st.hasAssistant {
			slog.Warn("model call failed, using previous answer",
				"iteration", st.iteration, "error", err)
			st.phase, st.stop = phaseDone, StopModelFailed
			return st
		}
		st.phase, st.err = phaseDone, err
		return st
	}

	choice, ok := resp.First()
	if !ok {
		slog.Warn("model returned no choices", "iteration", st.iteration)
		st.phase, st.stop = phaseDone, StopNoChoices
		return st
	}

	msg := choice.Message
	msg.Role = chat.RoleAssistant
	if err := st.transcript.Append(msg); err != nil {
		st.phase, st.err = phaseDone, err
		return st
	}
	st.hasAssistant = true
	if msg.Content != "" {
		st.lastContent = msg.Content
	}

	// A tool_calls finish reason with an empty call list still counts as a
	// tool round: nothing is dispatched and the model is asked again.
	if choice.WantsTools() {
		st.calls = msg.ToolCalls
		st.phase = phaseDispatchingTools
		return st
	}
	st.phase, st.stop = phaseDone, StopFinalAnswer
	return st
}

func (l *AgentLoop) dispatchTools(ctx context.Context, st loopState, d Dispatcher) loopState {
	for _, call := range st.calls {
		out := d.Dispatch(ctx, call)
		if err := st.transcript.Append(out.Message(call)); err != nil {
			// Repeated call IDs in one assistant turn are answered once.
			slog.Error("tool result not recorded", "tool", call.Function.Name, "tool_call_id", call.ID, "error", err)
		}
		st.toolsUsed = appendUnique(st.toolsUsed, out.Name)
		if out.Dashboard != nil {
			st.dashboard = out.Dashboard
		}
	}
	st.calls = nil
	if n := st.transcript.PendingCount(); n > 0 {
		slog.Error("tool calls left unanswered", "pending", n, "iteration", st.iteration)
	}
	st.iteration++
	if st.iteration >= l.maxIterations {
		slog.Warn("agent loop hit iteration ceiling", "iterations", st.iteration)
		st.phase, st.stop = phaseDone, StopMaxIteration
		return st
	}
	st.phase = phaseAwaitingModel
	return st
}

func (l *AgentLoop) recordModelCall(ctx context.Context, resp *llm.CompletionResponse, err error) {
	if l.metrics == nil {
		return
	}
	l.metrics.ModelCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model", l.modelName),
		attribute.Bool("success", err == nil),
	))
	if resp != nil && resp.Usage.TotalTokens > 0 {
		l.metrics.ModelTokens.Add(ctx, int64(resp.Usage.TotalTokens),
			metric.WithAttributes(attribute.String("model", l.modelName)))
	}
}

// reply is the most recent non-empty assistant content of this run. It is
// empty when the run stopped before the model produced any text.
func (st *loopState) reply() string { return st.lastContent }

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
