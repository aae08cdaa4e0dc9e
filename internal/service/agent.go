package service

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/aruna-bi/aruna/internal/adapter/otel"
	"github.com/aruna-bi/aruna/internal/config"
	"github.com/aruna-bi/aruna/internal/domain"
	"github.com/aruna-bi/aruna/internal/domain/business"
	"github.com/aruna-bi/aruna/internal/domain/chat"
	"github.com/aruna-bi/aruna/internal/domain/industry"
	"github.com/aruna-bi/aruna/internal/domain/tool"
	"github.com/aruna-bi/aruna/internal/logger"
	"github.com/aruna-bi/aruna/internal/port/llm"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var systemPromptTmpl = template.Must(template.ParseFS(templateFS, "templates/system_prompt.tmpl"))

// FallbackReply is returned when the model produced no text.
const FallbackReply = "Sorry, I could not generate a response. Please try again."

// Error codes returned to API callers.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeBusinessNotFound = "BUSINESS_NOT_FOUND"
	CodeLLMCallFailed    = "LLM_CALL_FAILED"
	CodeDataAccess       = "DATA_ACCESS_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
)

// ChatError is a request-fatal agent failure with a user-facing code.
// Err carries the domain sentinel used to pick the HTTP status.
type ChatError struct {
	Code    string
	Message string
	Err     error
}

func (e *ChatError) Error() string { return e.Code + ": " + e.Message }

func (e *ChatError) Unwrap() error { return e.Err }

// ChatRequest is one user turn addressed to the agent.
type ChatRequest struct {
	BusinessID string              `json:"businessId"`
	Message    string              `json:"message"`
	Business   *BusinessSnapshot   `json:"business,omitempty"`
	History    []chat.HistoryEntry `json:"history,omitempty"`
	UserID     string              `json:"userId,omitempty"`
}

// BusinessSnapshot is the client-held copy of a business sent along with a
// chat request. Fields other than these are ignored.
type BusinessSnapshot struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Currency string `json:"currency"`
	OwnerUID string `json:"ownerUid"`
}

// ChatResponse is the agent's answer.
type ChatResponse struct {
	Message         string                `json:"message"`
	DashboardUpdate *tool.DashboardUpdate `json:"dashboardUpdate,omitempty"`
}

// AuditSink receives agent logs. Record must not block the caller.
type AuditSink interface {
	Record(ctx context.Context, log *business.AgentLog)
}

// AgentService answers business questions with the tool-calling loop.
type AgentService struct {
	model      llm.ChatModel
	tools      DataTools
	businesses BusinessLookup
	modules    *industry.Registry
	cfg        config.Agent
	modelName  string
	policy     tool.ArgParsePolicy
	audit      AuditSink
	metrics    *cfotel.Metrics
	now        func() time.Time
}

// NewAgentService creates the agent service. modelName may be empty to let
// the model client pick its default.
func NewAgentService(
	model llm.ChatModel,
	tools DataTools,
	businesses BusinessLookup,
	modules *industry.Registry,
	cfg config.Agent,
	modelName string,
) (*AgentService, error) {
	policy, err := tool.ParseArgParsePolicy(cfg.ArgParsePolicy)
	if err != nil {
		return nil, err
	}
	return &AgentService{
		model:      model,
		tools:      tools,
		businesses: businesses,
		modules:    modules,
		cfg:        cfg,
		modelName:  modelName,
		policy:     policy,
		now:        time.Now,
	}, nil
}

// SetAudit enables agent logging.
func (s *AgentService) SetAudit(a AuditSink) { s.audit = a }

// SetMetrics enables chat metrics.
func (s *AgentService) SetMetrics(m *cfotel.Metrics) { s.metrics = m }

// Chat runs one agent turn. Failures are returned as *ChatError.
func (s *AgentService) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if strings.TrimSpace(req.BusinessID) == "" || strings.TrimSpace(req.Message) == "" {
		return nil, &ChatError{
			Code:    CodeInvalidRequest,
			Message: "businessId and message are required",
			Err:     domain.ErrValidation,
		}
	}

	start := s.now()
	runID := uuid.NewString()
	ctx = logger.WithBusinessID(ctx, req.BusinessID)
	ctx, span := cfotel.StartChatSpan(ctx, runID, req.BusinessID)

	var result *LoopResult
	resp, err := s.chat(ctx, req, &result)
	cfotel.EndSpan(span, err)

	elapsed := s.now().Sub(start)
	s.recordChat(ctx, elapsed, err)
	s.recordAudit(ctx, req, resp, result, elapsed, err)

	if err != nil {
		slog.ErrorContext(ctx, "agent chat failed", "run_id", runID, "error", err)
		return nil, err
	}
	slog.InfoContext(ctx, "agent chat completed",
		"run_id", runID,
		"iterations", result.Iterations,
		"model_calls", result.ModelCalls,
		"tools_used", result.ToolsUsed,
		"stop", string(result.Stop),
		"duration_ms", elapsed.Milliseconds(),
	)
	return resp, nil
}

func (s *AgentService) chat(ctx context.Context, req ChatRequest, result **LoopResult) (*ChatResponse, error) {
	b, err := s.resolveBusiness(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.UserID != "" && b.OwnerUID != req.UserID {
		return nil, &ChatError{
			Code:    CodeUnauthorized,
			Message: "Unauthorized: You don't own this business",
			Err:     domain.ErrUnauthorized,
		}
	}

	mod, ok := s.modules.Get(b.Type)
	if !ok {
		msg := fmt.Sprintf("No module found for business type: %s", b.Type)
		return nil, &ChatError{Code: msg, Message: msg, Err: domain.ErrModuleNotFound}
	}

	system, err := BuildSystemPrompt(b, mod)
	if err != nil {
		return nil, &ChatError{Code: CodeInternal, Message: "failed to build system prompt", Err: err}
	}

	transcript := chat.NewTranscript(chat.Message{Role: chat.RoleSystem, Content: system})
	history := sanitizeHistory(req.History, s.cfg.HistoryLimit)
	for _, m := range append(history, chat.Message{Role: chat.RoleUser, Content: req.Message}) {
		if err := transcript.Append(m); err != nil {
			return nil, &ChatError{Code: CodeInternal, Message: "failed to build transcript", Err: err}
		}
	}

	dispatcher := NewToolDispatcher(s.tools, req.BusinessID, s.policy)
	dispatcher.SetMetrics(s.metrics)
	loop := NewAgentLoop(s.model, s.modelName, ToolRegistry(), s.cfg.MaxIterations)
	loop.SetMetrics(s.metrics)

	res, err := loop.Run(ctx, transcript, dispatcher)
	if err != nil {
		return nil, classifyError(err)
	}
	*result = res

	reply := res.Reply
	if strings.TrimSpace(reply) == "" {
		reply = FallbackReply
	}
	return &ChatResponse{Message: reply, DashboardUpdate: res.Dashboard}, nil
}

// resolveBusiness prefers the client snapshot and falls back to a lookup.
func (s *AgentService) resolveBusiness(ctx context.Context, req ChatRequest) (*business.Business, error) {
	if req.Business != nil {
		snap := req.Business
		if snap.ID != "" && snap.ID != req.BusinessID {
			return nil, &ChatError{
				Code:    CodeInvalidRequest,
				Message: "business snapshot does not match businessId",
				Err:     domain.ErrValidation,
			}
		}
		return &business.Business{
			ID:       req.BusinessID,
			Name:     snap.Name,
			Type:     snap.Type,
			Currency: snap.Currency,
			OwnerUID: snap.OwnerUID,
		}, nil
	}

	b, err := s.businesses.Resolve(ctx, req.BusinessID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, &ChatError{
			Code:    CodeBusinessNotFound,
			Message: "Business not found. Please refresh and try again.",
			Err:     err,
		}
	case err != nil:
		return nil, classifyError(err)
	}
	return b, nil
}

type systemPromptData struct {
	BusinessName  string
	IndustryLabel string
	AgentContext  string
}

// BuildSystemPrompt renders the system message for a business.
func BuildSystemPrompt(b *business.Business, mod *industry.Module) (string, error) {
	var buf bytes.Buffer
	err := systemPromptTmpl.Execute(&buf, systemPromptData{
		BusinessName:  b.Name,
		IndustryLabel: mod.Label,
		AgentContext:  mod.AgentContext,
	})
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// sanitizeHistory keeps the last limit user/assistant entries with content.
// System and tool entries from clients are dropped.
func sanitizeHistory(history []chat.HistoryEntry, limit int) []chat.Message {
	out := make([]chat.Message, 0, len(history))
	for _, h := range history {
		if h.Role != chat.RoleUser && h.Role != chat.RoleAssistant {
			continue
		}
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		out = append(out, chat.Message{Role: h.Role, Content: h.Content})
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// classifyError maps an unexpected failure onto a ChatError.
func classifyError(err error) *ChatError {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce
	}
	switch {
	case errors.Is(err, llm.ErrModelUnavailable):
		return &ChatError{Code: CodeLLMCallFailed, Message: err.Error(), Err: err}
	case errors.Is(err, domain.ErrDataAccess):
		return &ChatError{Code: CodeDataAccess, Message: err.Error(), Err: err}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "openrouter"), strings.Contains(msg, "llm"):
		return &ChatError{Code: CodeLLMCallFailed, Message: err.Error(), Err: err}
	case strings.Contains(msg, "database"), strings.Contains(msg, "postgres"), strings.Contains(msg, "sql"):
		return &ChatError{Code: CodeDataAccess, Message: err.Error(), Err: err}
	}
	return &ChatError{Code: CodeInternal, Message: err.Error(), Err: err}
}

func (s *AgentService) recordChat(ctx context.Context, elapsed time.Duration, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ChatRequests.Add(ctx, 1)
	s.metrics.ChatDuration.Record(ctx, elapsed.Seconds())
	if err != nil {
		code := CodeInternal
		var ce *ChatError
		if errors.As(err, &ce) {
			code = ce.Code
		}
		s.metrics.ChatFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
	}
}

func (s *AgentService) recordAudit(ctx context.Context, req ChatRequest, resp *ChatResponse, res *LoopResult, elapsed time.Duration, err error) {
	if s.audit == nil {
		return
	}
	entry := &business.AgentLog{
		ID:          uuid.NewString(),
		BusinessID:  req.BusinessID,
		UserMessage: req.Message,
		ToolsUsed:   []string{},
		Success:     err == nil,
		DurationMS:  elapsed.Milliseconds(),
		Timestamp:   s.now().UTC(),
	}
	if res != nil && len(res.ToolsUsed) > 0 {
		entry.ToolsUsed = append(entry.ToolsUsed, res.ToolsUsed...)
	}
	if resp != nil {
		entry.AgentReplySummary = truncateRunes(resp.Message, s.cfg.ReplySummaryLen)
	}
	if err != nil {
		var ce *ChatError
		if errors.As(err, &ce) {
			entry.ErrorCode = ce.Code
		}
		entry.ErrorMessage = err.Error()
	}
	s.audit.Record(ctx, entry)
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
