package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	cfhttp "github.com/aruna-bi/aruna/internal/adapter/http"
	"github.com/aruna-bi/aruna/internal/config"
	"github.com/aruna-bi/aruna/internal/domain"
	"github.com/aruna-bi/aruna/internal/domain/business"
	"github.com/aruna-bi/aruna/internal/domain/chat"
	"github.com/aruna-bi/aruna/internal/domain/industry"
	"github.com/aruna-bi/aruna/internal/middleware"
	"github.com/aruna-bi/aruna/internal/port/llm"
	"github.com/aruna-bi/aruna/internal/service"
)

// mockStore implements the store capabilities used by the services.
type mockStore struct {
	mu         sync.Mutex
	businesses map[string]business.Business
	txs        []business.Transaction
	logs       []business.AgentLog
}

func (m *mockStore) GetBusiness(_ context.Context, id string) (*business.Business, error) {
	b, ok := m.businesses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &b, nil
}

func (m *mockStore) ListEntities(_ context.Context, _ string) ([]business.Entity, error) {
	return []business.Entity{{ID: "c1", Name: "Court 1", Type: business.EntityCourt}}, nil
}

func (m *mockStore) ListTransactions(_ context.Context, _ string, f business.TransactionFilter) ([]business.Transaction, error) {
	var out []business.Transaction
	for _, t := range m.txs {
		if (f.Kind == "" || t.Kind == f.Kind) && (f.From.IsZero() || !t.Date.Before(f.From)) && (f.To.IsZero() || !t.Date.After(f.To)) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockStore) GetFinancialConfig(_ context.Context, _ string) (*business.FinancialConfig, error) {
	return nil, domain.ErrNotFound
}

func (m *mockStore) CreateAgentLog(_ context.Context, log *business.AgentLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *log)
	return nil
}

func (m *mockStore) ListAgentLogs(_ context.Context, businessID string, limit int) ([]business.AgentLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []business.AgentLog
	for i := len(m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.logs[i].BusinessID == businessID {
			out = append(out, m.logs[i])
		}
	}
	return out, nil
}

func (m *mockStore) PruneAgentLogs(_ context.Context, _ time.Time) (int64, error) { return 0, nil }

// scriptedModel replays canned completions.
type scriptedModel struct {
	mu    sync.Mutex
	turns []func() (*llm.CompletionResponse, error)
	reqs  []llm.CompletionRequest
}

func (m *scriptedModel) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	if len(m.turns) == 0 {
		return nil, llm.ErrModelUnavailable
	}
	next := m.turns[0]
	m.turns = m.turns[1:]
	return next()
}

func say(text string) func() (*llm.CompletionResponse, error) {
	return func() (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Choices: []llm.Choice{{
			Message:      chat.Message{Role: chat.RoleAssistant, Content: text},
			FinishReason: llm.FinishStop,
		}}}, nil
	}
}

func callTool(id, name, args string) func() (*llm.CompletionResponse, error) {
	return func() (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Choices: []llm.Choice{{
			Message: chat.Message{Role: chat.RoleAssistant, ToolCalls: []chat.ToolCall{{
				ID: id, Type: "function", Function: chat.FunctionCall{Name: name, Arguments: args},
			}}},
			FinishReason: llm.FinishToolCalls,
		}}}, nil
	}
}

func fail() (*llm.CompletionResponse, error) {
	return nil, errors.Join(llm.ErrModelUnavailable, errors.New("openrouter: dial tcp: connection refused"))
}

type testEnv struct {
	h      *cfhttp.Handlers
	router http.Handler
	model  *scriptedModel
	store  *mockStore
	audit  *service.AuditLogger
}

func newTestEnv(t *testing.T, turns ...func() (*llm.CompletionResponse, error)) *testEnv {
	t.Helper()
	store := &mockStore{
		businesses: map[string]business.Business{
			"biz-1":      {ID: "biz-1", Name: "Court Kings", Type: "padel", Currency: "IDR", OwnerUID: "owner-1"},
			"biz-retail": {ID: "biz-retail", Name: "Shop", Type: "retail", OwnerUID: "owner-1"},
		},
		txs: []business.Transaction{
			{Kind: business.KindRevenue, Amount: 250000, Date: time.Now().Add(-time.Hour)},
		},
	}
	registry := industry.DefaultRegistry()
	resolver := service.NewBusinessResolver(store, nil, 0)
	model := &scriptedModel{turns: turns}

	tools := service.NewBusinessTools(store, resolver, registry)
	agent, err := service.NewAgentService(model, tools, resolver, registry,
		config.Agent{MaxIterations: 5, HistoryLimit: 20, ReplySummaryLen: 200}, "test-model")
	if err != nil {
		t.Fatal(err)
	}
	audit := service.NewAuditLogger(store, nil, "")
	agent.SetAudit(audit)

	h := &cfhttp.Handlers{Agent: agent, AgentLogs: audit, Dashboards: tools, Modules: registry, Version: "test"}
	r := chi.NewRouter()
	cfhttp.MountRoutes(r, h, nil)
	return &testEnv{h: h, router: r, model: model, store: store, audit: audit}
}

func (e *testEnv) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return rec
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var b errorBody
	if err := json.NewDecoder(rec.Body).Decode(&b); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return b
}

func TestChat_KPICardsScenario(t *testing.T) {
	env := newTestEnv(t,
		callTool("c1", "get_kpi_summary", `{"businessId":"biz-1","period":"week"}`),
		callTool("c2", "update_dashboard_view", `{"widgets":[{"visualId":"kpi_cards","props":{"kpis":[]}}]}`),
		say("Pendapatan minggu ini 250.000 IDR."),
	)
	rec := env.post(t, "/agent/chat", `{"businessId":"biz-1","message":"Bagaimana KPI minggu ini?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Message         string `json:"message"`
		DashboardUpdate *struct {
			Widgets []struct {
				VisualID string         `json:"visualId"`
				Props    map[string]any `json:"props"`
			} `json:"widgets"`
		} `json:"dashboardUpdate"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Message == "" {
		t.Error("expected non-empty message")
	}
	if resp.DashboardUpdate == nil || len(resp.DashboardUpdate.Widgets) != 1 || resp.DashboardUpdate.Widgets[0].VisualID != "kpi_cards" {
		t.Fatalf("dashboardUpdate = %+v", resp.DashboardUpdate)
	}

	// The KPI tool result reached the model as real data.
	toolMsg := env.model.reqs[1].Messages[len(env.model.reqs[1].Messages)-1]
	if toolMsg.Role != chat.RoleTool || !strings.Contains(toolMsg.Content, `"id":"revenue_total"`) || !strings.Contains(toolMsg.Content, `"value":250000`) {
		t.Fatalf("tool message = %+v", toolMsg)
	}
}

func TestChat_NoDashboardOmitsField(t *testing.T) {
	env := newTestEnv(t, say("Halo!"))
	rec := env.post(t, "/api/v1/agent/chat", `{"businessId":"biz-1","message":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "dashboardUpdate") {
		t.Fatalf("dashboardUpdate must be omitted: %s", rec.Body.String())
	}
}

func TestChat_BusinessNotFound(t *testing.T) {
	env := newTestEnv(t, say("unused"))
	rec := env.post(t, "/agent/chat", `{"businessId":"ghost","message":"hi"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if b := decodeError(t, rec); b.Error != "BUSINESS_NOT_FOUND" || b.Message == "" {
		t.Fatalf("body = %+v", b)
	}
	if len(env.model.reqs) != 0 {
		t.Fatal("model must not be called")
	}
}

func TestChat_NotOwner(t *testing.T) {
	env := newTestEnv(t, say("unused"))
	rec := env.post(t, "/agent/chat", `{"businessId":"biz-1","message":"hi","userId":"someone-else"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if b := decodeError(t, rec); b.Error != "UNAUTHORIZED" {
		t.Fatalf("body = %+v", b)
	}
}

func TestChat_ModelUnreachable(t *testing.T) {
	env := newTestEnv(t, fail)
	rec := env.post(t, "/agent/chat", `{"businessId":"biz-1","message":"hi"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if b := decodeError(t, rec); b.Error != "LLM_CALL_FAILED" {
		t.Fatalf("body = %+v", b)
	}
}

func TestChat_UnknownToolIsFedBack(t *testing.T) {
	env := newTestEnv(t,
		callTool("w1", "get_weather", `{"city":"Jakarta"}`),
		say("I can only answer questions about your business."),
	)
	rec := env.post(t, "/agent/chat", `{"businessId":"biz-1","message":"weather?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(env.model.reqs) != 2 {
		t.Fatalf("loop must continue after unknown tool, got %d model calls", len(env.model.reqs))
	}
	msgs := env.model.reqs[1].Messages
	last := msgs[len(msgs)-1]
	if last.Role != chat.RoleTool || last.ToolCallID != "w1" || last.Content != `{"error":"Unknown tool: get_weather"}` {
		t.Fatalf("tool message = %+v", last)
	}
}

func TestChat_InvalidRequests(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{"businessId":`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"missing business", `{"message":"hi"}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"blank message", `{"businessId":"biz-1","message":"   "}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"no module", `{"businessId":"biz-retail","message":"hi"}`, http.StatusBadRequest, "No module found for business type: retail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, say("unused"))
			rec := env.post(t, "/agent/chat", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if b := decodeError(t, rec); b.Error != tt.code {
				t.Fatalf("error = %q, want %q", b.Error, tt.code)
			}
			if len(env.model.reqs) != 0 {
				t.Fatal("model must not be called")
			}
		})
	}
}

func TestChat_OversizedBody(t *testing.T) {
	env := newTestEnv(t)
	big := `{"businessId":"biz-1","message":"` + strings.Repeat("x", 2<<20) + `"}`
	rec := env.post(t, "/agent/chat", big)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestChat_AuditLogIsListed(t *testing.T) {
	env := newTestEnv(t, say("All good."))
	if rec := env.post(t, "/agent/chat", `{"businessId":"biz-1","message":"status?"}`); rec.Code != http.StatusOK {
		t.Fatalf("chat: %d", rec.Code)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := env.audit.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	rec := env.get(t, "/api/v1/businesses/biz-1/agent-logs?limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var logs []business.AgentLog
	if err := json.NewDecoder(rec.Body).Decode(&logs); err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].UserMessage != "status?" || !logs[0].Success || logs[0].AgentReplySummary != "All good." {
		t.Fatalf("logs = %+v", logs)
	}

	if rec := env.get(t, "/api/v1/businesses/biz-1/agent-logs?limit=zero"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", rec.Code)
	}
}

func TestIndustriesAndTools(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/v1/industries")
	var mods []industry.Module
	if err := json.NewDecoder(rec.Body).Decode(&mods); err != nil {
		t.Fatal(err)
	}
	if len(mods) != 2 || mods[0].ID != "padel" {
		t.Fatalf("modules = %+v", mods)
	}

	if rec := env.get(t, "/api/v1/industries/fnb"); rec.Code != http.StatusOK {
		t.Fatalf("fnb: %d", rec.Code)
	}
	if rec := env.get(t, "/api/v1/industries/retail"); rec.Code != http.StatusNotFound {
		t.Fatalf("retail: %d", rec.Code)
	}

	rec = env.get(t, "/api/v1/agent/tools")
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"update_dashboard_view"`)) {
		t.Fatalf("tools = %s", rec.Body.String())
	}
}

func TestHealthCheck(t *testing.T) {
	h := &cfhttp.Handlers{Health: []cfhttp.HealthCheck{
		{Name: "postgres", Check: func(context.Context) error { return nil }},
		{Name: "nats", Check: func(context.Context) error { return errors.New("disconnected") }, Optional: true},
	}}
	r := chi.NewRouter()
	cfhttp.MountRoutes(r, h, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"degraded"`) {
		t.Fatalf("optional failure: %d %s", rec.Code, rec.Body.String())
	}

	h.Health = append(h.Health, cfhttp.HealthCheck{Name: "db", Check: func(context.Context) error { return errors.New("down") }})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("required failure: expected 503, got %d", rec.Code)
	}
}

func TestChat_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	rl := middleware.NewRateLimiter(0.001, 1)
	r := chi.NewRouter()
	cfhttp.MountRoutes(r, env.h, rl.Handler)

	send := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/agent/chat", strings.NewReader(`{}`)))
		return rec
	}
	if rec := send(); rec.Code != http.StatusBadRequest {
		t.Fatalf("first request: expected 400 from handler, got %d", rec.Code)
	}
	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
	if b := decodeError(t, rec); b.Error != "RATE_LIMITED" {
		t.Fatalf("body = %+v", b)
	}

	// Non-chat routes are not limited.
	for range 3 {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/industries", http.NoBody))
		if rec.Code != http.StatusOK {
			t.Fatalf("industries: %d", rec.Code)
		}
	}
}

func TestGetDashboard(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/v1/businesses/biz-1/dashboard?period=week")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var dash struct {
		Widgets []struct {
			VisualID string         `json:"visualId"`
			Props    map[string]any `json:"props"`
		} `json:"widgets"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&dash); err != nil {
		t.Fatal(err)
	}
	if len(dash.Widgets) != 3 {
		t.Fatalf("expected 3 widgets, got %+v", dash.Widgets)
	}
	if dash.Widgets[0].VisualID != "kpi_cards" || dash.Widgets[1].VisualID != "revenue_timeseries" ||
		dash.Widgets[2].VisualID != "occupancy_heatmap" {
		t.Errorf("unexpected widget order: %+v", dash.Widgets)
	}
	points, _ := dash.Widgets[1].Props["points"].([]any)
	if len(points) != 1 {
		t.Errorf("expected one revenue point, got %v", dash.Widgets[1].Props["points"])
	}

	tests := []struct {
		path string
		code int
	}{
		{"/api/v1/businesses/nope/dashboard", http.StatusNotFound},
		{"/api/v1/businesses/biz-retail/dashboard", http.StatusBadRequest},
		{"/api/v1/businesses/biz-1/dashboard?period=custom&from=yesterday", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := env.get(t, tt.path); rec.Code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.code, rec.Code)
		}
	}
}
