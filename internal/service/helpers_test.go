package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aruna-bi/aruna/internal/domain"
	"github.com/aruna-bi/aruna/internal/domain/business"
	"github.com/aruna-bi/aruna/internal/domain/chat"
	"github.com/aruna-bi/aruna/internal/port/llm"
	"github.com/aruna-bi/aruna/internal/port/messagequeue"
)

// --- scripted model ---

type modelTurn struct {
	resp *llm.CompletionResponse
	err  error
}

type fakeModel struct {
	mu    sync.Mutex
	turns []modelTurn
	reqs  []llm.CompletionRequest
}

func (m *fakeModel) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	if len(m.turns) == 0 {
		return nil, errors.New("fakeModel: no scripted turn left")
	}
	t := m.turns[0]
	m.turns = m.turns[1:]
	return t.resp, t.err
}

func (m *fakeModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reqs)
}

func textTurn(content string) modelTurn {
	return modelTurn{resp: &llm.CompletionResponse{Choices: []llm.Choice{{
		Message:      chat.Message{Role: chat.RoleAssistant, Content: content},
		FinishReason: llm.FinishStop,
	}}}}
}

func toolTurn(content string, calls ...chat.ToolCall) modelTurn {
	return modelTurn{resp: &llm.CompletionResponse{Choices: []llm.Choice{{
		Message:      chat.Message{Role: chat.RoleAssistant, Content: content, ToolCalls: calls},
		FinishReason: llm.FinishToolCalls,
	}}}}
}

func errTurn() modelTurn {
	return modelTurn{err: llm.ErrModelUnavailable}
}

func call(id, name, args string) chat.ToolCall {
	return chat.ToolCall{ID: id, Type: "function", Function: chat.FunctionCall{Name: name, Arguments: args}}
}

// --- recording data tools ---

type fakeTools struct {
	mu       sync.Mutex
	queries  []PeriodQuery
	payback  []string
	kpiData  any
	err      error
	panicMsg string
}

func (f *fakeTools) KPISummary(_ context.Context, q PeriodQuery) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	if f.kpiData != nil {
		return f.kpiData, nil
	}
	return map[string]any{"kpis": []any{map[string]any{"id": "revenue_total", "value": 1500}}}, nil
}

func (f *fakeTools) PaybackProjection(_ context.Context, businessID string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payback = append(f.payback, businessID)
	return PaybackProjection{Assumptions: []string{}}, f.err
}

func (f *fakeTools) OccupancySummary(_ context.Context, q PeriodQuery) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return OccupancySummary{Courts: []string{}, Hours: []int{}, Matrix: [][]float64{}}, f.err
}

// --- in-memory store ---

type fakeStore struct {
	mu          sync.Mutex
	businesses  map[string]*business.Business
	entities    map[string][]business.Entity
	txs         map[string][]business.Transaction
	configs     map[string]*business.FinancialConfig
	logs        []business.AgentLog
	getCalls    int
	getErr      error
	createErr   error
	prunedSince time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		businesses: make(map[string]*business.Business),
		entities:   make(map[string][]business.Entity),
		txs:        make(map[string][]business.Transaction),
		configs:    make(map[string]*business.FinancialConfig),
	}
}

func (s *fakeStore) GetBusiness(_ context.Context, id string) (*business.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return nil, s.getErr
	}
	b, ok := s.businesses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *fakeStore) ListEntities(_ context.Context, businessID string) ([]business.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entities[businessID], nil
}

func (s *fakeStore) ListTransactions(_ context.Context, businessID string, f business.TransactionFilter) ([]business.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []business.Transaction
	for _, t := range s.txs[businessID] {
		if f.Kind != "" && t.Kind != f.Kind {
			continue
		}
		if (!f.From.IsZero() && t.Date.Before(f.From)) || (!f.To.IsZero() && t.Date.After(f.To)) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeStore) GetFinancialConfig(_ context.Context, businessID string) (*business.FinancialConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.configs[businessID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (s *fakeStore) CreateAgentLog(_ context.Context, log *business.AgentLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.logs = append(s.logs, *log)
	return nil
}

func (s *fakeStore) ListAgentLogs(_ context.Context, businessID string, limit int) ([]business.AgentLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []business.AgentLog
	for i := len(s.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.logs[i].BusinessID == businessID {
			out = append(out, s.logs[i])
		}
	}
	return out, nil
}

func (s *fakeStore) PruneAgentLogs(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prunedSince = olderThan
	kept := s.logs[:0]
	var n int64
	for _, l := range s.logs {
		if l.Timestamp.Before(olderThan) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	s.logs = kept
	return n, nil
}

func (s *fakeStore) savedLogs() []business.AgentLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]business.AgentLog(nil), s.logs...)
}

// --- queue ---

type fakeQueue struct {
	mu         sync.Mutex
	connected  bool
	publishErr error
	published  [][]byte
	handler    messagequeue.Handler
}

func (q *fakeQueue) Publish(_ context.Context, _ string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, data)
	return nil
}

func (q *fakeQueue) Subscribe(_ context.Context, _ string, h messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = h
	return func() {}, nil
}

func (q *fakeQueue) Close() error      { return nil }
func (q *fakeQueue) IsConnected() bool { return q.connected }

// --- audit sink ---

type recordingAudit struct {
	mu   sync.Mutex
	logs []*business.AgentLog
}

func (a *recordingAudit) Record(_ context.Context, log *business.AgentLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
}
