package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/aruna-bi/aruna/internal/adapter/otel"
	"github.com/aruna-bi/aruna/internal/domain/business"
	"github.com/aruna-bi/aruna/internal/port/messagequeue"
)

const defaultAuditTimeout = 5 * time.Second

// AgentLogStore persists agent logs.
type AgentLogStore interface {
	CreateAgentLog(ctx context.Context, log *business.AgentLog) error
	ListAgentLogs(ctx context.Context, businessID string, limit int) ([]business.AgentLog, error)
	PruneAgentLogs(ctx context.Context, olderThan time.Time) (int64, error)
}

// AuditLogger writes agent logs on detached goroutines. A failed write is
// counted as a dead letter and never reaches the request that produced it.
// With a connected queue, logs are published and persisted by Consume;
// otherwise they go straight to the store.
type AuditLogger struct {
	store   AgentLogStore
	queue   messagequeue.Queue
	subject string
	timeout time.Duration
	metrics *cfotel.Metrics

	wg          sync.WaitGroup
	deadLetters atomic.Int64
}

// NewAuditLogger creates an audit logger. queue may be nil.
func NewAuditLogger(store AgentLogStore, queue messagequeue.Queue, subject string) *AuditLogger {
	if subject == "" {
		subject = messagequeue.SubjectAgentLog
	}
	return &AuditLogger{store: store, queue: queue, subject: subject, timeout: defaultAuditTimeout}
}

// SetMetrics enables the dead-letter counter metric.
func (a *AuditLogger) SetMetrics(m *cfotel.Metrics) { a.metrics = m }

// Record schedules log for writing and returns immediately.
func (a *AuditLogger) Record(ctx context.Context, log *business.AgentLog) {
	ctx = context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				a.deadLetter(ctx, log, fmt.Errorf("panic: %v", r))
			}
		}()
		wctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		if err := a.write(wctx, log); err != nil {
			a.deadLetter(ctx, log, err)
		}
	}()
}

func (a *AuditLogger) write(ctx context.Context, log *business.AgentLog) error {
	if a.queue != nil && a.queue.IsConnected() {
		data, err := json.Marshal(toPayload(log))
		if err != nil {
			return fmt.Errorf("marshal agent log: %w", err)
		}
		err = a.queue.Publish(ctx, a.subject, data)
		if err == nil {
			return nil
		}
		slog.WarnContext(ctx, "agent log publish failed, writing directly", "error", err)
	}
	return a.store.CreateAgentLog(ctx, log)
}

func (a *AuditLogger) deadLetter(ctx context.Context, log *business.AgentLog, err error) {
	n := a.deadLetters.Add(1)
	slog.ErrorContext(ctx, "agent log dropped",
		"business_id", log.BusinessID, "log_id", log.ID, "dead_letters", n, "error", err)
	if a.metrics != nil {
		a.metrics.AuditFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("business_id", log.BusinessID)))
	}
}

// DeadLetters returns the number of logs that could not be written.
func (a *AuditLogger) DeadLetters() int64 { return a.deadLetters.Load() }

// Wait blocks until in-flight writes finish or ctx is done.
func (a *AuditLogger) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume subscribes to the audit subject and persists every received log.
func (a *AuditLogger) Consume(ctx context.Context) (func(), error) {
	if a.queue == nil {
		return func() {}, nil
	}
	return a.queue.Subscribe(ctx, a.subject, func(ctx context.Context, _ string, data []byte) error {
		var p messagequeue.AgentLogPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("unmarshal agent log: %w", err)
		}
		log, err := fromPayload(&p)
		if err != nil {
			return err
		}
		return a.store.CreateAgentLog(ctx, log)
	})
}

// List returns the most recent logs of a business, newest first.
func (a *AuditLogger) List(ctx context.Context, businessID string, limit int) ([]business.AgentLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	logs, err := a.store.ListAgentLogs(ctx, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("list agent logs: %w", err)
	}
	return logs, nil
}

// Prune deletes logs older than retention.
func (a *AuditLogger) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := a.store.PruneAgentLogs(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("prune agent logs: %w", err)
	}
	return n, nil
}

// StartPruner runs Prune on a standard cron schedule. Stop the returned
// scheduler on shutdown.
func (a *AuditLogger) StartPruner(schedule string, retention time.Duration) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := a.Prune(ctx, retention)
		if err != nil {
			slog.Error("agent log pruning failed", "error", err)
			return
		}
		slog.Info("agent logs pruned", "deleted", n, "retention", retention.String())
	})
	if err != nil {
		return nil, fmt.Errorf("schedule agent log pruning %q: %w", schedule, err)
	}
	c.Start()
	return c, nil
}

func toPayload(l *business.AgentLog) messagequeue.AgentLogPayload {
	return messagequeue.AgentLogPayload{
		ID:                l.ID,
		BusinessID:        l.BusinessID,
		UserMessage:       l.UserMessage,
		AgentReplySummary: l.AgentReplySummary,
		ToolsUsed:         l.ToolsUsed,
		Success:           l.Success,
		DurationMS:        l.DurationMS,
		ErrorCode:         l.ErrorCode,
		ErrorMessage:      l.ErrorMessage,
		Timestamp:         l.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func fromPayload(p *messagequeue.AgentLogPayload) (*business.AgentLog, error) {
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("agent log %s: invalid timestamp %q: %w", p.ID, p.Timestamp, err)
	}
	tools := p.ToolsUsed
	if tools == nil {
		tools = []string{}
	}
	return &business.AgentLog{
		ID:                p.ID,
		BusinessID:        p.BusinessID,
		UserMessage:       p.UserMessage,
		AgentReplySummary: p.AgentReplySummary,
		ToolsUsed:         tools,
		Success:           p.Success,
		DurationMS:        p.DurationMS,
		ErrorCode:         p.ErrorCode,
		ErrorMessage:      p.ErrorMessage,
		Timestamp:         ts,
	}, nil
}
