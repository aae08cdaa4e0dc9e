// Package nats implements the message queue port using NATS JetStream.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/aruna-bi/aruna/internal/logger"
	"github.com/aruna-bi/aruna/internal/port/messagequeue"
)

const (
	streamName = "ARUNA"

	headerRequestID  = "X-Request-ID"
	headerRetryCount = "Retry-Count"

	// maxRetries is how often a failing message is redelivered before it
	// is moved to the dead letter subject.
	maxRetries = 3
)

// dlqSubject returns the dead letter subject for subject.
func dlqSubject(subject string) string { return subject + ".dlq" }

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and ensures the JetStream stream exists.
func Connect(ctx context.Context, url string) (*Queue, error) {
	nc, err := nats.Connect(url,
		nats.Name("aruna"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"agent.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Queue{nc: nc, js: js}, nil
}

// KeyValue creates or updates a key-value bucket whose entries expire
// after ttl.
func (q *Queue) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := q.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "aruna business snapshot cache",
		TTL:         ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("nats kv bucket %s: %w", bucket, err)
	}
	return kv, nil
}

// Publish sends a message to the given subject. The request ID of ctx, if
// any, travels in a header.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	if id := logger.RequestID(ctx); id != "" {
		msg.Header.Set(headerRequestID, id)
	}
	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for messages on the given subject. Messages
// failing schema validation go straight to the dead letter subject; messages
// whose handler fails are retried up to maxRetries times first.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		q.handle(ctx, msg, handler)
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

func (q *Queue) handle(ctx context.Context, msg jetstream.Msg, handler messagequeue.Handler) {
	subject := msg.Subject()
	msgCtx := ctx
	if id := msg.Headers().Get(headerRequestID); id != "" {
		msgCtx = logger.WithRequestID(msgCtx, id)
	}

	if err := messagequeue.Validate(subject, msg.Data()); err != nil {
		slog.ErrorContext(msgCtx, "invalid message", "subject", subject, "error", err)
		q.deadLetter(msgCtx, msg, err)
		return
	}

	if err := handler(msgCtx, subject, msg.Data()); err != nil {
		retries := retryCount(msg)
		slog.ErrorContext(msgCtx, "message handler failed", "subject", subject, "retry", retries, "error", err)
		if retries >= maxRetries {
			q.deadLetter(msgCtx, msg, err)
			return
		}
		if err := q.republish(msgCtx, msg, retries+1); err != nil {
			slog.ErrorContext(msgCtx, "nats retry publish failed", "subject", subject, "error", err)
			if nakErr := msg.NakWithDelay(time.Second); nakErr != nil {
				slog.ErrorContext(msgCtx, "nats nak failed", "error", nakErr)
			}
			return
		}
	}

	if ackErr := msg.Ack(); ackErr != nil {
		slog.ErrorContext(msgCtx, "nats ack failed", "error", ackErr)
	}
}

// republish puts a copy of msg back on its subject with an incremented
// retry header.
func (q *Queue) republish(ctx context.Context, msg jetstream.Msg, retry int) error {
	out := nats.NewMsg(msg.Subject())
	out.Data = msg.Data()
	for k, v := range msg.Headers() {
		out.Header[k] = v
	}
	out.Header.Set(headerRetryCount, strconv.Itoa(retry))
	_, err := q.js.PublishMsg(ctx, out)
	return err
}

// deadLetter moves msg to its dead letter subject and acks the original.
func (q *Queue) deadLetter(ctx context.Context, msg jetstream.Msg, cause error) {
	out := nats.NewMsg(dlqSubject(msg.Subject()))
	out.Data = msg.Data()
	for k, v := range msg.Headers() {
		out.Header[k] = v
	}
	out.Header.Set("Error", cause.Error())
	if _, err := q.js.PublishMsg(ctx, out); err != nil {
		slog.ErrorContext(ctx, "nats dlq publish failed", "subject", out.Subject, "error", err)
		if nakErr := msg.Nak(); nakErr != nil {
			slog.ErrorContext(ctx, "nats nak failed", "error", nakErr)
		}
		return
	}
	if ackErr := msg.Ack(); ackErr != nil {
		slog.ErrorContext(ctx, "nats ack failed", "error", ackErr)
	}
}

func retryCount(msg jetstream.Msg) int {
	n, err := strconv.Atoi(msg.Headers().Get(headerRetryCount))
	if err != nil {
		return 0
	}
	return n
}

// IsConnected reports whether the NATS connection is up.
func (q *Queue) IsConnected() bool {
	return q.nc != nil && q.nc.IsConnected()
}

// Ping checks the connection for health probes.
func (q *Queue) Ping(_ context.Context) error {
	if !q.IsConnected() {
		return fmt.Errorf("nats: %s", q.nc.Status())
	}
	return nil
}

// Close drains and shuts down the NATS connection.
func (q *Queue) Close() error {
	if err := q.nc.Drain(); err != nil {
		q.nc.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

var _ messagequeue.Queue = (*Queue)(nil)
