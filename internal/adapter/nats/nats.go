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

	"github.com/recoverfleet/drsorch/internal/logger"
	"github.com/recoverfleet/drsorch/internal/port/messagequeue"
)

const streamName = "DRSORCH"

const (
	headerRequestID  = "Request-Id"
	headerRetryCount = "Retry-Count"

	// maxRetries is the number of redeliveries a failing message gets
	// before it is moved to the dead-letter subject.
	maxRetries = 3
)

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and ensures the JetStream stream exists.
func Connect(ctx context.Context, url string) (*Queue, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	// Ensure the stream exists with subjects matching our topic patterns.
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"executions.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Queue{nc: nc, js: js}, nil
}

// Publish sends a message to the given subject. A request ID present on the
// context is carried in a header so subscribers can continue the trace.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{},
	}
	if id := logger.RequestID(ctx); id != "" {
		msg.Header.Set(headerRequestID, id)
	}

	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for messages on the given subject.
//
// Incoming payloads are validated against the subject's schema before the
// handler runs; invalid messages go straight to the dead-letter subject
// (<subject>.dlq). Handler failures are retried by republishing with an
// incremented retry counter until maxRetries, then dead-lettered.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		hdrs := msg.Headers()

		msgCtx := context.Background()
		if id := hdrs.Get(headerRequestID); id != "" {
			msgCtx = logger.WithRequestID(msgCtx, id)
		}

		if err := messagequeue.Validate(msg.Subject(), msg.Data()); err != nil {
			slog.Error("message failed validation, dead-lettering",
				"subject", msg.Subject(), "error", err)
			q.moveToDLQ(msgCtx, msg)
			ack(msg)
			return
		}

		if err := handler(msgCtx, msg.Subject(), msg.Data()); err != nil {
			retries := retryCount(hdrs)
			slog.Error("message handler failed",
				"subject", msg.Subject(), "retries", retries, "error", err)

			if retries >= maxRetries {
				q.moveToDLQ(msgCtx, msg)
				ack(msg)
				return
			}
			q.retry(msgCtx, msg, retries+1)
			ack(msg)
			return
		}
		ack(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// retry republishes the message with an incremented retry counter.
func (q *Queue) retry(ctx context.Context, msg jetstream.Msg, count int) {
	out := &nats.Msg{
		Subject: msg.Subject(),
		Data:    msg.Data(),
		Header:  cloneHeader(msg.Headers()),
	}
	out.Header.Set(headerRetryCount, strconv.Itoa(count))

	if _, err := q.js.PublishMsg(ctx, out); err != nil {
		slog.Error("nats retry republish failed", "subject", msg.Subject(), "error", err)
	}
}

// moveToDLQ publishes the message to the dead-letter subject so it is
// preserved for inspection instead of being redelivered forever.
func (q *Queue) moveToDLQ(ctx context.Context, msg jetstream.Msg) {
	dlqSubject := msg.Subject() + ".dlq"
	out := &nats.Msg{
		Subject: dlqSubject,
		Data:    msg.Data(),
		Header:  cloneHeader(msg.Headers()),
	}

	if _, err := q.js.PublishMsg(ctx, out); err != nil {
		slog.Error("nats DLQ publish failed", "subject", dlqSubject, "error", err)
		return
	}
	slog.Warn("message moved to DLQ", "subject", dlqSubject)
}

// KeyValue creates or binds a JetStream key-value bucket with the given TTL.
func (q *Queue) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := q.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("jetstream kv bucket %s: %w", bucket, err)
	}
	return kv, nil
}

// Drain gracefully drains subscriptions and closes the connection.
func (q *Queue) Drain() error {
	return q.nc.Drain()
}

// Close shuts down the NATS connection immediately.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// IsConnected reports whether the underlying connection is up.
func (q *Queue) IsConnected() bool {
	return q.nc.IsConnected()
}

func retryCount(hdrs nats.Header) int {
	n, err := strconv.Atoi(hdrs.Get(headerRetryCount))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func cloneHeader(hdrs nats.Header) nats.Header {
	out := nats.Header{}
	for k, vals := range hdrs {
		for _, v := range vals {
			out.Add(k, v)
		}
	}
	return out
}

func ack(msg jetstream.Msg) {
	if err := msg.Ack(); err != nil {
		slog.Error("nats ack failed", "subject", msg.Subject(), "error", err)
	}
}
