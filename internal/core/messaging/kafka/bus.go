// Package kafka carries the saga fabric over Apache Kafka.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging"
)

type Config struct {
	Brokers []string
	Retry   messaging.RetryPolicy
}

// Bus writes every envelope to the Kafka topic of the same name, keyed by
// Envelope.Key, and reads each subscription with its own consumer-group
// reader. Offsets are committed after the handler has finished.
type Bus struct {
	cfg    Config
	logger *slog.Logger
	writer *kafkago.Writer

	mu      sync.Mutex
	subs    []subscription
	readers []*kafkago.Reader
}

type subscription struct {
	group   string
	topic   messaging.Topic
	handler messaging.Handler
}

// header names carrying envelope metadata.
const (
	headerID       = "message-id"
	headerSagaID   = "saga-id"
	headerWorkflow = "workflow"
)

func New(cfg Config, logger *slog.Logger) (*Bus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = messaging.DefaultRetryPolicy()
	}
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	return &Bus{cfg: cfg, logger: logger, writer: w}, nil
}

func (b *Bus) Publish(ctx context.Context, env messaging.Envelope) error {
	if err := b.writer.WriteMessages(ctx, toMessage(env)); err != nil {
		return fmt.Errorf("kafka publish %s: %w", env.Topic, err)
	}
	return nil
}

func (b *Bus) Subscribe(group string, topic messaging.Topic, h messaging.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if s.group == group && s.topic == topic {
			return fmt.Errorf("group %s already subscribed to %s", group, topic)
		}
	}
	b.subs = append(b.subs, subscription{group: group, topic: topic, handler: h})
	return nil
}

// Run consumes every subscription until ctx is cancelled.
func (b *Bus) Run(ctx context.Context) error {
	b.mu.Lock()
	var wg sync.WaitGroup
	for _, s := range b.subs {
		r := kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:        b.cfg.Brokers,
			GroupID:        s.group,
			Topic:          string(s.topic),
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: 0,
		})
		b.readers = append(b.readers, r)
		wg.Add(1)
		go func(s subscription, r *kafkago.Reader) {
			defer wg.Done()
			b.consume(ctx, s, r)
		}(s, r)
	}
	b.mu.Unlock()

	b.logger.Info("kafka bus running", "brokers", b.cfg.Brokers, "subscriptions", len(b.subs))
	wg.Wait()
	return nil
}

func (b *Bus) consume(ctx context.Context, s subscription, r *kafkago.Reader) {
	logger := b.logger.With("group", s.group, "topic", s.topic)
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("kafka fetch failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		_ = messaging.Deliver(ctx, s.handler, toEnvelope(msg), b.cfg.Retry, logger)
		if ctx.Err() != nil {
			return
		}
		if err := r.CommitMessages(ctx, msg); err != nil {
			logger.Error("kafka commit failed", "offset", msg.Offset, "error", err)
		}
	}
}

func toMessage(env messaging.Envelope) kafkago.Message {
	return kafkago.Message{
		Topic: string(env.Topic),
		Key:   []byte(env.Key),
		Value: env.Payload,
		Time:  env.CreatedAt,
		Headers: []kafkago.Header{
			{Key: headerID, Value: []byte(env.ID.String())},
			{Key: headerSagaID, Value: []byte(env.SagaID.String())},
			{Key: headerWorkflow, Value: []byte(env.Workflow)},
		},
	}
}

func toEnvelope(msg kafkago.Message) messaging.Envelope {
	env := messaging.Envelope{
		Topic:     messaging.Topic(msg.Topic),
		Key:       string(msg.Key),
		Payload:   msg.Value,
		CreatedAt: msg.Time,
	}
	for _, h := range msg.Headers {
		switch h.Key {
		case headerID:
			env.ID, _ = uuid.Parse(string(h.Value))
		case headerSagaID:
			env.SagaID, _ = uuid.Parse(string(h.Value))
		case headerWorkflow:
			env.Workflow = messaging.Workflow(h.Value)
		}
	}
	return env
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for _, r := range b.readers {
		errs = append(errs, r.Close())
	}
	errs = append(errs, b.writer.Close())
	return errors.Join(errs...)
}
