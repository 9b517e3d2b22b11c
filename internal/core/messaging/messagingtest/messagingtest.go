// Package messagingtest holds helpers for exercising saga handlers without a
// running fabric.
package messagingtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging"
)

// Subscriber captures the handlers a service registers so tests can feed
// them envelopes directly.
type Subscriber struct {
	mu       sync.Mutex
	handlers map[messaging.Topic]messaging.Handler
}

func NewSubscriber() *Subscriber {
	return &Subscriber{handlers: make(map[messaging.Topic]messaging.Handler)}
}

func (s *Subscriber) Subscribe(_ string, topic messaging.Topic, h messaging.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handlers[topic]; ok {
		return fmt.Errorf("topic %s already has a handler", topic)
	}
	s.handlers[topic] = h
	return nil
}

// Topics lists the subscribed topics.
func (s *Subscriber) Topics() []messaging.Topic {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]messaging.Topic, 0, len(s.handlers))
	for t := range s.handlers {
		out = append(out, t)
	}
	return out
}

// Deliver runs the handler registered for env.Topic once.
func (s *Subscriber) Deliver(ctx context.Context, env messaging.Envelope) error {
	s.mu.Lock()
	h, ok := s.handlers[env.Topic]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no handler for %s", env.Topic)
	}
	return h(ctx, env)
}

// MustEnvelope builds a JSON envelope opening a fresh saga.
func MustEnvelope(workflow messaging.Workflow, topic messaging.Topic, key string, payload any) messaging.Envelope {
	env, err := messaging.NewEnvelope(messaging.JSONCodec{}, uuid.New(), workflow, topic, key, payload, time.Now())
	if err != nil {
		panic(err)
	}
	return env
}

// MustDecode unmarshals the JSON payload of env into a T.
func MustDecode[T any](env messaging.Envelope) T {
	var v T
	if err := env.Decode(messaging.JSONCodec{}, &v); err != nil {
		panic(err)
	}
	return v
}

// Publisher records envelopes and fails the next Fail publishes.
type Publisher struct {
	mu        sync.Mutex
	Published []messaging.Envelope
	Fail      int
}

func (p *Publisher) Publish(_ context.Context, env messaging.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Fail > 0 {
		p.Fail--
		return fmt.Errorf("broker unavailable")
	}
	p.Published = append(p.Published, env)
	return nil
}

func (p *Publisher) Envelopes() []messaging.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]messaging.Envelope(nil), p.Published...)
}
