// Package inmem is a partitioned in-process message fabric for development
// and tests.
package inmem

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging"
)

var ErrClosed = errors.New("bus closed")

type Config struct {
	Partitions int
	QueueSize  int
	Retry      messaging.RetryPolicy
}

// Bus fans every published envelope out to each (group, topic)
// subscription. Within a subscription envelopes with the same key land on
// the same partition and are handled in publish order.
type Bus struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	subs    map[messaging.Topic][]*subscription
	running bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type subscription struct {
	group   string
	topic   messaging.Topic
	handler messaging.Handler
	queues  []chan messaging.Envelope
}

func New(cfg Config, logger *slog.Logger) *Bus {
	if cfg.Partitions <= 0 {
		cfg.Partitions = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = messaging.DefaultRetryPolicy()
	}
	return &Bus{
		cfg:    cfg,
		logger: logger,
		subs:   make(map[messaging.Topic][]*subscription),
		done:   make(chan struct{}),
	}
}

func (b *Bus) Subscribe(group string, topic messaging.Topic, h messaging.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return fmt.Errorf("subscribe %s/%s: bus already running", group, topic)
	}
	for _, s := range b.subs[topic] {
		if s.group == group {
			return fmt.Errorf("group %s already subscribed to %s", group, topic)
		}
	}
	sub := &subscription{group: group, topic: topic, handler: h}
	for i := 0; i < b.cfg.Partitions; i++ {
		sub.queues = append(sub.queues, make(chan messaging.Envelope, b.cfg.QueueSize))
	}
	b.subs[topic] = append(b.subs[topic], sub)
	return nil
}

// Publish blocks while a target partition is full.
func (b *Bus) Publish(ctx context.Context, env messaging.Envelope) error {
	b.mu.RLock()
	subs := b.subs[env.Topic]
	b.mu.RUnlock()

	p := b.partition(env.Key)
	for _, s := range subs {
		select {
		case s.queues[p] <- env:
		case <-b.done:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *Bus) partition(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(b.cfg.Partitions))
}

// Run starts one consumer per partition and blocks until ctx is cancelled
// or the bus is closed.
func (b *Bus) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return errors.New("bus already running")
	}
	b.running = true
	for _, subs := range b.subs {
		for _, s := range subs {
			for _, q := range s.queues {
				b.wg.Add(1)
				go b.consume(ctx, s, q)
			}
		}
	}
	b.mu.Unlock()

	b.logger.Info("in-memory bus running", "partitions", b.cfg.Partitions)
	select {
	case <-ctx.Done():
	case <-b.done:
	}
	b.wg.Wait()
	return nil
}

func (b *Bus) consume(ctx context.Context, s *subscription, q <-chan messaging.Envelope) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case env := <-q:
			// Failures are already logged by Deliver.
			_ = messaging.Deliver(ctx, s.handler, env, b.cfg.Retry, b.logger.With("group", s.group))
		}
	}
}

func (b *Bus) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}
