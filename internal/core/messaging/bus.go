package messaging

import "context"

// Handler processes one envelope. Returning an error asks the fabric to
// redeliver; wrap it with Drop when redelivery cannot help.
type Handler func(ctx context.Context, env Envelope) error

type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Subscriber registers a handler for a topic under a consumer group. Every
// group receives every message on the topic once.
type Subscriber interface {
	Subscribe(group string, topic Topic, h Handler) error
}

type Bus interface {
	Publisher
	Subscriber
	// Run consumes until ctx is cancelled.
	Run(ctx context.Context) error
	Close() error
}
