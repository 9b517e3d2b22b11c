package messaging

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is one message on the fabric. Key is the identifier of the
// aggregate the consumer will mutate; the fabric partitions by it.
type Envelope struct {
	ID        uuid.UUID `json:"id"`
	SagaID    uuid.UUID `json:"saga_id"`
	Workflow  Workflow  `json:"workflow"`
	Topic     Topic     `json:"topic"`
	Key       string    `json:"key"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEnvelope encodes payload with codec and stamps a fresh message id.
func NewEnvelope(codec Codec, sagaID uuid.UUID, workflow Workflow, topic Topic, key string, payload any, at time.Time) (Envelope, error) {
	data, err := codec.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s payload: %w", topic, err)
	}
	return Envelope{
		ID:        uuid.New(),
		SagaID:    sagaID,
		Workflow:  workflow,
		Topic:     topic,
		Key:       key,
		Payload:   data,
		CreatedAt: at,
	}, nil
}

// Decode unmarshals the payload. A malformed payload is never retried.
func (e Envelope) Decode(codec Codec, v any) error {
	if err := codec.Unmarshal(e.Payload, v); err != nil {
		return Drop(fmt.Errorf("malformed %s payload: %w", e.Topic, err))
	}
	return nil
}

// DedupKey identifies this saga step for one consumer group. A redelivery,
// or a re-emission of the same step, maps to the same key.
func (e Envelope) DedupKey(group string) string {
	return group + ":" + e.SagaID.String() + ":" + string(e.Topic)
}
