package messaging_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ibrahimkeyboad/gosettle/internal/core/logging"
	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging"
)

var fastRetry = messaging.RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
}

func testEnvelope(t *testing.T) messaging.Envelope {
	t.Helper()
	env, err := messaging.NewEnvelope(messaging.JSONCodec{}, uuid.New(), messaging.WorkflowPurchase,
		messaging.TopicPurchaseRequest, "acc-1", messaging.PurchasePayload{WalletID: uuid.New()}, time.Now())
	require.NoError(t, err)
	return env
}

func Test_Envelope(t *testing.T) {
	env := testEnvelope(t)
	require.NotEqual(t, uuid.Nil, env.ID)

	var p messaging.PurchasePayload
	require.NoError(t, env.Decode(messaging.JSONCodec{}, &p))
	require.NotEqual(t, uuid.Nil, p.WalletID)

	env.Payload = []byte("{broken")
	err := env.Decode(messaging.JSONCodec{}, &p)
	require.Error(t, err)
	require.True(t, messaging.IsDropped(err))

	require.Equal(t, "bank:"+env.SagaID.String()+":purchase-request", env.DedupKey("bank"))
}

func Test_Deliver(t *testing.T) {
	ctx := context.Background()
	logger := logging.Discard()

	t.Run("ok, retries until the handler succeeds", func(t *testing.T) {
		calls := 0
		h := func(context.Context, messaging.Envelope) error {
			calls++
			if calls < 3 {
				return errors.New("database is restarting")
			}
			return nil
		}
		require.NoError(t, messaging.Deliver(ctx, h, testEnvelope(t), fastRetry, logger))
		require.Equal(t, 3, calls)
	})

	t.Run("fail, gives up after max attempts", func(t *testing.T) {
		calls := 0
		h := func(context.Context, messaging.Envelope) error {
			calls++
			return errors.New("database is down")
		}
		require.Error(t, messaging.Deliver(ctx, h, testEnvelope(t), fastRetry, logger))
		require.Equal(t, 3, calls)
	})

	t.Run("fail, dropped errors are not retried", func(t *testing.T) {
		calls := 0
		h := func(context.Context, messaging.Envelope) error {
			calls++
			return messaging.Drop(errors.New("malformed"))
		}
		require.Error(t, messaging.Deliver(ctx, h, testEnvelope(t), fastRetry, logger))
		require.Equal(t, 1, calls)
	})
}
