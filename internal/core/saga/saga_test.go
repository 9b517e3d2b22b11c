package saga_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/logging"
	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

var (
	codec   = messaging.JSONCodec{}
	testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
)

func Test_StartEmitConclude(t *testing.T) {
	ctx := context.Background()
	journal := saga.NewMemoryJournal()

	tx := journal.Begin()
	sagaID, err := saga.Start(ctx, tx, codec, messaging.WorkflowPurchase, messaging.TopicPurchaseRequest, "acc-1", map[string]string{"a": "b"}, testNow)
	require.NoError(t, err)

	// Nothing is visible before commit.
	_, err = journal.Instance(ctx, sagaID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Empty(t, journal.Pending())

	tx.Commit()
	inst, err := journal.Instance(ctx, sagaID)
	require.NoError(t, err)
	require.Equal(t, saga.StatusInProgress, inst.Status)
	require.Equal(t, messaging.TopicPurchaseRequest, inst.Step)

	pending := journal.Pending()
	require.Len(t, pending, 1)
	first := pending[0]
	require.Equal(t, sagaID, first.SagaID)
	require.Equal(t, "acc-1", first.Key)

	tx = journal.Begin()
	require.NoError(t, saga.Emit(ctx, tx, codec, first, messaging.TopicPurchaseSuccess, "wallet-1", nil, saga.StatusInProgress, testNow))
	tx.Commit()
	pending = journal.Pending()
	require.Len(t, pending, 2)
	require.Equal(t, sagaID, pending[1].SagaID)
	require.Equal(t, messaging.WorkflowPurchase, pending[1].Workflow)

	tx = journal.Begin()
	require.NoError(t, saga.Conclude(ctx, tx, pending[1], saga.StatusSucceeded, testNow))
	tx.Commit()
	inst, err = journal.Instance(ctx, sagaID)
	require.NoError(t, err)
	require.Equal(t, saga.StatusSucceeded, inst.Status)
	require.Equal(t, messaging.TopicPurchaseSuccess, inst.Step)
	require.Len(t, journal.Pending(), 2)
}

func Test_Seen(t *testing.T) {
	ctx := context.Background()
	journal := saga.NewMemoryJournal()
	logger := logging.Discard()
	env, err := messaging.NewEnvelope(codec, uuid.New(), messaging.WorkflowExchange, messaging.TopicExchangeRequest, "k", nil, testNow)
	require.NoError(t, err)

	tx := journal.Begin()
	seen, err := saga.Seen(ctx, tx, "bank", env, logger)
	require.NoError(t, err)
	require.False(t, seen)
	seen, err = saga.Seen(ctx, tx, "bank", env, logger)
	require.NoError(t, err)
	require.True(t, seen, "same transaction")

	// An uncommitted transaction leaves no trace.
	seen, err = saga.Seen(ctx, journal.Begin(), "bank", env, logger)
	require.NoError(t, err)
	require.False(t, seen)

	tx.Commit()
	seen, err = saga.Seen(ctx, journal.Begin(), "bank", env, logger)
	require.NoError(t, err)
	require.True(t, seen)

	// Another group has its own record.
	seen, err = saga.Seen(ctx, journal.Begin(), "coin", env, logger)
	require.NoError(t, err)
	require.False(t, seen)

	// A re-emission of the same step is a duplicate too.
	again, err := messaging.NewEnvelope(codec, env.SagaID, env.Workflow, env.Topic, "k", nil, testNow)
	require.NoError(t, err)
	require.NotEqual(t, env.ID, again.ID)
	seen, err = saga.Seen(ctx, journal.Begin(), "bank", again, logger)
	require.NoError(t, err)
	require.True(t, seen)
}

func Test_MemoryOutbox(t *testing.T) {
	ctx := context.Background()
	journal := saga.NewMemoryJournal()

	tx := journal.Begin()
	for i := 0; i < 3; i++ {
		_, err := saga.Start(ctx, tx, codec, messaging.WorkflowPurchase, messaging.TopicPurchaseRequest, "k", i, testNow)
		require.NoError(t, err)
	}
	tx.Commit()

	claimed, err := journal.ClaimPending(ctx, testNow, time.Minute, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	require.Zero(t, claimed[0].Attempts)

	// Leased records are not handed out again until the lease runs out.
	claimed, err = journal.ClaimPending(ctx, testNow, time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	claimed, err = journal.ClaimPending(ctx, testNow.Add(2*time.Minute), time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 3)
	require.Zero(t, claimed[0].Attempts, "an expired lease is not a failed publish")

	require.NoError(t, journal.MarkSent(ctx, claimed[0].Envelope.ID))
	require.NoError(t, journal.MarkFailed(ctx, claimed[1].Envelope.ID))
	require.NoError(t, journal.MarkRetry(ctx, claimed[2].Envelope.ID, testNow.Add(time.Hour)))
	require.Len(t, journal.Pending(), 1)

	claimed, err = journal.ClaimPending(ctx, testNow.Add(10*time.Minute), time.Minute, 10)
	require.NoError(t, err)
	require.Empty(t, claimed)

	claimed, err = journal.ClaimPending(ctx, testNow.Add(time.Hour), time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, 1, claimed[0].Attempts)

	require.ErrorIs(t, journal.MarkSent(ctx, uuid.New()), domain.ErrNotFound)
}
