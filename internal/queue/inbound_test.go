package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
)

func openTestQueue(t *testing.T) *Inbound {
	t.Helper()
	q, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func TestPushAndGetPendingIsFIFO(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)

	_, err := q.Push(ctx, model.SourceTUI, "first")
	require.NoError(t, err)
	_, err = q.Push(ctx, model.SourceMail, "second")
	require.NoError(t, err)

	pending, err := q.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "first", pending[0].Content)
	assert.Equal(t, "second", pending[1].Content)
}

func TestMarkProcessingRemovesFromPending(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)

	msg, err := q.Push(ctx, model.SourceTUI, "hello")
	require.NoError(t, err)

	require.NoError(t, q.MarkProcessing(ctx, []string{msg.ID}))
	pending, err := q.GetPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestResetProcessingRecoversAfterCrash(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)

	msg, err := q.Push(ctx, model.SourceTUI, "hello")
	require.NoError(t, err)
	require.NoError(t, q.MarkProcessing(ctx, []string{msg.ID}))

	require.NoError(t, q.ResetProcessing(ctx))
	pending, err := q.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, msg.ID, pending[0].ID)
}

func TestConsumeAllDeletesMessages(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)

	msg, err := q.Push(ctx, model.SourceTUI, "hello")
	require.NoError(t, err)
	require.NoError(t, q.MarkProcessing(ctx, []string{msg.ID}))
	require.NoError(t, q.ConsumeAll(ctx, []string{msg.ID}))

	require.NoError(t, q.ResetProcessing(ctx))
	pending, err := q.GetPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestClearPendingPurgesEverything(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)

	_, err := q.Push(ctx, model.SourceTUI, "a")
	require.NoError(t, err)
	_, err = q.Push(ctx, model.SourceGUI, "b")
	require.NoError(t, err)

	require.NoError(t, q.ClearPending(ctx))
	pending, err := q.GetPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
