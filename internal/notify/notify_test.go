package notify

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/queue"
)

func openTestInbound(t *testing.T) *queue.Inbound {
	t.Helper()
	q, err := queue.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func TestConsumeStreamDecodesEachLine(t *testing.T) {
	inbound := openTestInbound(t)
	w := &Watcher{Inbound: inbound}

	lines := `{"id":"1","appName":"Slack","title":"New message","body":"hi there"}
{"id":"2","appName":"Mail","title":"Invoice","body":"due tomorrow"}
`
	w.consumeStream(context.Background(), strings.NewReader(lines), slog.Default())

	pending, err := inbound.GetPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Contains(t, pending[0].Content, "Slack")
	assert.Contains(t, pending[1].Content, "Invoice")
}

func TestConsumeStreamSkipsInvalidLines(t *testing.T) {
	inbound := openTestInbound(t)
	w := &Watcher{Inbound: inbound}

	lines := "not json\n{\"id\":\"1\",\"appName\":\"X\",\"title\":\"ok\",\"body\":\"b\"}\n"
	w.consumeStream(context.Background(), strings.NewReader(lines), slog.Default())

	pending, err := inbound.GetPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestHandleRateLimitsBurstyEvents(t *testing.T) {
	inbound := openTestInbound(t)
	w := &Watcher{Inbound: inbound, MinInterval: time.Hour}

	w.handle(context.Background(), Event{AppName: "A", Title: "one"}, slog.Default())
	w.handle(context.Background(), Event{AppName: "A", Title: "two"}, slog.Default())

	pending, err := inbound.GetPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Contains(t, pending[0].Content, "one")
}

func TestHandleWithoutRateLimitAcceptsEveryEvent(t *testing.T) {
	inbound := openTestInbound(t)
	w := &Watcher{Inbound: inbound}

	w.handle(context.Background(), Event{AppName: "A", Title: "one"}, slog.Default())
	w.handle(context.Background(), Event{AppName: "A", Title: "two"}, slog.Default())

	pending, err := inbound.GetPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 2)
}

func TestHandleWithoutInboundIsNoop(t *testing.T) {
	w := &Watcher{}
	w.handle(context.Background(), Event{AppName: "A", Title: "one"}, slog.Default())
}

func TestRunWithoutBinaryPathReturnsImmediately(t *testing.T) {
	w := &Watcher{}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	w.Run(ctx) // should return immediately rather than looping until ctx expires
}
