package overlay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
)

func newTestServer(t *testing.T, handlers Handlers) (*Server, *httptest.Server, *websocket.Conn) {
	t.Helper()
	s := New("", handlers, nil)
	ts := httptest.NewServer(http.HandlerFunc(s.handleWS))
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Give the server a moment to register the session.
	require.Eventually(t, func() bool { return s.Active() }, time.Second, 5*time.Millisecond)
	return s, ts, conn
}

func TestActiveReflectsConnectedClients(t *testing.T) {
	s, _, conn := newTestServer(t, Handlers{})
	assert.True(t, s.Active())

	conn.Close()
	require.Eventually(t, func() bool { return !s.Active() }, time.Second, 5*time.Millisecond)
}

func TestBroadcastDeliversFrameToClient(t *testing.T) {
	s, _, conn := newTestServer(t, Handlers{})

	ok := s.Broadcast(Frame{Role: RoleAssistant, Content: "hello overlay"})
	assert.True(t, ok)

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello overlay")
	assert.Contains(t, string(data), `"role":"assistant"`)
}

func TestBroadcastWithNoClientsReturnsFalse(t *testing.T) {
	s := New("", Handlers{}, nil)
	ok := s.Broadcast(Frame{Role: RoleStatus, Content: "nobody listening"})
	assert.False(t, ok)
}

func TestSendToAgentCommandInvokesHandler(t *testing.T) {
	var mu sync.Mutex
	var received string
	done := make(chan struct{})

	handlers := Handlers{
		OnSendToAgent: func(ctx context.Context, content string) {
			mu.Lock()
			received = content
			mu.Unlock()
			close(done)
		},
	}
	_, _, conn := newTestServer(t, handlers)

	require.NoError(t, conn.WriteJSON(Command{Command: "send_to_agent", Content: "open the browser"}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked in time")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "open the browser", received)
}

func TestStopAgentCommandInvokesHandler(t *testing.T) {
	called := make(chan struct{})
	handlers := Handlers{OnStopAgent: func() { close(called) }}
	_, _, conn := newTestServer(t, handlers)

	require.NoError(t, conn.WriteJSON(Command{Command: "stop_agent"}))

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked in time")
	}
}

func TestFrameFromMessageMapsRoles(t *testing.T) {
	now := time.Now()
	frame := FrameFromMessage(model.Message{Role: model.RoleComputer, Content: "screenshot taken", CreatedAt: now})
	assert.Equal(t, RoleComputer, frame.Role)
	assert.Equal(t, "screenshot taken", frame.Content)
	assert.Equal(t, now, frame.Timestamp)
}
