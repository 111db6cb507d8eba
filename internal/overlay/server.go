// Package overlay implements the loopback WebSocket protocol server the
// desktop overlay UI speaks: a newline-framed JSON message stream out
// (role/content/timestamp/toolCalls/attachments) and a small reverse
// channel in (send_to_agent/stop_agent commands).
package overlay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
)

const (
	// DefaultPort is the fixed loopback port the overlay client connects to.
	DefaultPort = 19823

	writeWait  = 10 * time.Second
	pongWait   = 45 * time.Second
	pingPeriod = 30 * time.Second

	sendBuffer = 64
)

// Role mirrors model.Role for the subset the overlay protocol speaks plus
// the protocol-only "status" variant (user-visible error/diagnostic text
// that never enters the LLM conversation).
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleComputer  Role = "computer"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
	RoleStatus    Role = "status"
)

// Frame is one newline-framed JSON object, in either direction.
type Frame struct {
	Role        Role             `json:"role"`
	Content     string           `json:"content"`
	Timestamp   time.Time        `json:"timestamp"`
	ToolCalls   []model.ToolCall `json:"toolCalls,omitempty"`
	Attachments []string         `json:"attachments,omitempty"`
}

// Command is a reverse-channel message from the overlay client.
type Command struct {
	Command string `json:"command"` // "send_to_agent" | "stop_agent"
	Content string `json:"content,omitempty"`
}

// Handlers are the callbacks the agent wires in to react to overlay
// commands. Both may be nil, in which case the command is a no-op.
type Handlers struct {
	// OnSendToAgent is invoked for {command: "send_to_agent", content}.
	OnSendToAgent func(ctx context.Context, content string)
	// OnStopAgent is invoked for {command: "stop_agent"}.
	OnStopAgent func()
}

// Server accepts overlay WebSocket connections on one loopback port and
// fans outbound frames to every connected client. At most one overlay
// client is expected in practice, but the server does not enforce that.
type Server struct {
	addr     string
	handlers Handlers
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[*session]struct{}

	httpServer *http.Server
}

// New returns a Server bound to addr (e.g. "127.0.0.1:19823").
func New(addr string, handlers Handlers, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:     addr,
		handlers: handlers,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sessions: make(map[*session]struct{}),
	}
}

// Start listens and serves in the background until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("overlay: listen %s: %w", s.addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)
	s.httpServer = &http.Server{Handler: mux}

	go func() {
		<-ctx.Done()
		_ = s.httpServer.Close()
	}()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("overlay server stopped", "error", err)
		}
	}()
	return nil
}

// Active reports whether at least one overlay client is connected.
func (s *Server) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions) > 0
}

// Broadcast sends frame to every connected overlay client, best-effort.
// Returns false if no client is connected (the caller's cue to leave the
// corresponding outbound item enqueued for retry).
func (s *Server) Broadcast(frame Frame) bool {
	if frame.Timestamp.IsZero() {
		frame.Timestamp = time.Now()
	}
	data, err := json.Marshal(frame)
	if err != nil {
		s.logger.Error("overlay: marshal frame", "error", err)
		return false
	}
	data = append(data, '\n')

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.sessions) == 0 {
		return false
	}
	sent := false
	for sess := range s.sessions {
		if sess.enqueue(data) {
			sent = true
		}
	}
	return sent
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("overlay: upgrade failed", "error", err)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()
		sess.close()
	}()

	go sess.writeLoop()
	s.readLoop(sess)
}

func (s *Server) readLoop(sess *session) {
	sess.conn.SetReadLimit(1 << 20)
	_ = sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.logger.Warn("overlay: invalid command frame", "error", err)
			continue
		}
		s.dispatch(sess.ctx, cmd)
	}
}

func (s *Server) dispatch(ctx context.Context, cmd Command) {
	switch cmd.Command {
	case "send_to_agent":
		if s.handlers.OnSendToAgent != nil {
			s.handlers.OnSendToAgent(ctx, cmd.Content)
		}
	case "stop_agent":
		if s.handlers.OnStopAgent != nil {
			s.handlers.OnStopAgent()
		}
	default:
		s.logger.Warn("overlay: unknown command", "command", cmd.Command)
	}
}

type session struct {
	conn   *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

func (sess *session) enqueue(data []byte) bool {
	select {
	case sess.send <- data:
		return true
	default:
		return false
	}
}

func (sess *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-sess.ctx.Done():
			return
		case data, ok := <-sess.send:
			if !ok {
				return
			}
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				sess.cancel()
				return
			}
		case <-ticker.C:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sess.cancel()
				return
			}
		}
	}
}

func (sess *session) close() {
	sess.closeOnce.Do(func() {
		sess.cancel()
		close(sess.send)
		_ = sess.conn.Close()
	})
}

// FrameFromMessage converts a core model.Message into the protocol's Frame
// shape, dropping fields the overlay protocol has no use for (images).
func FrameFromMessage(msg model.Message) Frame {
	role := RoleSystem
	switch msg.Role {
	case model.RoleUser:
		role = RoleUser
	case model.RoleAssistant:
		role = RoleAssistant
	case model.RoleComputer:
		role = RoleComputer
	case model.RoleTool:
		role = RoleTool
	case model.RoleSystem:
		role = RoleSystem
	}
	return Frame{
		Role:      role,
		Content:   msg.Content,
		Timestamp: msg.CreatedAt,
		ToolCalls: msg.ToolCalls,
	}
}
