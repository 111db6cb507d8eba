// Package notify is the thin OS notification watcher shim: it runs a
// platform-specific helper process that streams newline-delimited JSON
// notification events on stdout, rate-limits them, and turns each into an
// inbound queue entry. The helper process itself (macOS Notification
// Center, a Windows toast listener, a Linux D-Bus watcher) is out of
// scope — this package only knows how to invoke it and decode its output,
// the same "subprocess + JSON-over-stdout" shape internal/axbackend uses
// for the accessibility back-end.
package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/queue"
)

// restartDelay is how long the watcher waits before re-launching the
// helper process after it exits or panics.
const restartDelay = 5 * time.Second

// Event is one line of the helper process's stdout protocol.
type Event struct {
	ID        string    `json:"id"`
	AppName   string    `json:"appName"`
	BundleID  string    `json:"bundleId"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Watcher launches BinaryPath as a long-running subprocess and streams its
// stdout into the inbound queue as model.SourceNotification messages,
// restarting the process with a fixed delay whenever it exits.
type Watcher struct {
	BinaryPath string
	Inbound    *queue.Inbound
	Logger     *slog.Logger

	// MinInterval rate-limits how often notifications are accepted from the
	// helper process; events arriving faster than this are dropped. Zero
	// disables rate limiting.
	MinInterval time.Duration

	lastAccepted time.Time
}

// Run launches and supervises the helper process until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if w.BinaryPath == "" {
		logger.Warn("notify: no helper binary configured, watcher disabled")
		return
	}

	for ctx.Err() == nil {
		w.runOnce(ctx, logger)
		select {
		case <-ctx.Done():
			return
		case <-time.After(restartDelay):
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("notify: watcher panicked, restarting", "panic", fmt.Sprint(r))
		}
	}()

	cmd := exec.CommandContext(ctx, w.BinaryPath)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		logger.Error("notify: stdout pipe failed", "error", err)
		return
	}
	if err := cmd.Start(); err != nil {
		logger.Error("notify: start failed", "binary", w.BinaryPath, "error", err)
		return
	}
	defer cmd.Wait()

	w.consumeStream(ctx, stdout, logger)
}

// consumeStream decodes one JSON event per line from r until it's exhausted
// or ctx is cancelled. Split out from runOnce so it can be exercised
// against an in-memory reader without spawning a real subprocess.
func (w *Watcher) consumeStream(ctx context.Context, r io.Reader, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var evt Event
		if err := json.Unmarshal(line, &evt); err != nil {
			logger.Warn("notify: invalid event line", "error", err)
			continue
		}
		w.handle(ctx, evt, logger)
	}
}

func (w *Watcher) handle(ctx context.Context, evt Event, logger *slog.Logger) {
	if w.MinInterval > 0 {
		now := time.Now()
		if !w.lastAccepted.IsZero() && now.Sub(w.lastAccepted) < w.MinInterval {
			return
		}
		w.lastAccepted = now
	}
	if w.Inbound == nil {
		return
	}
	content := fmt.Sprintf("[App: %s] %s\n%s", evt.AppName, evt.Title, evt.Body)
	if _, err := w.Inbound.Push(ctx, model.SourceNotification, content); err != nil {
		logger.Error("notify: push inbound failed", "error", err)
	}
}
