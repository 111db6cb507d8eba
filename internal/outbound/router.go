// Package outbound is the reply router: a durable queue of outbound
// messages, a delivery loop that calls registered per-target deliverers with
// retry, and dead-lettering into the inbound queue when an item exhausts its
// attempts.
package outbound

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/retry"
)

// TUIDeliverer delivers synchronously and is infallible by contract.
type TUIDeliverer func(content string, attachments []string)

// GUIDeliverer returns false when the overlay is not connected; the item
// stays enqueued for a later attempt.
type GUIDeliverer func(content string, attachments []string) bool

// MailDeliverer returns false on SMTP failure.
type MailDeliverer func(to, subject, body string, attachments []string) bool

// DeadLetterSink receives a status message when an outbound item exhausts
// its delivery attempts. queue.Inbound satisfies this.
type DeadLetterSink interface {
	Push(ctx context.Context, source model.InboundSource, content string) (model.QueuedMessage, error)
}

// RouterConfig bounds the retry policy and wires the deliverers.
type RouterConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	PollInterval time.Duration

	TUI  TUIDeliverer
	GUI  GUIDeliverer
	Mail MailDeliverer

	DeadLetter DeadLetterSink
	Logger     *slog.Logger
}

func (c *RouterConfig) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 6
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 2 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Router is the durable outbound queue plus its delivery loop.
type Router struct {
	db  *sql.DB
	cfg RouterConfig
}

// Open opens (creating if needed) the SQLite-backed outbound queue at path
// and binds the deliverers/retry policy in cfg.
func Open(path string, cfg RouterConfig) (*Router, error) {
	cfg.applyDefaults()
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("outbound: open %s: %w", path, err)
	}
	r := &Router{db: db, cfg: cfg}
	if err := r.init(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Router) init() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS outbound_messages (
			id TEXT PRIMARY KEY,
			target TEXT NOT NULL,
			content TEXT NOT NULL,
			mail_json TEXT,
			attachments_json TEXT,
			attempts INTEGER NOT NULL DEFAULT 0,
			next_attempt_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("outbound: create table: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (r *Router) Close() error { return r.db.Close() }

// Push durably enqueues zero or more targets extracted from one reply: tui,
// gui, and mail are independent rows sharing the same attachments, matching
// pushOutbound({tui?, gui?, mail?, attachments?}).
func (r *Router) Push(ctx context.Context, tui, gui string, mail *model.OutboundMail, attachments []string) error {
	now := time.Now()
	if tui != "" {
		if err := r.insert(ctx, model.OutboundMessage{ID: uuid.NewString(), Target: model.TargetTUI, Content: tui, Attachments: attachments, NextAttemptAt: now, CreatedAt: now}); err != nil {
			return err
		}
	}
	if gui != "" {
		if err := r.insert(ctx, model.OutboundMessage{ID: uuid.NewString(), Target: model.TargetGUI, Content: gui, Attachments: attachments, NextAttemptAt: now, CreatedAt: now}); err != nil {
			return err
		}
	}
	if mail != nil && mail.To != "" {
		if err := r.insert(ctx, model.OutboundMessage{ID: uuid.NewString(), Target: model.TargetMail, Mail: mail, Attachments: attachments, NextAttemptAt: now, CreatedAt: now}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) insert(ctx context.Context, m model.OutboundMessage) error {
	var mailJSON, attJSON []byte
	var err error
	if m.Mail != nil {
		mailJSON, err = json.Marshal(m.Mail)
		if err != nil {
			return fmt.Errorf("outbound: marshal mail: %w", err)
		}
	}
	if len(m.Attachments) > 0 {
		attJSON, err = json.Marshal(m.Attachments)
		if err != nil {
			return fmt.Errorf("outbound: marshal attachments: %w", err)
		}
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO outbound_messages (id, target, content, mail_json, attachments_json, attempts, next_attempt_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, string(m.Target), m.Content, nullableString(mailJSON), nullableString(attJSON), m.Attempts, m.NextAttemptAt, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("outbound: insert: %w", err)
	}
	return nil
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// Due returns every queued item whose NextAttemptAt has passed.
func (r *Router) Due(ctx context.Context) ([]model.OutboundMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, target, content, mail_json, attachments_json, attempts, next_attempt_at, created_at
		 FROM outbound_messages WHERE next_attempt_at <= ? ORDER BY created_at ASC`, time.Now())
	if err != nil {
		return nil, fmt.Errorf("outbound: query due: %w", err)
	}
	defer rows.Close()

	var out []model.OutboundMessage
	for rows.Next() {
		var m model.OutboundMessage
		var target string
		var mailJSON, attJSON sql.NullString
		if err := rows.Scan(&m.ID, &target, &m.Content, &mailJSON, &attJSON, &m.Attempts, &m.NextAttemptAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("outbound: scan: %w", err)
		}
		m.Target = model.OutboundTarget(target)
		if mailJSON.Valid {
			var mail model.OutboundMail
			if err := json.Unmarshal([]byte(mailJSON.String), &mail); err == nil {
				m.Mail = &mail
			}
		}
		if attJSON.Valid {
			var atts []string
			if err := json.Unmarshal([]byte(attJSON.String), &atts); err == nil {
				m.Attachments = atts
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Remove deletes a delivered item.
func (r *Router) Remove(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM outbound_messages WHERE id = ?`, id)
	return err
}

// Reschedule bumps attempts and sets the next backoff deadline.
func (r *Router) Reschedule(ctx context.Context, id string, attempts int, next time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbound_messages SET attempts = ?, next_attempt_at = ? WHERE id = ?`, attempts, next, id)
	return err
}

// RunOnce drains all due items and attempts delivery once each, applying
// retry bookkeeping and dead-lettering on final failure. Exported separately
// from Run so tests can drive it deterministically without a poll loop.
func (r *Router) RunOnce(ctx context.Context) {
	due, err := r.Due(ctx)
	if err != nil {
		r.cfg.Logger.Error("outbound: list due failed", "error", err)
		return
	}
	for _, m := range due {
		r.attempt(ctx, m)
	}
}

// Run drains the outbound queue on cfg.PollInterval until ctx is cancelled.
func (r *Router) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

func (r *Router) attempt(ctx context.Context, m model.OutboundMessage) {
	ok := r.deliver(m)
	envelope := OutboundResultEnvelope{ID: m.ID, Via: deliveryViaFor(m.Target), Delivered: ok, Attempts: m.Attempts + 1, Content: m.Content}
	r.cfg.Logger.Debug("outbound: delivery attempt", "summary", envelope.Summary())

	if ok {
		if err := r.Remove(ctx, m.ID); err != nil {
			r.cfg.Logger.Error("outbound: remove delivered item failed", "id", m.ID, "error", err)
		}
		return
	}

	if envelope.Attempts >= r.cfg.MaxAttempts {
		r.deadLetter(ctx, envelope)
		if err := r.Remove(ctx, m.ID); err != nil {
			r.cfg.Logger.Error("outbound: remove dead-lettered item failed", "id", m.ID, "error", err)
		}
		return
	}

	delay := retry.NextDelay(envelope.Attempts, retry.Exponential(r.cfg.MaxAttempts, r.cfg.InitialDelay, r.cfg.MaxDelay))
	if err := r.Reschedule(ctx, m.ID, envelope.Attempts, time.Now().Add(delay)); err != nil {
		r.cfg.Logger.Error("outbound: reschedule failed", "id", m.ID, "error", err)
	}
}

func (r *Router) deliver(m model.OutboundMessage) bool {
	switch m.Target {
	case model.TargetTUI:
		if r.cfg.TUI == nil {
			return false
		}
		r.cfg.TUI(m.Content, m.Attachments)
		return true
	case model.TargetGUI:
		if r.cfg.GUI == nil {
			return false
		}
		return r.cfg.GUI(m.Content, m.Attachments)
	case model.TargetMail:
		if r.cfg.Mail == nil || m.Mail == nil {
			return false
		}
		return r.cfg.Mail(m.Mail.To, m.Mail.Subject, m.Mail.Body, m.Attachments)
	default:
		return false
	}
}

func (r *Router) deadLetter(ctx context.Context, envelope OutboundResultEnvelope) {
	if r.cfg.DeadLetter == nil {
		return
	}
	content := "delivery failed: " + envelope.Summary()
	if _, err := r.cfg.DeadLetter.Push(ctx, model.SourceNotification, content); err != nil {
		r.cfg.Logger.Error("outbound: dead-letter push failed", "id", envelope.ID, "error", err)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
