// Package queue implements the durable inbound message queue described in
// push/getPending/markProcessing/consumeAll/resetProcessing/
// clearPending, FIFO across sources, backed by SQLite so a restart can
// recover pending and in-flight messages.
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
)

// Inbound is the durable FIFO queue of messages awaiting a step.
type Inbound struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite-backed inbound queue at path.
// Use ":memory:" for an ephemeral queue in tests.
func Open(path string) (*Inbound, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("queue: open %s: %w", path, err)
	}
	q := &Inbound{db: db}
	if err := q.init(); err != nil {
		db.Close()
		return nil, err
	}
	return q, nil
}

func (q *Inbound) init() error {
	_, err := q.db.Exec(`
		CREATE TABLE IF NOT EXISTS inbound_messages (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			content TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			seq INTEGER
		)
	`)
	if err != nil {
		return fmt.Errorf("queue: create table: %w", err)
	}
	_, err = q.db.Exec(`CREATE INDEX IF NOT EXISTS idx_inbound_state_seq ON inbound_messages(state, seq)`)
	if err != nil {
		return fmt.Errorf("queue: create index: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (q *Inbound) Close() error { return q.db.Close() }

// Push durably enqueues a new pending message and returns it.
func (q *Inbound) Push(ctx context.Context, source model.InboundSource, content string) (model.QueuedMessage, error) {
	msg := model.QueuedMessage{
		ID:        uuid.NewString(),
		Source:    source,
		Content:   content,
		State:     model.StatePending,
		Timestamp: time.Now(),
	}
	var seq int64
	err := q.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM inbound_messages`).Scan(&seq)
	if err != nil {
		return model.QueuedMessage{}, fmt.Errorf("queue: next seq: %w", err)
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO inbound_messages (id, source, content, state, created_at, seq) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, string(msg.Source), msg.Content, string(msg.State), msg.Timestamp, seq)
	if err != nil {
		return model.QueuedMessage{}, fmt.Errorf("queue: insert: %w", err)
	}
	return msg, nil
}

// GetPending returns all pending messages in FIFO order, global across sources.
func (q *Inbound) GetPending(ctx context.Context) ([]model.QueuedMessage, error) {
	return q.listByState(ctx, model.StatePending)
}

func (q *Inbound) listByState(ctx context.Context, state model.QueuedState) ([]model.QueuedMessage, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, source, content, state, created_at FROM inbound_messages WHERE state = ? ORDER BY seq ASC`,
		string(state))
	if err != nil {
		return nil, fmt.Errorf("queue: query %s: %w", state, err)
	}
	defer rows.Close()

	var out []model.QueuedMessage
	for rows.Next() {
		var m model.QueuedMessage
		var source, msgState string
		if err := rows.Scan(&m.ID, &source, &m.Content, &msgState, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("queue: scan: %w", err)
		}
		m.Source = model.InboundSource(source)
		m.State = model.QueuedState(msgState)
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkProcessing transitions the given message ids from pending to processing.
func (q *Inbound) MarkProcessing(ctx context.Context, ids []string) error {
	return q.setState(ctx, ids, model.StateProcessing)
}

// ConsumeAll removes the given message ids, their processing complete.
func (q *Inbound) ConsumeAll(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := q.db.ExecContext(ctx, `DELETE FROM inbound_messages WHERE id = ?`, id); err != nil {
			return fmt.Errorf("queue: delete %s: %w", id, err)
		}
	}
	return nil
}

// ResetProcessing moves every processing message back to pending. Called
// once at startup to recover from a crash mid-drain.
func (q *Inbound) ResetProcessing(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE inbound_messages SET state = ? WHERE state = ?`,
		string(model.StatePending), string(model.StateProcessing))
	if err != nil {
		return fmt.Errorf("queue: reset processing: %w", err)
	}
	return nil
}

// ClearPending purges every queued message, regardless of state (CLI --clear).
func (q *Inbound) ClearPending(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM inbound_messages`)
	if err != nil {
		return fmt.Errorf("queue: clear: %w", err)
	}
	return nil
}

func (q *Inbound) setState(ctx context.Context, ids []string, state model.QueuedState) error {
	for _, id := range ids {
		if _, err := q.db.ExecContext(ctx, `UPDATE inbound_messages SET state = ? WHERE id = ?`, string(state), id); err != nil {
			return fmt.Errorf("queue: set state %s on %s: %w", state, id, err)
		}
	}
	return nil
}
