package mail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/queue"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/retry"
)

// fetchRetry governs in-process retries of one FetchNew call, riding out a
// transient IMAP hiccup without waiting for the next whole poll cycle.
var fetchRetry = retry.Exponential(3, 200*time.Millisecond, 2*time.Second)

// restartDelay is how long the watcher waits before restarting its poll
// loop after a panic, so a flaky Receiver can't spin the process.
const restartDelay = 5 * time.Second

// DefaultPollSchedule polls every 30 seconds; any cron/v3 descriptor or
// standard 5-field expression is accepted.
const DefaultPollSchedule = "@every 30s"

var pollScheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Watcher polls a Receiver on a schedule, turns unseen messages into
// inbound queue entries tagged model.SourceMail, and persists which UIDs
// it has already delivered.
type Watcher struct {
	Receiver Receiver
	Inbound  *queue.Inbound
	UIDs     *UIDStore
	Schedule string
	Logger   *slog.Logger
}

// Run polls until ctx is cancelled, restarting the poll loop with a fixed
// delay if it panics.
func (w *Watcher) Run(ctx context.Context) {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	schedule := w.Schedule
	if schedule == "" {
		schedule = DefaultPollSchedule
	}
	sched, err := pollScheduleParser.Parse(schedule)
	if err != nil {
		logger.Error("mail: invalid poll schedule, falling back to default", "schedule", schedule, "error", err)
		sched, _ = pollScheduleParser.Parse(DefaultPollSchedule)
	}

	for {
		if ctx.Err() != nil {
			return
		}
		w.runOnce(ctx, sched, logger)
		select {
		case <-ctx.Done():
			return
		case <-time.After(restartDelay):
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context, sched cron.Schedule, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("mail: watcher panicked, restarting", "panic", fmt.Sprint(r))
		}
	}()

	next := sched.Next(time.Now())
	for {
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		w.poll(ctx, logger)
		next = sched.Next(time.Now())
	}
}

func (w *Watcher) poll(ctx context.Context, logger *slog.Logger) {
	if w.Receiver == nil {
		return
	}
	var msgs []Message
	result := retry.Do(ctx, fetchRetry, func() error {
		var err error
		msgs, err = w.Receiver.FetchNew(ctx)
		return err
	})
	if result.Err != nil {
		logger.Warn("mail: fetch failed", "error", result.Err, "attempts", result.Attempts)
		return
	}

	delivered := 0
	for _, msg := range msgs {
		if w.UIDs != nil && w.UIDs.Seen(msg.UID) {
			continue
		}
		if w.Inbound != nil {
			content := fmt.Sprintf("From: %s\nSubject: %s\n\n%s", msg.From, msg.Subject, msg.Body)
			if _, err := w.Inbound.Push(ctx, model.SourceMail, content); err != nil {
				logger.Error("mail: push inbound failed", "error", err)
				continue
			}
		}
		if w.UIDs != nil {
			w.UIDs.Record(msg.UID)
		}
		delivered++
	}
	if delivered > 0 && w.UIDs != nil {
		if err := w.UIDs.Save(time.Now()); err != nil {
			logger.Error("mail: save UID store failed", "error", err)
		}
	}
}
