// Package mail is the thin mail channel shim: interfaces for receiving and
// sending, a UID-tracked poll watcher that turns new messages into inbound
// queue entries, and a seen-UID file so a restart doesn't replay mail
// already delivered to the agent. Concrete IMAP/SMTP protocol handling is
// deliberately out of scope — Receiver/Sender are satisfied by whatever
// mail library or service a deployment wires in.
package mail

import "context"

// Message is one new mail item a Receiver reports.
type Message struct {
	UID     string
	From    string
	Subject string
	Body    string
}

// Receiver fetches mail that has arrived since the last poll. Implementations
// are expected to be idempotent with respect to UID: FetchNew may return
// messages already seen, and the Watcher is responsible for filtering.
type Receiver interface {
	FetchNew(ctx context.Context) ([]Message, error)
}

// Sender delivers one outbound mail message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string, attachments []string) error
}

// Deliverer adapts a Sender to the internal/outbound.MailDeliverer function
// signature: send synchronously, report success as a bool instead of an
// error.
func Deliverer(sender Sender) func(to, subject, body string, attachments []string) bool {
	return func(to, subject, body string, attachments []string) bool {
		if sender == nil {
			return false
		}
		err := sender.Send(context.Background(), to, subject, body, attachments)
		return err == nil
	}
}
