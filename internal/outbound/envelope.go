package outbound

import (
	"fmt"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
)

// DeliveryVia names the channel an outbound message actually went out on.
type DeliveryVia string

const (
	DeliveryViaTUI  DeliveryVia = "tui"
	DeliveryViaGUI  DeliveryVia = "gui"
	DeliveryViaMail DeliveryVia = "mail"
)

func deliveryViaFor(target model.OutboundTarget) DeliveryVia {
	switch target {
	case model.TargetGUI:
		return DeliveryViaGUI
	case model.TargetMail:
		return DeliveryViaMail
	default:
		return DeliveryViaTUI
	}
}

// OutboundResultEnvelope summarizes one delivery attempt: what it was, which
// channel carried it, and whether it landed. Router uses it to render the
// dead-letter message and a delivery log line from the same data.
type OutboundResultEnvelope struct {
	ID        string
	Via       DeliveryVia
	Delivered bool
	Attempts  int
	Content   string
}

// Summary renders the envelope as one line, e.g. "delivered via tui (attempt 1): pong".
func (e OutboundResultEnvelope) Summary() string {
	status := "delivered"
	if !e.Delivered {
		status = "failed"
	}
	return fmt.Sprintf("%s via %s (attempt %d): %s", status, e.Via, e.Attempts, truncate(e.Content, 200))
}
