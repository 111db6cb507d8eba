package queue

import (
	"fmt"
	"strings"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
)

// sourceOrder fixes the grouping order for FormatPendingAsChat; the queue
// itself is FIFO and unaware of source priority.
var sourceOrder = []model.InboundSource{
	model.SourceTUI,
	model.SourceGUI,
	model.SourceMail,
	model.SourceNotification,
	model.SourceTerminal,
}

// FormatPendingAsChat renders pending inbound messages into the <chat> block
// the core injects as a single user message, grouped by source in a fixed
// order, each source's own messages kept in their original FIFO order.
func FormatPendingAsChat(pending []model.QueuedMessage) string {
	if len(pending) == 0 {
		return ""
	}

	bySource := make(map[model.InboundSource][]model.QueuedMessage)
	for _, m := range pending {
		bySource[m.Source] = append(bySource[m.Source], m)
	}

	var b strings.Builder
	b.WriteString("<chat>\n")
	for _, source := range sourceOrder {
		msgs := bySource[source]
		if len(msgs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "  <%s>\n", source)
		for _, m := range msgs {
			fmt.Fprintf(&b, "    %s\n", m.Content)
		}
		fmt.Fprintf(&b, "  </%s>\n", source)
	}
	b.WriteString("</chat>")
	return b.String()
}
