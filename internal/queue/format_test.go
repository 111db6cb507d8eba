package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
)

func TestFormatPendingAsChatEmptyYieldsEmptyString(t *testing.T) {
	assert.Equal(t, "", FormatPendingAsChat(nil))
}

func TestFormatPendingAsChatGroupsBySource(t *testing.T) {
	pending := []model.QueuedMessage{
		{Source: model.SourceMail, Content: "mail one"},
		{Source: model.SourceTUI, Content: "tui one"},
		{Source: model.SourceTUI, Content: "tui two"},
	}
	out := FormatPendingAsChat(pending)
	assert.Contains(t, out, "<chat>")
	assert.Contains(t, out, "</chat>")
	assert.Contains(t, out, "<tui>")
	assert.Contains(t, out, "tui one")
	assert.Contains(t, out, "tui two")
	assert.Contains(t, out, "<mail>")
	assert.Contains(t, out, "mail one")
	assert.Less(t, indexOf(out, "<tui>"), indexOf(out, "<mail>"), "tui group must precede mail group")
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
