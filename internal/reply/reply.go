// Package reply parses an assistant's raw text for the closed reply-tag
// vocabulary (<chat>, <tui>, <gui>, <mail>, <attachment>) used to address
// outbound channels, as distinct from internal "thought" text.
package reply

import (
	"regexp"
	"strings"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
)

var (
	chatBlockRe   = regexp.MustCompile(`(?s)<chat>(.*?)</chat>`)
	tuiTagRe      = regexp.MustCompile(`(?s)<tui>(.*?)</tui>`)
	guiTagRe      = regexp.MustCompile(`(?s)<gui>(.*?)</gui>`)
	mailTagRe     = regexp.MustCompile(`(?s)<mail>(.*?)</mail>`)
	recipientRe   = regexp.MustCompile(`(?s)<recipient>(.*?)</recipient>`)
	titleRe       = regexp.MustCompile(`(?s)<title>(.*?)</title>`)
	mailContentRe = regexp.MustCompile(`(?s)<content>(.*?)</content>`)
	attachmentRe  = regexp.MustCompile(`(?s)<attachment>(.*?)</attachment>`)
)

// Parsed is the routed result of one assistant reply.
type Parsed struct {
	TUI         string
	GUI         string
	Mail        *model.OutboundMail
	Attachments []string
}

// Parse extracts the first <chat>…</chat> block from raw and routes its
// <tui>/<gui>/<mail> children. Text outside <chat> is internal thought and
// discarded. When multiple <chat> blocks appear, the first one wins. A
// <mail> block missing <recipient> omits the mail target entirely.
// <attachment>path</attachment> entries are collected regardless of where
// they appear in raw, inside or outside <chat>.
func Parse(raw string) Parsed {
	var out Parsed

	for _, m := range attachmentRe.FindAllStringSubmatch(raw, -1) {
		if p := strings.TrimSpace(m[1]); p != "" {
			out.Attachments = append(out.Attachments, p)
		}
	}

	block := chatBlockRe.FindStringSubmatch(raw)
	if block == nil {
		return out
	}
	chat := block[1]

	if m := tuiTagRe.FindStringSubmatch(chat); m != nil {
		out.TUI = strings.TrimSpace(m[1])
	}
	if m := guiTagRe.FindStringSubmatch(chat); m != nil {
		out.GUI = strings.TrimSpace(m[1])
	}
	if m := mailTagRe.FindStringSubmatch(chat); m != nil {
		out.Mail = parseMail(m[1])
	}

	return out
}

func parseMail(block string) *model.OutboundMail {
	rm := recipientRe.FindStringSubmatch(block)
	if rm == nil || strings.TrimSpace(rm[1]) == "" {
		return nil
	}
	mail := &model.OutboundMail{To: strings.TrimSpace(rm[1])}
	if tm := titleRe.FindStringSubmatch(block); tm != nil {
		mail.Subject = strings.TrimSpace(tm[1])
	}
	if cm := mailContentRe.FindStringSubmatch(block); cm != nil {
		mail.Body = strings.TrimSpace(cm[1])
	}
	return mail
}

// WithGUIFallback duplicates a tui-only reply into the gui target when the
// overlay is active, so the overlay also sees it.
func WithGUIFallback(p Parsed, overlayActive bool) Parsed {
	if overlayActive && p.TUI != "" && p.GUI == "" {
		p.GUI = p.TUI
	}
	return p
}
