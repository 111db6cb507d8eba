package reply

import (
	"regexp"
	"strings"
)

// SilentReplyToken lets the model mark a <tui>/<gui> reply as produced but
// intentionally not worth delivering — e.g. an acknowledgement the user
// already saw play out on screen. It must appear at the very start or end
// of the text, not buried mid-sentence.
const SilentReplyToken = "NO_REPLY"

var regexSpecialChars = regexp.MustCompile(`[.*+?^${}()|[\]\\]`)

func escapeRegex(value string) string {
	return regexSpecialChars.ReplaceAllString(value, `\$0`)
}

// IsSilentReplyText reports whether text opens or closes with the silent
// reply token.
func IsSilentReplyText(text string) bool {
	if text == "" {
		return false
	}
	escaped := escapeRegex(SilentReplyToken)

	prefix := regexp.MustCompile(`^\s*` + escaped + `(?:$|\W)`)
	if prefix.MatchString(text) {
		return true
	}
	suffix := regexp.MustCompile(`\b` + escaped + `\b\W*$`)
	return suffix.MatchString(text)
}

// StripSilentToken removes the silent reply token from the start and end of
// text, trimming the whitespace it leaves behind.
func StripSilentToken(text string) string {
	if text == "" {
		return text
	}
	escaped := escapeRegex(SilentReplyToken)

	prefix := regexp.MustCompile(`^\s*` + escaped + `\b\s*`)
	text = prefix.ReplaceAllString(text, "")

	suffix := regexp.MustCompile(`\s*\b` + escaped + `\b\W*$`)
	text = suffix.ReplaceAllString(text, "")

	return strings.TrimSpace(text)
}

// NormalizeSilent strips a silent reply token from content and reports
// whether doing so leaves nothing worth delivering.
func NormalizeSilent(content string) (out string, silent bool) {
	if !IsSilentReplyText(content) {
		return content, false
	}
	content = StripSilentToken(content)
	return content, strings.TrimSpace(content) == ""
}
