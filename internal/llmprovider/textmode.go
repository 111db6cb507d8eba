package llmprovider

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
)

var (
	thoughtTagRe = regexp.MustCompile(`(?is)<Thought>(.*?)</Thought>`)
	actionTagRe  = regexp.MustCompile(`(?is)<Action>(.*?)</Action>`)
)

// textAction is the JSON shape a text-mode action entry carries: a tool name
// plus its arguments, one entry per tool call.
type textAction struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// ParseTextToolCalls implements the text tool-call mode: it
// looks for an <Action> block (falling back to a bare JSON array anywhere in
// the reply), strips // and # comments without touching comment-like
// sequences inside quoted strings, and decodes a JSON array of
// {tool, arguments} entries into ToolCalls. The <Thought> block, if present,
// is stripped from Content along with the <Action> block itself; the
// remainder of the text becomes the reply's Content.
//
// On malformed JSON it returns a ParseError carrying the raw action payload
// and an empty ToolCalls slice, per the spec's parseError contract.
func ParseTextToolCalls(reply string) (content string, calls []model.ToolCall, parseErr *ParseError) {
	content = reply

	var actionBody string
	hasAction := false
	if m := actionTagRe.FindStringSubmatchIndex(reply); m != nil {
		actionBody = reply[m[2]:m[3]]
		hasAction = true
		content = reply[:m[0]] + reply[m[1]:]
	}

	content = thoughtTagRe.ReplaceAllString(content, "")
	content = strings.TrimSpace(content)

	if !hasAction {
		actionBody = findBareJSONArray(reply)
		if actionBody == "" {
			return content, nil, nil
		}
	}

	stripped := stripComments(actionBody)

	var actions []textAction
	if err := json.Unmarshal([]byte(stripped), &actions); err != nil {
		return content, nil, &ParseError{
			Message: fmt.Sprintf("malformed tool-call JSON: %v", err),
			Raw:     actionBody,
		}
	}

	calls = make([]model.ToolCall, 0, len(actions))
	for _, a := range actions {
		args := a.Arguments
		if args == nil {
			args = map[string]any{}
		}
		calls = append(calls, model.ToolCall{
			ID:        uuid.NewString(),
			Name:      a.Tool,
			Arguments: args,
		})
	}
	return content, calls, nil
}

// findBareJSONArray looks for the first top-level '[' ... ']' span in s,
// balancing brackets while respecting quoted strings, and returns it raw.
// Returns "" if no balanced array is found.
func findBareJSONArray(s string) string {
	start := strings.IndexByte(s, '[')
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// stripComments removes // and # line comments from s, leaving comment-like
// sequences inside double-quoted strings untouched.
func stripComments(s string) string {
	var out strings.Builder
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			out.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
			out.WriteByte(c)
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				out.WriteByte('\n')
			}
		case c == '#':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				out.WriteByte('\n')
			}
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}
