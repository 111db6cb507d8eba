// Package prompt renders the system and computer-feedback templates the
// agent core composes, substituting {{.name}} fields via text/template.
// Bare {{name}} placeholders are not recognised: text/template parses them
// as function calls.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Renderer parses and executes a template string against a variable map.
// It is the same text/template wrapper shape used elsewhere for variable
// substitution, trimmed to the subset this module needs: no custom
// delimiters or missing-key-error mode, since every template here is
// authored in-repo rather than user-supplied.
type Renderer struct {
	funcs template.FuncMap
}

// NewRenderer returns a Renderer with a small set of formatting helpers
// available to templates (bullet lists, indentation).
func NewRenderer() *Renderer {
	return &Renderer{funcs: defaultFuncMap()}
}

// Render executes tmplStr against vars and returns the result.
func (r *Renderer) Render(tmplStr string, vars map[string]any) (string, error) {
	if tmplStr == "" {
		return "", nil
	}
	t, err := template.New("prompt").Funcs(r.funcs).Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("prompt: parse: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("prompt: execute: %w", err)
	}
	return buf.String(), nil
}

func defaultFuncMap() template.FuncMap {
	return template.FuncMap{
		"bullet": func(items []string) string {
			lines := make([]string, len(items))
			for i, it := range items {
				lines[i] = "- " + it
			}
			return strings.Join(lines, "\n")
		},
		"indent": func(spaces int, s string) string {
			pad := strings.Repeat(" ", spaces)
			lines := strings.Split(s, "\n")
			for i, line := range lines {
				if line != "" {
					lines[i] = pad + line
				}
			}
			return strings.Join(lines, "\n")
		},
	}
}

// SystemTemplate is the default system prompt, carrying the {{.TOOLS}} and
// {{.PLATFORM}} fields the core fills in for the conversation's system message.
const SystemTemplate = `You are a desktop automation agent. You observe the screen and accessibility
state, then act through the tools below to accomplish the user's task.

Platform: {{.PLATFORM}}

Available tools:
{{.TOOLS}}

Address the user through <chat><tui>…</tui><gui>…</gui><mail>…</mail></chat>
tags; anything outside <chat> is your own reasoning and is never delivered.`

// ComputerTemplate is the default per-step observation template, filled with
// the task, TODO summary, recent step history, and current screen status.
const ComputerTemplate = `## Task
{{.task}}

## TODO
{{.todoSummary}}

## Recent steps
{{.recentSteps}}

## Screen status
{{.screenStatus}}`
