package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/registry"
)

func registerTaskTools(reg *registry.Registry, deps Deps) {
	reg.Register(registry.Definition{
		Name:        "task",
		Description: "Set or clear the current task string shown in future prompts.",
		Parameters: obj(map[string]any{
			"content": str("the task description, or empty to clear"),
		}),
	}, taskExecutor())

	reg.Register(registry.Definition{
		Name:        "todo_write",
		Description: "Replace the persisted TODO list with the given items.",
		Parameters: obj(map[string]any{
			"items": map[string]any{
				"type": "array",
				"items": obj(map[string]any{
					"text": str("item description"),
					"done": boolean("whether this item is complete"),
				}, "text"),
				"description": "ordered TODO items",
			},
		}, "items"),
	}, todoWriteExecutor(deps))

	reg.Register(registry.Definition{
		Name:        "todo_read",
		Description: "Read the persisted TODO list.",
		Parameters:  obj(nil),
	}, todoReadExecutor(deps))

	reg.Register(registry.Definition{
		Name:        "finished",
		Description: "Signal that the current task is complete and the agent should stop acting autonomously.",
		Parameters:  obj(map[string]any{"summary": str("short completion summary")}),
	}, finishedExecutor())

	reg.Register(registry.Definition{
		Name:        "call_user",
		Description: "Signal that the agent needs human input before it can continue.",
		Parameters:  obj(map[string]any{"reason": str("why input is needed")}),
	}, callUserExecutor())
}

func taskExecutor() registry.Executor {
	return func(ctx context.Context, args map[string]any, ec registry.ExecContext) model.ToolResult {
		content, _ := stringArg(args, "content")
		if content == "" {
			return toolOK("task cleared", map[string]any{"taskSet": true, "taskContent": ""})
		}
		return toolOK(fmt.Sprintf("task set: %s", content), map[string]any{"taskSet": true, "taskContent": content})
	}
}

type todoItem struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

func todoWriteExecutor(deps Deps) registry.Executor {
	return func(ctx context.Context, args map[string]any, ec registry.ExecContext) model.ToolResult {
		raw, ok := args["items"].([]any)
		if !ok {
			return toolError("items is required")
		}
		items := make([]todoItem, 0, len(raw))
		for _, r := range raw {
			m, ok := r.(map[string]any)
			if !ok {
				continue
			}
			text, _ := m["text"].(string)
			done, _ := m["done"].(bool)
			items = append(items, todoItem{Text: text, Done: done})
		}

		summary := formatTodoSummary(items)
		if deps.TodoPath != "" {
			if err := writeTodoFile(deps.TodoPath, items); err != nil {
				return toolError("todo_write: %v", err)
			}
		}
		return toolOK("todo list updated", map[string]any{"summary": summary})
	}
}

func todoReadExecutor(deps Deps) registry.Executor {
	return func(ctx context.Context, args map[string]any, ec registry.ExecContext) model.ToolResult {
		if deps.TodoPath == "" {
			return toolOK("(no TODO list persisted)", map[string]any{"summary": ""})
		}
		data, err := os.ReadFile(deps.TodoPath)
		if err != nil {
			if os.IsNotExist(err) {
				return toolOK("(no TODO list yet)", map[string]any{"summary": ""})
			}
			return toolError("todo_read: %v", err)
		}
		return toolOK(string(data), map[string]any{"summary": string(data)})
	}
}

func formatTodoSummary(items []todoItem) string {
	if len(items) == 0 {
		return "(empty)"
	}
	var b strings.Builder
	for i, it := range items {
		mark := " "
		if it.Done {
			mark = "x"
		}
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, mark, it.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeTodoFile(path string, items []todoItem) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("# TODO\n\n")
	for _, it := range items {
		box := "[ ]"
		if it.Done {
			box = "[x]"
		}
		fmt.Fprintf(&b, "- %s %s\n", box, it.Text)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func finishedExecutor() registry.Executor {
	return func(ctx context.Context, args map[string]any, ec registry.ExecContext) model.ToolResult {
		summary, _ := stringArg(args, "summary")
		return toolOK(summary, map[string]any{"finished": true})
	}
}

func callUserExecutor() registry.Executor {
	return func(ctx context.Context, args map[string]any, ec registry.ExecContext) model.ToolResult {
		reason, _ := stringArg(args, "reason")
		return toolOK(reason, map[string]any{"needUserInput": true})
	}
}
