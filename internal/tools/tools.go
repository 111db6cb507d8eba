// Package tools implements the concrete tool executors registered into the
// agent's tool registry: screen/pointer/keyboard primitives, accessibility
// search, task and TODO bookkeeping, and a small set of file/shell tools.
// Every executor here satisfies registry.Executor and is effectful by
// design — it shells out, touches the mouse, or touches the filesystem.
package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/axbackend"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/platform"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/registry"
)

// Deps wires the executors to their collaborators. AX may be nil, in which
// case find_element/locate return a failed result saying the back-end is
// unavailable.
type Deps struct {
	Driver   platform.Driver
	AX       *axbackend.Client
	TodoPath string // markdown TODO file, e.g. data/TODOLIST.md
}

func toolError(format string, args ...any) model.ToolResult {
	return model.ToolResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

func toolOK(message string, data map[string]any) model.ToolResult {
	return model.ToolResult{Success: true, Message: message, Data: data}
}

// obj is shorthand for a JSON-schema object node.
func obj(props map[string]any, required ...string) map[string]any {
	m := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		m["required"] = required
	}
	return m
}

func numberArray(desc string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "number"},
		"description": desc,
	}
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func integer(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

func boolean(desc string) map[string]any {
	return map[string]any{"type": "boolean", "description": desc}
}

func coordinateArg(args map[string]any) (x, y int, err error) {
	raw, ok := args["coordinate"].([]any)
	if !ok || len(raw) != 2 {
		return 0, 0, fmt.Errorf("coordinate must be a [x, y] pair")
	}
	xf, ok1 := raw[0].(float64)
	yf, ok2 := raw[1].(float64)
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("coordinate values must be numbers")
	}
	return int(xf), int(yf), nil
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func marshalData(v any) map[string]any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	return m
}

func screenshotFilename(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("screenshot directory not configured")
	}
	day := filepath.Join(dir, time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(day, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(day, fmt.Sprintf("%d.png", time.Now().UnixMilli())), nil
}

// Register adds every tool this package implements to reg.
func Register(reg *registry.Registry, deps Deps) {
	registerComputerTools(reg, deps)
	registerTaskTools(reg, deps)
	registerFileTools(reg)
	registerExecTools(reg)
}
