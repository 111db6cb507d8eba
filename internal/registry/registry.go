// Package registry implements the tool registry: a name-to-executor map
// with a panic-safe execution boundary shared by every tool the agent core
// dispatches.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
)

// ExecContext is the shared context passed to every tool executor.
type ExecContext struct {
	ScreenWidth   int
	ScreenHeight  int
	ScreenshotDir string
	Workspace     string
	StepCount     int
}

// Executor runs one tool call and produces a ToolResult. Implementations
// are effectful: they may spawn subprocesses, drive the mouse, capture the
// screen, touch the filesystem, and so on.
type Executor func(ctx context.Context, args map[string]any, ec ExecContext) model.ToolResult

// Definition is the LLM-facing shape of one registered tool.
type Definition struct {
	Name        string
	Description string
	// Parameters is a JSON-schema-like tree: {"type":"object","properties":{...},"required":[...]}.
	Parameters map[string]any
}

type entry struct {
	def    Definition
	run    Executor
	schema *jsonschema.Schema // nil if Parameters failed to compile; validation is skipped
}

// compileSchema turns a Definition's JSON-schema-literal Parameters tree
// into a *jsonschema.Schema, compiled once at registration and cached on the
// entry. It returns nil when the tree is empty or fails to compile.
func compileSchema(name string, parameters map[string]any) *jsonschema.Schema {
	if len(parameters) == 0 {
		return nil
	}
	raw, err := json.Marshal(parameters)
	if err != nil {
		return nil
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name+".schema.json", bytes.NewReader(raw)); err != nil {
		return nil
	}
	schema, err := compiler.Compile(name + ".schema.json")
	if err != nil {
		return nil
	}
	return schema
}

// toSchemaDoc round-trips args through JSON before they reach
// jsonschema.Schema.Validate, so Go-native ints/structs decode into the float64/map shape the validator
// expects regardless of how the caller built the arguments map.
func toSchemaDoc(args map[string]any) any {
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return args
	}
	return doc
}

// Registry holds named tool definitions and dispatches calls with a shared
// execution context. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds or replaces a tool by name. Parameters is compiled into a
// JSON schema up front; a schema that fails to compile is not reported, and
// calls to that tool then run without argument validation.
func (r *Registry) Register(def Definition, run Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[def.Name] = entry{def: def, run: run, schema: compileSchema(def.Name, def.Parameters)}
}

// Definitions returns the full list of registered tool definitions, the
// shape the LLM sees.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.def)
	}
	return out
}

// Execute dispatches a tool call, catching panics and converting them into
// a {success=false, error} result so a misbehaving executor can never crash
// the agent core.
func (r *Registry) Execute(ctx context.Context, call model.ToolCall, ec ExecContext) (result model.ToolResult) {
	r.mu.RLock()
	e, ok := r.entries[call.Name]
	r.mu.RUnlock()
	if !ok {
		return model.ToolResult{Success: false, Error: fmt.Sprintf("unknown tool: %s", call.Name)}
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = model.ToolResult{Success: false, Error: fmt.Sprintf("tool %s panicked: %v", call.Name, rec)}
		}
	}()

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	if e.schema != nil {
		if err := e.schema.Validate(toSchemaDoc(args)); err != nil {
			return model.ToolResult{Success: false, Error: fmt.Sprintf("invalid arguments for %s: %v", call.Name, err)}
		}
	}
	return e.run(ctx, args, ec)
}
