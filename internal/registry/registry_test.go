package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
)

func TestExecuteUnknownTool(t *testing.T) {
	r := New()
	res := r.Execute(context.Background(), model.ToolCall{ID: "1", Name: "missing"}, ExecContext{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown tool")
}

func TestExecuteRecoversPanics(t *testing.T) {
	r := New()
	r.Register(Definition{Name: "boom"}, func(ctx context.Context, args map[string]any, ec ExecContext) model.ToolResult {
		panic("kaboom")
	})
	res := r.Execute(context.Background(), model.ToolCall{ID: "1", Name: "boom"}, ExecContext{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "kaboom")
}

func TestDefinitionsReturnsAllRegistered(t *testing.T) {
	r := New()
	r.Register(Definition{Name: "a"}, func(ctx context.Context, args map[string]any, ec ExecContext) model.ToolResult {
		return model.ToolResult{Success: true}
	})
	r.Register(Definition{Name: "b"}, func(ctx context.Context, args map[string]any, ec ExecContext) model.ToolResult {
		return model.ToolResult{Success: true}
	})
	defs := r.Definitions()
	require.Len(t, defs, 2)
}

func TestExecutePassesArgsAndContext(t *testing.T) {
	r := New()
	r.Register(Definition{Name: "echo"}, func(ctx context.Context, args map[string]any, ec ExecContext) model.ToolResult {
		return model.ToolResult{Success: true, Data: map[string]any{"x": args["x"], "w": ec.ScreenWidth}}
	})
	res := r.Execute(context.Background(), model.ToolCall{ID: "1", Name: "echo", Arguments: map[string]any{"x": 5}}, ExecContext{ScreenWidth: 1920})
	assert.True(t, res.Success)
	assert.Equal(t, 5, res.Data["x"])
	assert.Equal(t, 1920, res.Data["w"])
}

func schemaDef(name string) Definition {
	return Definition{
		Name: name,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		},
	}
}

func TestExecuteRejectsArgsMissingRequiredField(t *testing.T) {
	r := New()
	r.Register(schemaDef("typed"), func(ctx context.Context, args map[string]any, ec ExecContext) model.ToolResult {
		return model.ToolResult{Success: true}
	})
	res := r.Execute(context.Background(), model.ToolCall{ID: "1", Name: "typed", Arguments: map[string]any{}}, ExecContext{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid arguments")
}

func TestExecuteAcceptsArgsMatchingSchema(t *testing.T) {
	r := New()
	r.Register(schemaDef("typed"), func(ctx context.Context, args map[string]any, ec ExecContext) model.ToolResult {
		return model.ToolResult{Success: true}
	})
	res := r.Execute(context.Background(), model.ToolCall{ID: "1", Name: "typed", Arguments: map[string]any{"text": "hi"}}, ExecContext{})
	assert.True(t, res.Success)
}

func TestExecuteRejectsWrongArgType(t *testing.T) {
	r := New()
	r.Register(schemaDef("typed"), func(ctx context.Context, args map[string]any, ec ExecContext) model.ToolResult {
		return model.ToolResult{Success: true}
	})
	res := r.Execute(context.Background(), model.ToolCall{ID: "1", Name: "typed", Arguments: map[string]any{"text": 5}}, ExecContext{})
	assert.False(t, res.Success)
}

func TestRegisterWithoutParametersSkipsValidation(t *testing.T) {
	r := New()
	r.Register(Definition{Name: "bare"}, func(ctx context.Context, args map[string]any, ec ExecContext) model.ToolResult {
		return model.ToolResult{Success: true}
	})
	res := r.Execute(context.Background(), model.ToolCall{ID: "1", Name: "bare", Arguments: map[string]any{"anything": true}}, ExecContext{})
	assert.True(t, res.Success)
}
