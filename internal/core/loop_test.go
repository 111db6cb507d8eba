package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/llmprovider"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/queue"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/registry"
)

// fakeProvider replays a fixed sequence of responses, repeating the last
// one once the sequence is exhausted.
type fakeProvider struct {
	responses []*llmprovider.Response
	calls     int
	seen      [][]model.Message
}

func (f *fakeProvider) Chat(_ context.Context, messages []model.Message, _ []model.ImageInput, _ []registry.Definition, _ llmprovider.ChatOptions) (*llmprovider.Response, error) {
	f.seen = append(f.seen, messages)
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	return f.responses[idx], nil
}
func (f *fakeProvider) Abort()                 {}
func (f *fakeProvider) Mode() llmprovider.Mode { return llmprovider.ModeNative }
func (f *fakeProvider) Name() string           { return "fake" }

// fakeOutbound records every Push call, satisfying the loop's narrow
// outbound interface without a real SQLite-backed router.
type fakeOutbound struct {
	pushes []struct {
		tui, gui string
		mail     *model.OutboundMail
	}
}

func (f *fakeOutbound) Push(_ context.Context, tui, gui string, mail *model.OutboundMail, _ []string) error {
	f.pushes = append(f.pushes, struct {
		tui, gui string
		mail     *model.OutboundMail
	}{tui, gui, mail})
	return nil
}

func noToolResponse(content string) *llmprovider.Response {
	return &llmprovider.Response{Content: content}
}

func TestNonInteractiveTerminatesAfterTwoNoToolCallRounds(t *testing.T) {
	provider := &fakeProvider{responses: []*llmprovider.Response{
		noToolResponse("<chat><tui>pong</tui></chat>"),
		noToolResponse("still nothing to do"),
	}}
	ob := &fakeOutbound{}
	loop := New(Deps{
		Provider: provider,
		Tools:    registry.New(),
		Outbound: ob,
	}, Config{Interactive: false, StepDelay: time.Millisecond, IdlePollInterval: time.Millisecond})

	err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, loop.State().StepCount)
	assert.True(t, loop.State().Finished)
	require.Len(t, ob.pushes, 1)
	assert.Equal(t, "pong", ob.pushes[0].tui)
}

func TestInteractiveNeverTerminatesAutonomously(t *testing.T) {
	provider := &fakeProvider{responses: []*llmprovider.Response{
		noToolResponse("nothing yet"),
		noToolResponse("still nothing"),
	}}
	loop := New(Deps{
		Provider: provider,
		Tools:    registry.New(),
	}, Config{Interactive: true, MaxSteps: 3, StepDelay: time.Millisecond, IdlePollInterval: time.Millisecond})

	err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, loop.State().StepCount)
	assert.False(t, loop.State().Finished)
	assert.Empty(t, loop.State().CurrentTask)
}

func TestToolCallDispatchUpdatesStateAndTerminates(t *testing.T) {
	reg := registry.New()
	reg.Register(registry.Definition{Name: "set_task"}, func(_ context.Context, args map[string]any, _ registry.ExecContext) model.ToolResult {
		return model.ToolResult{
			Success: true,
			Data: map[string]any{
				"taskSet":     true,
				"taskContent": args["task"],
			},
		}
	})
	reg.Register(registry.Definition{Name: "finished"}, func(_ context.Context, _ map[string]any, _ registry.ExecContext) model.ToolResult {
		return model.ToolResult{Success: true, Data: map[string]any{"finished": true}}
	})

	provider := &fakeProvider{responses: []*llmprovider.Response{
		{ToolCalls: []model.ToolCall{{ID: "1", Name: "set_task", Arguments: map[string]any{"task": "send an email"}}}},
		{ToolCalls: []model.ToolCall{{ID: "2", Name: "finished"}}},
	}}
	loop := New(Deps{
		Provider: provider,
		Tools:    reg,
	}, Config{Interactive: false, StepDelay: time.Millisecond, IdlePollInterval: time.Millisecond})

	err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "send an email", loop.State().CurrentTask)
	assert.True(t, loop.State().Finished)
	assert.Equal(t, 2, loop.State().StepCount)
}

func TestParseErrorInjectsSystemErrorWithoutAdvancingNoToolCallCount(t *testing.T) {
	provider := &fakeProvider{responses: []*llmprovider.Response{
		{Content: "garbled", ParseErr: &llmprovider.ParseError{Message: "could not parse tool calls"}},
		noToolResponse("ok now"),
		noToolResponse("still ok"),
	}}
	loop := New(Deps{
		Provider: provider,
		Tools:    registry.New(),
	}, Config{Interactive: false, StepDelay: time.Millisecond, IdlePollInterval: time.Millisecond})

	err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, loop.State().StepCount)
	assert.True(t, loop.State().Finished)
}

func TestDrainInboundRendersChatBlockAndResetsNoToolCallCount(t *testing.T) {
	inbound, err := queue.Open(":memory:")
	require.NoError(t, err)
	defer inbound.Close()
	_, err = inbound.Push(context.Background(), model.SourceTUI, "hello there")
	require.NoError(t, err)

	provider := &fakeProvider{responses: []*llmprovider.Response{
		noToolResponse("ack"),
		noToolResponse("ack again"),
	}}
	loop := New(Deps{
		Provider: provider,
		Tools:    registry.New(),
		Inbound:  inbound,
	}, Config{Interactive: false, StepDelay: time.Millisecond, IdlePollInterval: time.Millisecond})

	err = loop.Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, provider.seen)
	found := false
	for _, m := range provider.seen[0] {
		if m.Role == model.RoleUser {
			assert.Contains(t, m.Content, "hello there")
			assert.Contains(t, m.Content, "<tui>")
			found = true
		}
	}
	assert.True(t, found, "expected a rendered <chat> user message in the first step's history")

	pending, err := inbound.GetPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestToolCallBranchRecordsClickCoordinateFromCoordinateArg(t *testing.T) {
	reg := registry.New()
	reg.Register(registry.Definition{Name: "click"}, func(_ context.Context, _ map[string]any, _ registry.ExecContext) model.ToolResult {
		return model.ToolResult{Success: true}
	})
	loop := New(Deps{Provider: &fakeProvider{}, Tools: reg}, Config{})

	loop.toolCallBranch(context.Background(), []model.ToolCall{
		{ID: "1", Name: "click", Arguments: map[string]any{"coordinate": []any{100.0, 100.0}}},
	})

	require.Len(t, loop.State().CurrentRoundClicks, 1)
	assert.Equal(t, model.Coordinate{X: 100, Y: 100}, loop.State().CurrentRoundClicks[0])
}

func TestToolCallBranchFallsBackToResultDataCoordinate(t *testing.T) {
	reg := registry.New()
	reg.Register(registry.Definition{Name: "click"}, func(_ context.Context, _ map[string]any, _ registry.ExecContext) model.ToolResult {
		return model.ToolResult{Success: true, Data: map[string]any{"x": 300, "y": 400}}
	})
	loop := New(Deps{Provider: &fakeProvider{}, Tools: reg}, Config{})

	loop.toolCallBranch(context.Background(), []model.ToolCall{
		{ID: "1", Name: "click"},
	})

	require.Len(t, loop.State().CurrentRoundClicks, 1)
	assert.Equal(t, model.Coordinate{X: 300, Y: 400}, loop.State().CurrentRoundClicks[0])
}

func TestNeedsIdleWaitOnlyWhenNoInboundAndStalled(t *testing.T) {
	s := NewState()
	assert.True(t, s.needsIdleWait(false, true), "first step with no inbound and no task should idle-wait")

	s.FirstStep = false
	s.LastHadToolCall = true
	assert.False(t, s.needsIdleWait(false, true))

	s.LastHadToolCall = false
	s.NoToolCallCount = 1
	assert.False(t, s.needsIdleWait(false, true))

	s.NoToolCallCount = 2
	assert.True(t, s.needsIdleWait(false, true))
	assert.False(t, s.needsIdleWait(true, true), "inbound present always skips idle-wait")
}

func TestNeedsIdleWaitSkipsWithoutWakeSource(t *testing.T) {
	s := NewState()
	assert.False(t, s.needsIdleWait(false, false), "nothing can ever wake the loop, so don't block on it")
}

func TestNeedsIdleWaitSkipsFirstStepWithPendingTask(t *testing.T) {
	s := NewState()
	s.CurrentTask = "greet me"
	assert.False(t, s.needsIdleWait(false, true), "a pending task takes priority over idling, first step or not")
}
