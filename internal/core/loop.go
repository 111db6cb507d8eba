package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/axbackend"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/axstate"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/llmprovider"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/platform"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/prompt"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/queue"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/registry"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/reply"
)

// clickTools is the set of tool names whose (x, y) arguments feed the
// repetition detector's round click list.
var clickTools = map[string]bool{
	"click":        true,
	"left_double":  true,
	"right_single": true,
	"middle_click": true,
}

// Config bounds the loop's termination and timing behavior.
type Config struct {
	MaxSteps         int
	Interactive      bool
	WhitelistedApps  []string
	Model            string
	MaxTokens        int
	StepDelay        time.Duration
	IdlePollInterval time.Duration
	StepsDir         string
	ScreenshotDir    string
	Workspace        string
}

func (c *Config) applyDefaults() {
	if c.MaxSteps <= 0 {
		c.MaxSteps = 200
	}
	if c.StepDelay <= 0 {
		c.StepDelay = 500 * time.Millisecond
	}
	if c.IdlePollInterval <= 0 {
		c.IdlePollInterval = time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
}

// Deps wires every external collaborator the loop suspends on. AX and
// Driver may be nil, in which case the corresponding observation step is
// skipped rather than erroring.
type Deps struct {
	Provider llmprovider.Provider
	Tools    *registry.Registry
	Inbound  *queue.Inbound
	Outbound outbound
	AX       *axbackend.Client
	Driver   platform.Driver
	Renderer *prompt.Renderer

	SystemTemplate   string
	ComputerTemplate string

	Logger *slog.Logger

	// OverlayActive reports whether the overlay UI currently has a live
	// connection, used for the tui→gui reply duplication rule and as the
	// GUI deliverer's availability signal.
	OverlayActive func() bool
	// ForwardToGUI mirrors a message to the overlay client, best-effort.
	ForwardToGUI func(model.Message)
}

// outbound is the narrow slice of *outbound.Router the loop needs; declared
// here as an interface so tests can supply a fake without a real queue.
type outbound interface {
	Push(ctx context.Context, tui, gui string, mail *model.OutboundMail, attachments []string) error
}

// Loop is the agent execution core: one conceptual task running the step
// function in a fixed order, suspending on I/O between steps.
type Loop struct {
	deps  Deps
	cfg   Config
	state *State

	// lastToolResults holds the previous step's rendered
	// "name(args)\n<projection>" blocks, consumed by the next step's
	// "## Tool Execution Results" section.
	lastToolResults []string

	// preToolSnap is the accessibility baseline captured before the current
	// step's tool calls ran, stashed between toolCallBranch and
	// roundBookkeeping.
	preToolSnap *model.StateSnapshot
}

// New builds a Loop ready to Run. deps.Outbound may be any type satisfying
// the narrow outbound interface (normally *outbound.Router).
func New(deps Deps, cfg Config) *Loop {
	cfg.applyDefaults()
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Renderer == nil {
		deps.Renderer = prompt.NewRenderer()
	}
	if deps.SystemTemplate == "" {
		deps.SystemTemplate = prompt.SystemTemplate
	}
	if deps.ComputerTemplate == "" {
		deps.ComputerTemplate = prompt.ComputerTemplate
	}
	return &Loop{deps: deps, cfg: cfg, state: NewState()}
}

// SetTask seeds the task the loop pursues this run (CLI positional arg, or
// set later via a taskSet tool result / inbound message).
func (l *Loop) SetTask(task string) { l.state.CurrentTask = task }

// State exposes the loop's current state for inspection (logging, tests).
func (l *Loop) State() *State { return l.state }

// Run drives steps until a termination condition fires or ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if len(l.state.Messages) == 0 && l.deps.Tools != nil {
		var toolLines []string
		for _, d := range l.deps.Tools.Definitions() {
			toolLines = append(toolLines, fmt.Sprintf("- %s: %s", d.Name, d.Description))
		}
		system, err := l.deps.Renderer.Render(l.deps.SystemTemplate, map[string]any{
			"TOOLS":    strings.Join(toolLines, "\n"),
			"PLATFORM": runtime.GOOS,
		})
		if err == nil && system != "" {
			l.state.Messages = append(l.state.Messages, model.Message{Role: model.RoleSystem, Content: system, CreatedAt: time.Now()})
		}
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if l.state.StepCount >= l.cfg.MaxSteps {
			l.deps.Logger.Warn("core: reached max steps", "maxSteps", l.cfg.MaxSteps)
			return nil
		}
		done, err := l.runStep(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// runStep executes one pass through the fourteen-step observe/act cycle.
// Returns done=true when a termination condition fires.
func (l *Loop) runStep(ctx context.Context) (bool, error) {
	s := l.state

	// Step 1: external-change check.
	l.externalChangeCheck(ctx)

	// Step 2: drain inbound.
	hadInbound, err := l.drainInbound(ctx)
	if err != nil {
		return false, fmt.Errorf("core: drain inbound: %w", err)
	}

	// Step 3: idle wait.
	canWake := l.deps.Inbound != nil || l.deps.AX != nil
	if s.needsIdleWait(hadInbound, canWake) {
		fired, err := l.idleWait(ctx)
		if err != nil {
			return false, err
		}
		if fired {
			more, err := l.drainInbound(ctx)
			if err != nil {
				return false, fmt.Errorf("core: drain inbound after idle: %w", err)
			}
			hadInbound = hadInbound || more
		}
		// An idle round that woke only for an external AX notification (no
		// inbound) still re-enters here; the notification itself was already
		// queued as inbound by externalChangeCheck, so draining picks it up.
	}
	s.FirstStep = false

	// Step 4: capture observation.
	obs, repeated := l.captureObservation(ctx)

	// Step 5: compose computer message.
	computerText := l.composeComputerMessage(obs, repeated, hadInbound)

	// Step 6: attach images.
	images := l.attachImages(obs)
	l.forwardToGUI(model.Message{Role: model.RoleComputer, Content: computerText, Images: images, CreatedAt: time.Now()})

	// Step 7: baseline snapshot.
	l.captureBaseline(ctx)

	s.Messages = append(s.Messages, model.Message{Role: model.RoleComputer, Content: computerText, Images: images, CreatedAt: time.Now()})

	// Step 8: LLM call.
	resp, err := l.deps.Provider.Chat(ctx, s.Messages, images, l.deps.Tools.Definitions(), llmprovider.ChatOptions{Model: l.cfg.Model, MaxTokens: l.cfg.MaxTokens})
	if err != nil {
		return false, fmt.Errorf("core: llm chat: %w", err)
	}

	// Step 9: dispatch reply.
	l.dispatchReply(ctx, resp)

	// Step 10: append assistant message.
	s.Messages = append(s.Messages, model.Message{Role: model.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls, CreatedAt: time.Now()})

	// Step 11: handle parse error.
	if resp.ParseErr != nil {
		l.lastToolResults = []string{fmt.Sprintf("system_error\n<error>%s</error>", resp.ParseErr.Message)}
		s.StepCount++
		time.Sleep(l.cfg.StepDelay)
		return false, nil
	}

	// Step 12: no-tool-call branch.
	if len(resp.ToolCalls) == 0 {
		done := l.noToolCallBranch()
		s.StepCount++
		time.Sleep(l.cfg.StepDelay)
		return done, nil
	}

	// Step 13: tool-call branch.
	toolFinished := l.toolCallBranch(ctx, resp.ToolCalls)

	// Step 14: round bookkeeping.
	l.roundBookkeeping(ctx)

	s.StepCount++
	time.Sleep(l.cfg.StepDelay)

	if toolFinished && !l.cfg.Interactive {
		s.Finished = true
		l.deps.Logger.Info(fmt.Sprintf("Task completed in %d steps", s.StepCount))
		return true, nil
	}
	return false, nil
}

// --- Step 1 ---

func (l *Loop) externalChangeCheck(ctx context.Context) {
	s := l.state
	if l.deps.AX == nil || s.AXDiffBaseline == nil {
		return
	}
	if !l.isWhitelisted(s.AXDiffBaseline.FocusedApplication) {
		return
	}
	current, err := l.deps.AX.CaptureState(ctx, axbackend.Point{})
	if err != nil {
		return
	}
	diff := axstate.Diff(*s.AXDiffBaseline, current)
	lines := nonTrivialLines(diff.Summary)

	var external []string
	for _, line := range lines {
		if s.AXToolDiffAdded[line] > 0 {
			s.AXToolDiffAdded[line]--
			continue
		}
		external = append(external, line)
	}
	s.AXToolDiffAdded = make(map[string]int)

	if len(external) > 0 && l.deps.Inbound != nil {
		var b strings.Builder
		fmt.Fprintf(&b, "[App: %s] [AX Change: +%d]\n", current.FocusedApplication, len(external))
		for _, line := range external {
			fmt.Fprintf(&b, "+ %s\n", line)
		}
		_, _ = l.deps.Inbound.Push(ctx, model.SourceNotification, strings.TrimRight(b.String(), "\n"))
	}
}

func (l *Loop) isWhitelisted(app string) bool {
	if app == "" {
		return false
	}
	for _, w := range l.cfg.WhitelistedApps {
		if strings.EqualFold(w, app) {
			return true
		}
	}
	return false
}

func nonTrivialLines(summary []string) []string {
	if len(summary) == 1 && summary[0] == model.NoChangeSentinel {
		return nil
	}
	return summary
}

// --- Step 2 ---

func (l *Loop) drainInbound(ctx context.Context) (bool, error) {
	if l.deps.Inbound == nil {
		return false, nil
	}
	pending, err := l.deps.Inbound.GetPending(ctx)
	if err != nil {
		return false, err
	}
	if len(pending) == 0 {
		return false, nil
	}

	ids := make([]string, len(pending))
	for i, m := range pending {
		ids[i] = m.ID
	}
	if err := l.deps.Inbound.MarkProcessing(ctx, ids); err != nil {
		return false, err
	}

	rendered := queue.FormatPendingAsChat(pending)
	l.state.Messages = append(l.state.Messages, model.Message{Role: model.RoleUser, Content: rendered, CreatedAt: time.Now()})
	for _, m := range pending {
		l.forwardToGUI(model.Message{Role: model.RoleUser, Content: m.Content, CreatedAt: m.Timestamp})
	}

	if err := l.deps.Inbound.ConsumeAll(ctx, ids); err != nil {
		return false, err
	}

	l.state.NoToolCallCount = 0
	l.state.LastHadToolCall = true
	return true, nil
}

// --- Step 3 ---

// idleWait polls every IdlePollInterval for new inbound or an external AX
// change on a whitelisted app, returning fired=true as soon as either
// happens. stepCount is never advanced while idling.
func (l *Loop) idleWait(ctx context.Context) (bool, error) {
	ticker := time.NewTicker(l.cfg.IdlePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
			if l.deps.Inbound != nil {
				pending, err := l.deps.Inbound.GetPending(ctx)
				if err == nil && len(pending) > 0 {
					return true, nil
				}
			}
			before := l.state.AXDiffBaseline
			l.externalChangeCheck(ctx)
			if l.deps.AX != nil && before != nil && l.isWhitelisted(before.FocusedApplication) {
				if current, err := l.deps.AX.CaptureState(ctx, axbackend.Point{}); err == nil {
					l.state.AXDiffBaseline = &current
					diff := axstate.Diff(*before, current)
					if len(nonTrivialLines(diff.Summary)) > 0 {
						return true, nil
					}
				}
			}
		}
	}
}

// --- Step 4 ---

type observation struct {
	screenshot []byte
	mouseX     int
	mouseY     int
	app        string
	window     string
	repeated   bool
}

func (l *Loop) captureObservation(ctx context.Context) (observation, bool) {
	var obs observation
	if !l.state.ScreenEnabled || l.deps.Driver == nil {
		return obs, false
	}

	shot, err := l.deps.Driver.Screenshot(ctx)
	if err == nil {
		obs.screenshot = shot
	}
	if w, h, err := l.deps.Driver.ScreenSize(ctx); err == nil {
		l.state.ScreenWidth, l.state.ScreenHeight = w, h
	}

	if x, y, err := l.deps.Driver.MousePosition(ctx); err == nil && l.state.ScreenWidth > 0 && l.state.ScreenHeight > 0 {
		obs.mouseX = toNorm(x, l.state.ScreenWidth)
		obs.mouseY = toNorm(y, l.state.ScreenHeight)
	}
	if app, title, err := l.deps.Driver.FocusedWindow(ctx); err == nil {
		obs.app, obs.window = app, title
	}

	cur := l.state.RoundClicks.Current()
	prev := l.state.RoundClicks.Previous()
	obs.repeated = axstate.RepeatDetected(prev, cur)
	return obs, obs.repeated
}

func toNorm(px, extent int) int {
	if extent <= 0 {
		return 0
	}
	return int((float64(px) / float64(extent)) * 1000.0)
}

// --- Step 5 ---

func (l *Loop) composeComputerMessage(obs observation, repeated, hadInbound bool) string {
	screenStatus := "screen capture disabled"
	if l.state.ScreenEnabled {
		screenStatus = fmt.Sprintf("mouse at (%d, %d); focused window: %s — %s", obs.mouseX, obs.mouseY, obs.app, obs.window)
	}

	body, err := l.deps.Renderer.Render(l.deps.ComputerTemplate, map[string]any{
		"task":         l.state.CurrentTask,
		"todoSummary":  l.state.TodoSummary,
		"recentSteps":  strings.Join(l.state.RecentStepSummaries, "\n"),
		"screenStatus": screenStatus,
	})
	if err != nil {
		body = fmt.Sprintf("(template error: %v)", err)
	}

	var b strings.Builder
	if hadInbound {
		b.WriteString("<quote>Attend to both the preceding user message and this computer feedback.</quote>\n\n")
	}
	b.WriteString(body)

	if len(l.lastToolResults) > 0 {
		b.WriteString("\n\n## Tool Execution Results\n")
		b.WriteString(strings.Join(l.lastToolResults, "\n\n"))
	}

	if repeated {
		b.WriteString("\n\n<reminder>The same screen location was clicked in consecutive rounds with no apparent effect. Reconsider the approach before repeating it again.</reminder>")
	}

	return b.String()
}

// --- Step 6 ---

func (l *Loop) attachImages(obs observation) []model.ImageInput {
	var images []model.ImageInput
	if l.state.ScreenEnabled && len(obs.screenshot) > 0 {
		path, _ := l.saveScreenshot(obs.screenshot)
		images = append(images, model.ImageInput{Path: path, MediaType: model.MediaPNG, Label: "screen"})
	}
	for _, ts := range l.state.PendingToolScreenshots {
		images = append(images, model.ImageInput{Path: ts.Path, MediaType: model.MediaPNG, Label: ts.Label})
	}
	l.state.PendingToolScreenshots = nil
	return images
}

func (l *Loop) saveScreenshot(data []byte) (string, error) {
	if l.cfg.ScreenshotDir == "" {
		return "", nil
	}
	dir := filepath.Join(l.cfg.ScreenshotDir, time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.png", time.Now().UnixMilli()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// --- Step 7 ---

func (l *Loop) captureBaseline(ctx context.Context) {
	if l.deps.AX == nil {
		return
	}
	snap, err := l.deps.AX.CaptureState(ctx, axbackend.Point{})
	if err != nil {
		return
	}
	l.state.AXDiffBaseline = &snap
}

// --- Step 9 ---

func (l *Loop) dispatchReply(ctx context.Context, resp *llmprovider.Response) {
	parsed := reply.Parse(resp.Content)
	overlayActive := l.deps.OverlayActive != nil && l.deps.OverlayActive()
	parsed = reply.WithGUIFallback(parsed, overlayActive)

	if tui, silent := reply.NormalizeSilent(parsed.TUI); silent {
		parsed.TUI = ""
	} else {
		parsed.TUI = tui
	}
	if gui, silent := reply.NormalizeSilent(parsed.GUI); silent {
		parsed.GUI = ""
	} else {
		parsed.GUI = gui
	}

	if l.deps.Outbound != nil && (parsed.TUI != "" || parsed.GUI != "" || parsed.Mail != nil) {
		_ = l.deps.Outbound.Push(ctx, parsed.TUI, parsed.GUI, parsed.Mail, parsed.Attachments)
	}

	l.forwardToGUI(model.Message{Role: model.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls, CreatedAt: time.Now()})
}

// --- Step 12 ---

// noToolCallBranch returns done=true when the loop should terminate.
func (l *Loop) noToolCallBranch() bool {
	s := l.state
	s.NoToolCallCount++
	s.LastHadToolCall = false

	if s.NoToolCallCount < 2 {
		l.lastToolResults = []string{checklistReminder()}
		return false
	}

	if !l.cfg.Interactive {
		s.Finished = true
		return true
	}
	s.CurrentTask = ""
	return false
}

func checklistReminder() string {
	return "system_reminder\n<reminder>\n" +
		"Before ending this turn, confirm: (a) the task outcome was recorded, " +
		"(b) you replied to the originator — via <chat> for tui/gui/mail senders, " +
		"or by driving the originating app's GUI when the originator was a " +
		"<notification> source, since <chat> cannot reach it, (c) the TODO entry " +
		"is marked complete, and (d) the current task is cleared.\n</reminder>"
}

// --- Step 13 ---

func (l *Loop) toolCallBranch(ctx context.Context, calls []model.ToolCall) bool {
	s := l.state
	s.NoToolCallCount = 0
	s.LastHadToolCall = true
	s.CurrentRoundClicks = nil

	var preSnap *model.StateSnapshot
	if l.deps.AX != nil && s.AXDiffBaseline != nil && l.isWhitelisted(s.AXDiffBaseline.FocusedApplication) {
		preSnap = s.AXDiffBaseline
	}

	finished := false
	l.lastToolResults = l.lastToolResults[:0]

	for _, call := range calls {
		ec := registry.ExecContext{
			ScreenWidth:   s.ScreenWidth,
			ScreenHeight:  s.ScreenHeight,
			ScreenshotDir: l.cfg.ScreenshotDir,
			Workspace:     l.cfg.Workspace,
			StepCount:     s.StepCount,
		}
		result := l.deps.Tools.Execute(ctx, call, ec)

		l.forwardToolResultToGUI(call, result)

		if clickTools[call.Name] {
			if x, y, ok := clickCoordinate(call.Arguments, result.Data); ok {
				s.CurrentRoundClicks = append(s.CurrentRoundClicks, model.Coordinate{X: x, Y: y})
			}
		}

		if result.Data != nil {
			if path, ok := result.Data["screenshotPath"].(string); ok && truthyIsToolScreenshot(result.Data) {
				label, _ := result.Data["label"].(string)
				s.PendingToolScreenshots = append(s.PendingToolScreenshots, ToolScreenshot{Path: path, Label: label})
			}
			if v, ok := result.Data["screenEnabled"].(bool); ok {
				s.ScreenEnabled = v
			}
			if v, ok := result.Data["taskSet"].(bool); ok && v {
				if content, ok := result.Data["taskContent"].(string); ok {
					s.CurrentTask = content
				}
			}
			if call.Name == "todo_write" {
				if sum, ok := result.Data["summary"].(string); ok {
					s.TodoSummary = sum
				}
			}
			if v, ok := result.Data["finished"].(bool); ok && v {
				finished = true
			}
			if v, ok := result.Data["needUserInput"].(bool); ok && v {
				l.deps.Logger.Info("core: tool requested user input", "tool", call.Name)
			}
		}

		l.persistStep(call, result)
		l.lastToolResults = append(l.lastToolResults, renderToolResult(call, result))
		l.state.pushStepSummary(fmt.Sprintf("%s(%s) -> %s", call.Name, formatArgs(call.Arguments), outcomeLabel(result.Success)))
	}

	if preSnap != nil {
		// postSnap is captured in roundBookkeeping; stash preSnap for it.
		l.preToolSnap = preSnap
	}
	return finished
}

func outcomeLabel(success bool) string {
	if success {
		return string(model.OutcomeSuccess)
	}
	return string(model.OutcomeFailed)
}

func truthyIsToolScreenshot(data map[string]any) bool {
	v, ok := data["isToolScreenshot"].(bool)
	return ok && v
}

// clickCoordinate recovers the (x, y) a click tool acted on. Every click
// tool's schema takes a single "coordinate": [x, y] argument, never separate
// "x"/"y" keys, so that is tried first; the click executor's result also
// echoes back the coordinate it actually used, which covers calls whose
// arguments failed to parse.
func clickCoordinate(args map[string]any, data map[string]any) (x, y int, ok bool) {
	if raw, okArr := args["coordinate"].([]any); okArr && len(raw) == 2 {
		xf, ok1 := toFloat(raw[0])
		yf, ok2 := toFloat(raw[1])
		if ok1 && ok2 {
			return int(xf), int(yf), true
		}
	}
	if data != nil {
		xf, ok1 := toFloat(data["x"])
		yf, ok2 := toFloat(data["y"])
		if ok1 && ok2 {
			return int(xf), int(yf), true
		}
	}
	return 0, 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, args[k])
	}
	return strings.Join(parts, ", ")
}

func renderToolResult(call model.ToolCall, result model.ToolResult) string {
	header := fmt.Sprintf("%s(%s)", call.Name, formatArgs(call.Arguments))
	switch {
	case result.Message != "":
		return header + "\n" + result.Message
	case result.Error != "":
		return header + "\n" + result.Error
	case len(result.Data) > 0:
		b, err := json.MarshalIndent(result.Data, "", "  ")
		if err != nil {
			return header + "\ndone"
		}
		return header + "\n" + string(b)
	default:
		return header + "\ndone"
	}
}

func (l *Loop) persistStep(call model.ToolCall, result model.ToolResult) {
	if l.cfg.StepsDir == "" {
		return
	}
	outcome := model.OutcomeSuccess
	if !result.Success {
		outcome = model.OutcomeFailed
	}
	step := model.Step{Timestamp: time.Now(), ToolCall: call, Outcome: outcome}

	dir := filepath.Join(l.cfg.StepsDir, step.Timestamp.Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		l.deps.Logger.Error("core: create steps dir failed", "error", err)
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.json", step.Timestamp.UnixMilli()))
	b, err := json.MarshalIndent(step, "", "  ")
	if err != nil {
		l.deps.Logger.Error("core: marshal step failed", "error", err)
		return
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		l.deps.Logger.Error("core: write step failed", "error", err)
	}
}

// --- Step 14 ---

func (l *Loop) roundBookkeeping(ctx context.Context) {
	s := l.state
	s.RoundClicks.Push(s.CurrentRoundClicks)

	if l.preToolSnap != nil && l.deps.AX != nil {
		postSnap, err := l.deps.AX.CaptureState(ctx, axbackend.Point{})
		if err == nil && postSnap.FocusedApplication == l.preToolSnap.FocusedApplication {
			diff := axstate.Diff(*l.preToolSnap, postSnap)
			for _, line := range nonTrivialLines(diff.Summary) {
				s.AXToolDiffAdded[line]++
			}
		}
	}
	l.preToolSnap = nil
}

func (l *Loop) forwardToGUI(msg model.Message) {
	if l.deps.ForwardToGUI != nil {
		l.deps.ForwardToGUI(msg)
	}
}

func (l *Loop) forwardToolResultToGUI(call model.ToolCall, result model.ToolResult) {
	if l.deps.ForwardToGUI == nil {
		return
	}
	text := result.Message
	if text == "" {
		text = result.Error
	}
	l.deps.ForwardToGUI(model.Message{Role: model.RoleTool, Content: fmt.Sprintf("%s: %s", call.Name, text), ToolCallID: call.ID, CreatedAt: time.Now()})
}
