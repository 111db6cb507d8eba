package tools

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/axbackend"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/axstate"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/clipboard"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/platform"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/registry"
)

// settleDelay is how long a click waits before capturing post-click state;
// extraSettleDelay is the additional wait applied when the app or window
// count changed, giving a slow-opening window time to finish drawing.
const (
	settleDelay      = 150 * time.Millisecond
	extraSettleDelay = 300 * time.Millisecond
	nearbyCount      = 5
	nearbyDistance   = 80
)

func registerComputerTools(reg *registry.Registry, deps Deps) {
	reg.Register(registry.Definition{
		Name:        "screenshot",
		Description: "Capture the current screen, including the mouse cursor.",
		Parameters:  obj(nil),
	}, screenshotExecutor(deps, false))

	reg.Register(registry.Definition{
		Name:        "take_screenshot",
		Description: "Capture an extra screenshot the agent explicitly asked for; queued for the next observation.",
		Parameters:  obj(map[string]any{"label": str("short label identifying what this screenshot shows")}),
	}, screenshotExecutor(deps, true))

	reg.Register(registry.Definition{
		Name:        "click",
		Description: "Left-click at a normalized [0,1000]x[0,1000] coordinate.",
		Parameters:  obj(map[string]any{"coordinate": numberArray("[x, y] in [0,1000]x[0,1000]")}, "coordinate"),
	}, clickExecutor(deps, platform.ButtonLeft, 1))

	reg.Register(registry.Definition{
		Name:        "left_double",
		Description: "Double-click the left button at a normalized coordinate.",
		Parameters:  obj(map[string]any{"coordinate": numberArray("[x, y] in [0,1000]x[0,1000]")}, "coordinate"),
	}, clickExecutor(deps, platform.ButtonLeft, 2))

	reg.Register(registry.Definition{
		Name:        "right_single",
		Description: "Right-click at a normalized coordinate.",
		Parameters:  obj(map[string]any{"coordinate": numberArray("[x, y] in [0,1000]x[0,1000]")}, "coordinate"),
	}, clickExecutor(deps, platform.ButtonRight, 1))

	reg.Register(registry.Definition{
		Name:        "middle_click",
		Description: "Middle-click at a normalized coordinate.",
		Parameters:  obj(map[string]any{"coordinate": numberArray("[x, y] in [0,1000]x[0,1000]")}, "coordinate"),
	}, clickExecutor(deps, platform.ButtonMiddle, 1))

	reg.Register(registry.Definition{
		Name:        "drag",
		Description: "Drag from one normalized coordinate to another, left button held.",
		Parameters: obj(map[string]any{
			"from": numberArray("[x, y] starting coordinate"),
			"to":   numberArray("[x, y] ending coordinate"),
		}, "from", "to"),
	}, dragExecutor(deps))

	reg.Register(registry.Definition{
		Name:        "scroll",
		Description: "Scroll at a normalized coordinate by (dx, dy) notches.",
		Parameters: obj(map[string]any{
			"coordinate": numberArray("[x, y] in [0,1000]x[0,1000]"),
			"dx":         integer("horizontal scroll amount, positive = right"),
			"dy":         integer("vertical scroll amount, positive = down"),
		}, "coordinate"),
	}, scrollExecutor(deps))

	reg.Register(registry.Definition{
		Name:        "type",
		Description: "Type text at the current focus. Falls back to clipboard-paste for non-ASCII text or text containing newlines/tabs.",
		Parameters:  obj(map[string]any{"text": str("text to type")}, "text"),
	}, typeExecutor(deps))

	reg.Register(registry.Definition{
		Name:        "hotkey",
		Description: "Press a chord of keys simultaneously, e.g. [\"ctrl\", \"c\"].",
		Parameters: obj(map[string]any{
			"keys": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "key names to hold together"},
		}, "keys"),
	}, hotkeyExecutor(deps))

	reg.Register(registry.Definition{
		Name:        "wait",
		Description: "Pause for a number of milliseconds.",
		Parameters:  obj(map[string]any{"ms": integer("milliseconds to sleep")}, "ms"),
	}, waitExecutor())

	reg.Register(registry.Definition{
		Name:        "screen",
		Description: "Enable or disable primary screenshot capture for subsequent steps.",
		Parameters:  obj(map[string]any{"enabled": boolean("whether to capture the screen each step")}, "enabled"),
	}, screenToggleExecutor())

	reg.Register(registry.Definition{
		Name:        "find_element",
		Description: "Query the accessibility tree near a normalized coordinate.",
		Parameters: obj(map[string]any{
			"coordinate": numberArray("[x, y] in [0,1000]x[0,1000]"),
			"count":      integer("maximum nearby elements to return"),
		}, "coordinate"),
	}, findElementExecutor(deps))

	reg.Register(registry.Definition{
		Name:        "locate",
		Description: "Search the accessibility tree by keyword and return normalized coordinates of high-similarity matches.",
		Parameters: obj(map[string]any{
			"query": str("text to search for"),
			"count": integer("maximum matches to return"),
		}, "query"),
	}, locateExecutor(deps))
}

func screenshotExecutor(deps Deps, isToolScreenshot bool) registry.Executor {
	return func(ctx context.Context, args map[string]any, ec registry.ExecContext) model.ToolResult {
		if deps.Driver == nil {
			return toolError("no display driver available on this platform")
		}
		data, err := deps.Driver.Screenshot(ctx)
		if err != nil {
			return toolError("screenshot failed: %v", err)
		}
		w, h, _ := deps.Driver.ScreenSize(ctx)

		path, err := screenshotFilename(ec.ScreenshotDir)
		if err == nil {
			_ = os.WriteFile(path, data, 0o644)
		}

		label, _ := stringArg(args, "label")
		result := toolOK("captured screenshot", map[string]any{
			"path":             path,
			"screenWidth":      w,
			"screenHeight":     h,
			"mediaType":        "image/png",
			"isToolScreenshot": isToolScreenshot,
			"label":            label,
		})
		return result
	}
}

func clickExecutor(deps Deps, button platform.Button, clicks int) registry.Executor {
	return func(ctx context.Context, args map[string]any, ec registry.ExecContext) model.ToolResult {
		if deps.Driver == nil {
			return toolError("no display driver available on this platform")
		}
		normX, normY, err := coordinateArg(args)
		if err != nil {
			return toolError(err.Error())
		}
		screenX := axstate.NormToScreen(normX, ec.ScreenWidth)
		screenY := axstate.NormToScreen(normY, ec.ScreenHeight)

		var pre *model.StateSnapshot
		if deps.AX != nil {
			if snap, err := deps.AX.CaptureState(ctx, axbackend.Point{}); err == nil {
				pre = &snap
			}
		}

		if err := deps.Driver.Click(ctx, screenX, screenY, button, clicks); err != nil {
			return toolError("click failed: %v", err)
		}

		time.Sleep(settleDelay)
		message := fmt.Sprintf("clicked (%d, %d)", normX, normY)
		if deps.AX != nil && pre != nil {
			post, err := deps.AX.CaptureState(ctx, axbackend.Point{X: screenX, Y: screenY, Set: true})
			if err == nil {
				if post.FocusedApplication != pre.FocusedApplication || len(post.Windows) != len(pre.Windows) {
					time.Sleep(extraSettleDelay)
					if reCapture, err := deps.AX.CaptureState(ctx, axbackend.Point{X: screenX, Y: screenY, Set: true}); err == nil {
						post = reCapture
					}
				}
				diff := axstate.Diff(*pre, post)
				message = axstate.FormatForAgent(diff)
				if nearby, err := deps.AX.Query(ctx, screenX, screenY, nearbyCount, nearbyDistance, false); err == nil {
					message += "\n" + formatNearby(nearby.NearbyElements)
				}
			}
		}

		return toolOK(message, map[string]any{"x": normX, "y": normY})
	}
}

func formatNearby(elems []model.Element) string {
	if len(elems) == 0 {
		return "(no nearby elements)"
	}
	var b strings.Builder
	b.WriteString("Nearby elements:\n")
	for _, e := range elems {
		fmt.Fprintf(&b, "- %s %q\n", e.Role, e.Title)
	}
	return strings.TrimRight(b.String(), "\n")
}

func dragExecutor(deps Deps) registry.Executor {
	return func(ctx context.Context, args map[string]any, ec registry.ExecContext) model.ToolResult {
		if deps.Driver == nil {
			return toolError("no display driver available on this platform")
		}
		from, ok := args["from"].([]any)
		to, ok2 := args["to"].([]any)
		if !ok || !ok2 || len(from) != 2 || len(to) != 2 {
			return toolError("from and to must each be a [x, y] pair")
		}
		fx, fy := int(from[0].(float64)), int(from[1].(float64))
		tx, ty := int(to[0].(float64)), int(to[1].(float64))
		screenFX, screenFY := axstate.NormToScreen(fx, ec.ScreenWidth), axstate.NormToScreen(fy, ec.ScreenHeight)
		screenTX, screenTY := axstate.NormToScreen(tx, ec.ScreenWidth), axstate.NormToScreen(ty, ec.ScreenHeight)
		if err := deps.Driver.Drag(ctx, screenFX, screenFY, screenTX, screenTY); err != nil {
			return toolError("drag failed: %v", err)
		}
		return toolOK(fmt.Sprintf("dragged (%d, %d) -> (%d, %d)", fx, fy, tx, ty), nil)
	}
}

func scrollExecutor(deps Deps) registry.Executor {
	return func(ctx context.Context, args map[string]any, ec registry.ExecContext) model.ToolResult {
		if deps.Driver == nil {
			return toolError("no display driver available on this platform")
		}
		x, y, err := coordinateArg(args)
		if err != nil {
			return toolError(err.Error())
		}
		dx, dy := intArg(args, "dx", 0), intArg(args, "dy", 0)
		screenX, screenY := axstate.NormToScreen(x, ec.ScreenWidth), axstate.NormToScreen(y, ec.ScreenHeight)
		if err := deps.Driver.Scroll(ctx, screenX, screenY, dx, dy); err != nil {
			return toolError("scroll failed: %v", err)
		}
		return toolOK(fmt.Sprintf("scrolled (%d, %d) by (%d, %d)", x, y, dx, dy), nil)
	}
}

// needsClipboardPaste mirrors the type tool's fallback rule: text containing
// a non-ASCII rune, a newline or a tab is pasted instead of
// keystroke-simulated.
func needsClipboardPaste(text string) bool {
	for _, r := range text {
		if r == '\n' || r == '\t' || r > 127 {
			return true
		}
	}
	return false
}

func typeExecutor(deps Deps) registry.Executor {
	return func(ctx context.Context, args map[string]any, ec registry.ExecContext) model.ToolResult {
		if deps.Driver == nil {
			return toolError("no display driver available on this platform")
		}
		text, ok := stringArg(args, "text")
		if !ok || text == "" {
			return toolError("text is required")
		}
		if !needsClipboardPaste(text) {
			if err := deps.Driver.TypeText(ctx, text); err != nil {
				return toolError("type failed: %v", err)
			}
			return toolOK("typed text via keystrokes", nil)
		}

		ok2, err := clipboard.Copy(text)
		if err != nil || !ok2 {
			return toolError("clipboard paste fallback failed: %v", err)
		}
		pasteKeys := []string{"ctrl", "v"}
		if runtime.GOOS == "darwin" {
			pasteKeys = []string{"cmd", "v"}
		}
		if err := deps.Driver.Hotkey(ctx, pasteKeys); err != nil {
			return toolError("paste hotkey failed: %v", err)
		}
		return toolOK("typed text via clipboard paste", nil)
	}
}

func hotkeyExecutor(deps Deps) registry.Executor {
	return func(ctx context.Context, args map[string]any, ec registry.ExecContext) model.ToolResult {
		if deps.Driver == nil {
			return toolError("no display driver available on this platform")
		}
		raw, ok := args["keys"].([]any)
		if !ok || len(raw) == 0 {
			return toolError("keys is required")
		}
		keys := make([]string, len(raw))
		for i, k := range raw {
			s, _ := k.(string)
			keys[i] = s
		}
		if err := deps.Driver.Hotkey(ctx, keys); err != nil {
			return toolError("hotkey failed: %v", err)
		}
		return toolOK(fmt.Sprintf("pressed %s", strings.Join(keys, "+")), nil)
	}
}

func waitExecutor() registry.Executor {
	return func(ctx context.Context, args map[string]any, ec registry.ExecContext) model.ToolResult {
		ms := intArg(args, "ms", 0)
		if ms <= 0 {
			return toolError("ms must be > 0")
		}
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
		case <-ctx.Done():
			return toolError("wait cancelled: %v", ctx.Err())
		}
		return toolOK(fmt.Sprintf("waited %dms", ms), nil)
	}
}

func screenToggleExecutor() registry.Executor {
	return func(ctx context.Context, args map[string]any, ec registry.ExecContext) model.ToolResult {
		enabled := boolArg(args, "enabled")
		return toolOK(fmt.Sprintf("screen capture %s", onOff(enabled)), map[string]any{"screenEnabled": enabled})
	}
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func findElementExecutor(deps Deps) registry.Executor {
	return func(ctx context.Context, args map[string]any, ec registry.ExecContext) model.ToolResult {
		if deps.AX == nil {
			return toolError("accessibility back-end unavailable")
		}
		x, y, err := coordinateArg(args)
		if err != nil {
			return toolError(err.Error())
		}
		count := intArg(args, "count", nearbyCount)
		screenX, screenY := axstate.NormToScreen(x, ec.ScreenWidth), axstate.NormToScreen(y, ec.ScreenHeight)
		res, err := deps.AX.Query(ctx, screenX, screenY, count, nearbyDistance, true)
		if err != nil {
			return toolError("find_element failed: %v", err)
		}
		return toolOK(formatNearby(res.NearbyElements), marshalData(res))
	}
}

const locateSimilarityThreshold = 0.5

func locateExecutor(deps Deps) registry.Executor {
	return func(ctx context.Context, args map[string]any, ec registry.ExecContext) model.ToolResult {
		if deps.AX == nil {
			return toolError("accessibility back-end unavailable")
		}
		query, ok := stringArg(args, "query")
		if !ok || query == "" {
			return toolError("query is required")
		}
		count := intArg(args, "count", nearbyCount)
		results, err := deps.AX.SearchUIElements(ctx, query, count)
		if err != nil {
			return toolError("locate failed: %v", err)
		}

		var matches []map[string]any
		for _, r := range results {
			if r.Similarity < locateSimilarityThreshold {
				continue
			}
			cx := r.Bounds.X + r.Bounds.W/2
			cy := r.Bounds.Y + r.Bounds.H/2
			matches = append(matches, map[string]any{
				"role":       r.Role,
				"title":      r.Title,
				"similarity": r.Similarity,
				"coordinate": []int{toNormValue(cx, ec.ScreenWidth), toNormValue(cy, ec.ScreenHeight)},
			})
		}
		if len(matches) == 0 {
			return toolOK("no high-similarity matches", map[string]any{"matches": matches})
		}
		return toolOK(fmt.Sprintf("found %d match(es)", len(matches)), map[string]any{"matches": matches})
	}
}

func toNormValue(px, extent int) int {
	if extent <= 0 {
		return 0
	}
	return int((float64(px) / float64(extent)) * 1000.0)
}
