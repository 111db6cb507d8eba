// Package platform shims the mouse, keyboard, and screen-capture primitives
// the tool layer needs onto whatever OS subprocess can do the job: xdotool
// on Linux, the screencapture/osascript pair on macOS. No Go automation
// library is used here; the pack's one desktop-automation precedent
// (haasonsaas-nexus's computer-use tool) shells out the same way.
package platform

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Driver performs mouse, keyboard, and screen-capture actions against the
// local desktop session.
type Driver interface {
	MouseMove(ctx context.Context, x, y int) error
	Click(ctx context.Context, x, y int, button Button, clicks int) error
	Drag(ctx context.Context, fromX, fromY, toX, toY int) error
	Scroll(ctx context.Context, x, y, dx, dy int) error
	TypeText(ctx context.Context, text string) error
	Hotkey(ctx context.Context, keys []string) error
	Screenshot(ctx context.Context) ([]byte, error)
	ScreenSize(ctx context.Context) (width, height int, err error)
	MousePosition(ctx context.Context) (x, y int, err error)
	FocusedWindow(ctx context.Context) (app, title string, err error)
}

// Button identifies which mouse button an action uses.
type Button int

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle
)

// NewDriver returns the Driver appropriate for runtime.GOOS.
func NewDriver() (Driver, error) {
	switch runtime.GOOS {
	case "linux":
		return &xdotoolDriver{}, nil
	case "darwin":
		return &osascriptDriver{}, nil
	default:
		return nil, fmt.Errorf("platform: unsupported OS %q", runtime.GOOS)
	}
}

func runCmd(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s %v: %w: %s", name, args, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// xdotoolDriver drives the desktop on Linux via xdotool and a screenshot
// helper (scrot, gnome-screenshot, or ImageMagick's import), mirroring
// computer_use.go's runLinuxComputerAction and handleScreenCapture.
type xdotoolDriver struct{}

func (d *xdotoolDriver) require() error {
	if _, err := exec.LookPath("xdotool"); err != nil {
		return fmt.Errorf("platform: xdotool not found (apt install xdotool)")
	}
	return nil
}

func (d *xdotoolDriver) MouseMove(ctx context.Context, x, y int) error {
	if err := d.require(); err != nil {
		return err
	}
	_, err := runCmd(ctx, "xdotool", "mousemove", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

func (d *xdotoolDriver) Click(ctx context.Context, x, y int, button Button, clicks int) error {
	if err := d.require(); err != nil {
		return err
	}
	if err := d.MouseMove(ctx, x, y); err != nil {
		return err
	}
	btn := "1"
	switch button {
	case ButtonRight:
		btn = "3"
	case ButtonMiddle:
		btn = "2"
	}
	if clicks <= 0 {
		clicks = 1
	}
	for i := 0; i < clicks; i++ {
		if _, err := runCmd(ctx, "xdotool", "click", btn); err != nil {
			return err
		}
	}
	return nil
}

func (d *xdotoolDriver) Drag(ctx context.Context, fromX, fromY, toX, toY int) error {
	if err := d.require(); err != nil {
		return err
	}
	if err := d.MouseMove(ctx, fromX, fromY); err != nil {
		return err
	}
	if _, err := runCmd(ctx, "xdotool", "mousedown", "1"); err != nil {
		return err
	}
	if err := d.MouseMove(ctx, toX, toY); err != nil {
		return err
	}
	_, err := runCmd(ctx, "xdotool", "mouseup", "1")
	return err
}

func (d *xdotoolDriver) Scroll(ctx context.Context, x, y, dx, dy int) error {
	if err := d.require(); err != nil {
		return err
	}
	if err := d.MouseMove(ctx, x, y); err != nil {
		return err
	}
	vertBtn, vertAmt := "4", dy
	if dy > 0 {
		vertBtn = "5"
	}
	if vertAmt < 0 {
		vertAmt = -vertAmt
	}
	for i := 0; i < vertAmt; i++ {
		if _, err := runCmd(ctx, "xdotool", "click", vertBtn); err != nil {
			return err
		}
	}
	horizBtn, horizAmt := "6", dx
	if dx > 0 {
		horizBtn = "7"
	}
	if horizAmt < 0 {
		horizAmt = -horizAmt
	}
	for i := 0; i < horizAmt; i++ {
		if _, err := runCmd(ctx, "xdotool", "click", horizBtn); err != nil {
			return err
		}
	}
	return nil
}

func (d *xdotoolDriver) TypeText(ctx context.Context, text string) error {
	if err := d.require(); err != nil {
		return err
	}
	_, err := runCmd(ctx, "xdotool", "type", "--delay", "10", text)
	return err
}

func (d *xdotoolDriver) Hotkey(ctx context.Context, keys []string) error {
	if err := d.require(); err != nil {
		return err
	}
	_, err := runCmd(ctx, "xdotool", "key", strings.Join(keys, "+"))
	return err
}

func (d *xdotoolDriver) Screenshot(ctx context.Context) ([]byte, error) {
	tmpFile := os.TempDir() + "/deskagent_screen_" + uuid.NewString()[:8] + ".png"
	defer os.Remove(tmpFile)

	var cmd *exec.Cmd
	switch {
	case lookPathOK("scrot"):
		cmd = exec.CommandContext(ctx, "scrot", tmpFile)
	case lookPathOK("gnome-screenshot"):
		cmd = exec.CommandContext(ctx, "gnome-screenshot", "-f", tmpFile)
	case lookPathOK("import"):
		cmd = exec.CommandContext(ctx, "import", "-window", "root", tmpFile)
	default:
		return nil, fmt.Errorf("platform: screenshot requires scrot, gnome-screenshot, or imagemagick")
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("platform: screenshot failed: %w: %s", err, string(out))
	}
	return os.ReadFile(tmpFile)
}

func (d *xdotoolDriver) ScreenSize(ctx context.Context) (int, int, error) {
	if err := d.require(); err != nil {
		return 0, 0, err
	}
	out, err := runCmd(ctx, "xdotool", "getdisplaygeometry")
	if err != nil {
		return 0, 0, err
	}
	parts := strings.Fields(out)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("platform: unexpected getdisplaygeometry output %q", out)
	}
	w, err1 := strconv.Atoi(parts[0])
	h, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("platform: unexpected getdisplaygeometry output %q", out)
	}
	return w, h, nil
}

func (d *xdotoolDriver) MousePosition(ctx context.Context) (int, int, error) {
	if err := d.require(); err != nil {
		return 0, 0, err
	}
	out, err := runCmd(ctx, "xdotool", "getmouselocation", "--shell")
	if err != nil {
		return 0, 0, err
	}
	var x, y int
	for _, line := range strings.Split(out, "\n") {
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "X":
			x, _ = strconv.Atoi(kv[1])
		case "Y":
			y, _ = strconv.Atoi(kv[1])
		}
	}
	return x, y, nil
}

func (d *xdotoolDriver) FocusedWindow(ctx context.Context) (string, string, error) {
	if err := d.require(); err != nil {
		return "", "", err
	}
	title, err := runCmd(ctx, "xdotool", "getactivewindow", "getwindowname")
	if err != nil {
		return "", "", err
	}
	pidOut, err := runCmd(ctx, "xdotool", "getactivewindow", "getwindowpid")
	app := ""
	if err == nil {
		app, _ = runCmd(ctx, "ps", "-p", pidOut, "-o", "comm=")
	}
	return app, title, nil
}

// osascriptDriver drives the desktop on macOS via AppleScript (osascript)
// and the built-in screencapture binary.
type osascriptDriver struct{}

func (d *osascriptDriver) run(ctx context.Context, script string) (string, error) {
	return runCmd(ctx, "osascript", "-e", script)
}

func (d *osascriptDriver) MouseMove(ctx context.Context, x, y int) error {
	// AppleScript has no standalone mouse-move primitive separate from a click,
	// so MouseMove does nothing on macOS. Click treats clicks <= 0 as one click.
	return nil
}

func (d *osascriptDriver) Click(ctx context.Context, x, y int, button Button, clicks int) error {
	if clicks <= 0 {
		clicks = 1
	}
	script := fmt.Sprintf(`tell application "System Events" to click at {%d, %d}`, x, y)
	if button == ButtonRight {
		script = fmt.Sprintf(`tell application "System Events" to right click at {%d, %d}`, x, y)
	}
	for i := 0; i < clicks; i++ {
		if _, err := d.run(ctx, script); err != nil {
			return err
		}
	}
	return nil
}

func (d *osascriptDriver) Drag(ctx context.Context, fromX, fromY, toX, toY int) error {
	script := fmt.Sprintf(`tell application "System Events"
		set startPoint to {%d, %d}
		set endPoint to {%d, %d}
		tell (first process whose frontmost is true)
			click at startPoint
		end tell
	end tell`, fromX, fromY, toX, toY)
	_, err := d.run(ctx, script)
	return err
}

func (d *osascriptDriver) Scroll(ctx context.Context, x, y, dx, dy int) error {
	script := fmt.Sprintf(`tell application "System Events" to scroll {%d, %d}`, dx, dy)
	_, err := d.run(ctx, script)
	return err
}

func (d *osascriptDriver) TypeText(ctx context.Context, text string) error {
	escaped := strings.ReplaceAll(text, `"`, `\"`)
	_, err := d.run(ctx, fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, escaped))
	return err
}

func (d *osascriptDriver) Hotkey(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	main := keys[len(keys)-1]
	modifiers := keys[:len(keys)-1]
	var modScript strings.Builder
	for i, m := range modifiers {
		if i > 0 {
			modScript.WriteString(", ")
		}
		modScript.WriteString(appleModifier(m))
	}
	script := fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, main)
	if modScript.Len() > 0 {
		script = fmt.Sprintf(`tell application "System Events" to keystroke "%s" using {%s}`, main, modScript.String())
	}
	_, err := d.run(ctx, script)
	return err
}

func appleModifier(key string) string {
	switch strings.ToLower(key) {
	case "cmd", "command", "super":
		return "command down"
	case "ctrl", "control":
		return "control down"
	case "alt", "option":
		return "option down"
	case "shift":
		return "shift down"
	default:
		return key
	}
}

func (d *osascriptDriver) Screenshot(ctx context.Context) ([]byte, error) {
	tmpFile := os.TempDir() + "/deskagent_screen_" + uuid.NewString()[:8] + ".png"
	defer os.Remove(tmpFile)
	if out, err := exec.CommandContext(ctx, "screencapture", "-x", tmpFile).CombinedOutput(); err != nil {
		return nil, fmt.Errorf("platform: screencapture failed: %w: %s", err, string(out))
	}
	return os.ReadFile(tmpFile)
}

func (d *osascriptDriver) ScreenSize(ctx context.Context) (int, int, error) {
	out, err := d.run(ctx, `tell application "Finder" to get bounds of window of desktop`)
	if err != nil {
		return 0, 0, err
	}
	parts := strings.Split(out, ", ")
	if len(parts) != 4 {
		return 0, 0, fmt.Errorf("platform: unexpected desktop bounds output %q", out)
	}
	w, err1 := strconv.Atoi(strings.TrimSpace(parts[2]))
	h, err2 := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("platform: unexpected desktop bounds output %q", out)
	}
	return w, h, nil
}

func (d *osascriptDriver) MousePosition(ctx context.Context) (int, int, error) {
	out, err := d.run(ctx, `use framework "AppKit"
use scripting additions
set thePoint to current application's NSEvent's mouseLocation()
return (item 1 of thePoint as integer) & ", " & (item 2 of thePoint as integer)`)
	if err != nil {
		return 0, 0, err
	}
	parts := strings.Split(out, ", ")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("platform: unexpected mouse location output %q", out)
	}
	x, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	y, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("platform: unexpected mouse location output %q", out)
	}
	return x, y, nil
}

func (d *osascriptDriver) FocusedWindow(ctx context.Context) (string, string, error) {
	app, err := d.run(ctx, `tell application "System Events" to get name of first application process whose frontmost is true`)
	if err != nil {
		return "", "", err
	}
	title, err := d.run(ctx, `tell application "System Events" to tell (first application process whose frontmost is true) to get name of front window`)
	if err != nil {
		// Some apps expose no window title (e.g. menu-bar-only agents); treat as empty, not fatal.
		title = ""
	}
	return app, title, nil
}

func lookPathOK(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// WaitFor blocks for d or until ctx is cancelled, whichever comes first; the
// tool layer's `wait` action uses this so every blocking primitive in this
// package honors ctx cancellation the same way.
func WaitFor(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
