package tools

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/registry"
)

const (
	defaultBashTimeout = 30 * time.Second
	maxBashTimeout     = 5 * time.Minute
	maxBashOutputBytes = 50_000
)

func registerExecTools(reg *registry.Registry) {
	reg.Register(registry.Definition{
		Name:        "bash",
		Description: "Run a shell command in the workspace and return its stdout/stderr/exit code.",
		Parameters: obj(map[string]any{
			"command":         str("shell command to execute"),
			"cwd":             str("working directory relative to the workspace"),
			"timeout_seconds": integer("timeout in seconds (0 uses the default)"),
		}, "command"),
	}, bashExecutor())
}

func bashExecutor() registry.Executor {
	return func(ctx context.Context, args map[string]any, ec registry.ExecContext) model.ToolResult {
		command, _ := stringArg(args, "command")
		command = strings.TrimSpace(command)
		if command == "" {
			return toolError("command is required")
		}

		timeout := time.Duration(intArg(args, "timeout_seconds", 0)) * time.Second
		if timeout <= 0 {
			timeout = defaultBashTimeout
		}
		if timeout > maxBashTimeout {
			timeout = maxBashTimeout
		}

		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		shell, shellFlag := "sh", "-c"
		if runtime.GOOS == "windows" {
			shell, shellFlag = "cmd", "/C"
		}
		cmd := exec.CommandContext(runCtx, shell, shellFlag, command)

		if cwd, _ := stringArg(args, "cwd"); cwd != "" {
			resolved, err := (pathResolver{}).resolve(ec.Workspace, cwd)
			if err != nil {
				return toolError(err.Error())
			}
			cmd.Dir = resolved
		} else if ec.Workspace != "" {
			cmd.Dir = ec.Workspace
		}

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		exitCode := 0
		timedOut := runCtx.Err() == context.DeadlineExceeded
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
			} else if !timedOut {
				return toolError("run command: %v", err)
			}
		}

		out := truncateOutput(stdout.String())
		errOut := truncateOutput(stderr.String())

		message := out
		if errOut != "" {
			message = strings.TrimRight(message, "\n") + "\n[stderr]\n" + errOut
		}
		if timedOut {
			message = strings.TrimRight(message, "\n") + "\n[command timed out]"
		}

		return toolOK(message, map[string]any{
			"exitCode": exitCode,
			"stdout":   out,
			"stderr":   errOut,
			"timedOut": timedOut,
		})
	}
}

func truncateOutput(s string) string {
	if len(s) <= maxBashOutputBytes {
		return s
	}
	return s[:maxBashOutputBytes] + "\n...[truncated]"
}
