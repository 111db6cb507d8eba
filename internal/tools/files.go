package tools

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Ninot1Quyi/jarvis-sub000/internal/model"
	"github.com/Ninot1Quyi/jarvis-sub000/internal/registry"
)

const defaultMaxReadBytes = 200_000

// pathResolver keeps every file tool confined to the agent's workspace
// directory, rejecting any path (absolute or relative) that would escape it.
type pathResolver struct{}

func (pathResolver) resolve(workspace, path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}
	root := strings.TrimSpace(workspace)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(rootAbs, clean)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes workspace")
	}
	return targetAbs, nil
}

func registerFileTools(reg *registry.Registry) {
	reg.Register(registry.Definition{
		Name:        "read_file",
		Description: "Read a file from the workspace with optional offset and byte limit.",
		Parameters: obj(map[string]any{
			"path":      str("path relative to the workspace"),
			"offset":    integer("byte offset to start reading from"),
			"max_bytes": integer("maximum bytes to read"),
		}, "path"),
	}, readFileExecutor())

	reg.Register(registry.Definition{
		Name:        "write_file",
		Description: "Write content to a file in the workspace, overwriting by default.",
		Parameters: obj(map[string]any{
			"path":    str("path relative to the workspace"),
			"content": str("file contents to write"),
			"append":  boolean("append instead of overwrite"),
		}, "path", "content"),
	}, writeFileExecutor())

	reg.Register(registry.Definition{
		Name:        "edit_file",
		Description: "Apply one or more find/replace edits to a file in the workspace.",
		Parameters: obj(map[string]any{
			"path": str("path relative to the workspace"),
			"edits": map[string]any{
				"type": "array",
				"items": obj(map[string]any{
					"old_text":    str("text to replace; must appear in the file"),
					"new_text":    str("replacement text"),
					"replace_all": boolean("replace every occurrence instead of just the first"),
				}, "old_text", "new_text"),
			},
		}, "path", "edits"),
	}, editFileExecutor())

	reg.Register(registry.Definition{
		Name:        "grep",
		Description: "Search files under a workspace directory for lines matching a regular expression.",
		Parameters: obj(map[string]any{
			"pattern": str("regular expression to search for"),
			"path":    str("directory to search, relative to the workspace (default: workspace root)"),
		}, "pattern"),
	}, grepExecutor())
}

func readFileExecutor() registry.Executor {
	return func(ctx context.Context, args map[string]any, ec registry.ExecContext) model.ToolResult {
		path, _ := stringArg(args, "path")
		resolved, err := (pathResolver{}).resolve(ec.Workspace, path)
		if err != nil {
			return toolError(err.Error())
		}
		offset := int64(intArg(args, "offset", 0))
		if offset < 0 {
			return toolError("offset must be >= 0")
		}
		limit := intArg(args, "max_bytes", defaultMaxReadBytes)
		if limit <= 0 || limit > defaultMaxReadBytes {
			limit = defaultMaxReadBytes
		}

		f, err := os.Open(resolved)
		if err != nil {
			return toolError("open file: %v", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return toolError("stat file: %v", err)
		}
		if offset > 0 {
			if _, err := f.Seek(offset, io.SeekStart); err != nil {
				return toolError("seek file: %v", err)
			}
		}

		buf, err := io.ReadAll(io.LimitReader(f, int64(limit)))
		if err != nil {
			return toolError("read file: %v", err)
		}
		truncated := info.Size() > 0 && offset+int64(len(buf)) < info.Size()

		return toolOK(string(buf), map[string]any{
			"path":      path,
			"bytes":     len(buf),
			"offset":    offset,
			"truncated": truncated,
		})
	}
}

func writeFileExecutor() registry.Executor {
	return func(ctx context.Context, args map[string]any, ec registry.ExecContext) model.ToolResult {
		path, _ := stringArg(args, "path")
		content, _ := stringArg(args, "content")
		resolved, err := (pathResolver{}).resolve(ec.Workspace, path)
		if err != nil {
			return toolError(err.Error())
		}
		if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
			return toolError("create directory: %v", err)
		}

		flags := os.O_CREATE | os.O_WRONLY
		if boolArg(args, "append") {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		f, err := os.OpenFile(resolved, flags, 0o644)
		if err != nil {
			return toolError("open file: %v", err)
		}
		defer f.Close()

		n, err := f.WriteString(content)
		if err != nil {
			return toolError("write file: %v", err)
		}
		return toolOK(fmt.Sprintf("wrote %d bytes to %s", n, path), map[string]any{"path": path, "bytesWritten": n})
	}
}

func editFileExecutor() registry.Executor {
	return func(ctx context.Context, args map[string]any, ec registry.ExecContext) model.ToolResult {
		path, _ := stringArg(args, "path")
		resolved, err := (pathResolver{}).resolve(ec.Workspace, path)
		if err != nil {
			return toolError(err.Error())
		}
		rawEdits, ok := args["edits"].([]any)
		if !ok || len(rawEdits) == 0 {
			return toolError("edits is required")
		}

		data, err := os.ReadFile(resolved)
		if err != nil {
			return toolError("read file: %v", err)
		}
		content := string(data)
		replacements := 0
		for _, re := range rawEdits {
			m, ok := re.(map[string]any)
			if !ok {
				continue
			}
			oldText, _ := m["old_text"].(string)
			newText, _ := m["new_text"].(string)
			replaceAll, _ := m["replace_all"].(bool)
			if oldText == "" {
				return toolError("old_text is required")
			}
			if !strings.Contains(content, oldText) {
				return toolError("old_text not found: %q", oldText)
			}
			if replaceAll {
				replacements += strings.Count(content, oldText)
				content = strings.ReplaceAll(content, oldText, newText)
			} else {
				content = strings.Replace(content, oldText, newText, 1)
				replacements++
			}
		}

		if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
			return toolError("write file: %v", err)
		}
		return toolOK(fmt.Sprintf("applied %d replacement(s)", replacements), map[string]any{"path": path, "replacements": replacements})
	}
}

const grepMaxMatches = 200

func grepExecutor() registry.Executor {
	return func(ctx context.Context, args map[string]any, ec registry.ExecContext) model.ToolResult {
		pattern, _ := stringArg(args, "pattern")
		if pattern == "" {
			return toolError("pattern is required")
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return toolError("invalid pattern: %v", err)
		}
		dirArg, _ := stringArg(args, "path")
		if dirArg == "" {
			dirArg = "."
		}
		resolved, err := (pathResolver{}).resolve(ec.Workspace, dirArg)
		if err != nil {
			return toolError(err.Error())
		}

		var matches []string
		walkErr := filepath.WalkDir(resolved, func(p string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() || len(matches) >= grepMaxMatches {
				return nil
			}
			f, err := os.Open(p)
			if err != nil {
				return nil
			}
			defer f.Close()

			rel, _ := filepath.Rel(resolved, p)
			scanner := bufio.NewScanner(f)
			lineNum := 0
			for scanner.Scan() && len(matches) < grepMaxMatches {
				lineNum++
				line := scanner.Text()
				if re.MatchString(line) {
					matches = append(matches, fmt.Sprintf("%s:%d:%s", rel, lineNum, line))
				}
			}
			return nil
		})
		if walkErr != nil {
			return toolError("grep: %v", walkErr)
		}
		if len(matches) == 0 {
			return toolOK("no matches", map[string]any{"matches": []string{}})
		}
		return toolOK(strings.Join(matches, "\n"), map[string]any{"matches": matches})
	}
}
