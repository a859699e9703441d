package tools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// defaultSystemRoots is the configured set of paths delete_file MUST refuse
// (spec.md §4.8), grounded on the teacher's `FilesystemTool.isPathAllowed`
// allow-list style, inverted into a deny-list since this runtime's
// filesystem tools operate anywhere except a short blocklist.
var defaultSystemRoots = []string{"/System", "/usr", "/bin", "/sbin", "/etc"}

// OpenFileTool implements open_file(path): a short existence/readability
// check rather than actually launching a viewer, since this runtime has no
// desktop shell integration to hand off to.
type OpenFileTool struct{}

func (OpenFileTool) Invoke(_ context.Context, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return "", fmt.Errorf("missing required argument: path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory, not a file", path)
	}
	return fmt.Sprintf("Opened %s (%d bytes)", path, info.Size()), nil
}

// DeleteFileTool implements delete_file(path), refusing system paths and
// directories per spec.md §4.8.
type DeleteFileTool struct {
	SystemRoots []string
}

// NewDeleteFileTool constructs a DeleteFileTool, defaulting SystemRoots to
// defaultSystemRoots when none are given.
func NewDeleteFileTool(systemRoots []string) *DeleteFileTool {
	if len(systemRoots) == 0 {
		systemRoots = defaultSystemRoots
	}
	return &DeleteFileTool{SystemRoots: systemRoots}
}

func (t *DeleteFileTool) Invoke(_ context.Context, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return "", fmt.Errorf("missing required argument: path")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("unable to resolve path %s: %w", path, err)
	}

	for _, root := range t.SystemRoots {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if absPath == rootAbs || strings.HasPrefix(absPath, rootAbs+string(filepath.Separator)) {
			return "", fmt.Errorf("refusing to delete path under protected root %s", root)
		}
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("cannot delete %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("refusing to delete directory %s", path)
	}

	if err := os.Remove(absPath); err != nil {
		return "", fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return fmt.Sprintf("Deleted %s", path), nil
}

// OpenAppTool implements open_app(app_name), grounded on the teacher's
// `builtin` shell execution pattern (`exec.CommandContext`) but scoped to
// platform-specific app launchers instead of an arbitrary shell string.
type OpenAppTool struct{}

func (OpenAppTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	name, _ := args["app_name"].(string)
	if name == "" {
		return "", fmt.Errorf("missing required argument: app_name")
	}

	cmd := launchCommand(ctx, name)
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to open %s: %w", name, err)
	}
	return fmt.Sprintf("Opened application %s", name), nil
}

func launchCommand(ctx context.Context, name string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.CommandContext(ctx, "open", "-a", name)
	case "windows":
		return exec.CommandContext(ctx, "cmd", "/C", "start", "", name)
	default:
		return exec.CommandContext(ctx, name)
	}
}

// CloseAppTool implements close_app(app_name) via the platform process
// killer, grounded on the teacher's `cmd_unix.go`/`cmd_windows.go` kill
// helpers (process-group signal on unix, TerminateProcess on windows).
type CloseAppTool struct{}

func (CloseAppTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	name, _ := args["app_name"].(string)
	if name == "" {
		return "", fmt.Errorf("missing required argument: app_name")
	}

	cmd := killCommand(ctx, name)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", name, err)
	}
	return fmt.Sprintf("Closed application %s", name), nil
}

func killCommand(ctx context.Context, name string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin", "linux":
		return exec.CommandContext(ctx, "pkill", "-f", name)
	case "windows":
		return exec.CommandContext(ctx, "taskkill", "/IM", name, "/F")
	default:
		return exec.CommandContext(ctx, "pkill", "-f", name)
	}
}

// RegisterBuiltins registers the closed set of built-in tools (spec.md
// §4.8) onto reg, all enabled by default.
func RegisterBuiltins(reg *Registry, systemRoots []string) error {
	builtins := []struct {
		tool    Tool
		adapter Adapter
	}{
		{
			tool: Tool{
				Name:        "open_file",
				Description: "Open a file and report whether it exists and is readable.",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{"path": map[string]any{"type": "string"}},
					"required":   []string{"path"},
				},
				Enabled: true,
			},
			adapter: OpenFileTool{},
		},
		{
			tool: Tool{
				Name:        "delete_file",
				Description: "Delete a file. Refuses system paths and directories.",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{"path": map[string]any{"type": "string"}},
					"required":   []string{"path"},
				},
				Enabled: true,
			},
			adapter: NewDeleteFileTool(systemRoots),
		},
		{
			tool: Tool{
				Name:        "open_app",
				Description: "Launch an application by name.",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{"app_name": map[string]any{"type": "string"}},
					"required":   []string{"app_name"},
				},
				Enabled: true,
			},
			adapter: OpenAppTool{},
		},
		{
			tool: Tool{
				Name:        "close_app",
				Description: "Terminate a running application by name.",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{"app_name": map[string]any{"type": "string"}},
					"required":   []string{"app_name"},
				},
				Enabled: true,
			},
			adapter: CloseAppTool{},
		},
	}

	for _, b := range builtins {
		if err := reg.Register(b.tool, b.adapter); err != nil {
			return err
		}
	}
	return nil
}
