package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFileToolReportsExistingFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "test-*.txt")
	require.NoError(t, err)
	_, err = f.WriteString("hello")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out, err := (OpenFileTool{}).Invoke(context.Background(), map[string]any{"path": f.Name()})
	require.NoError(t, err)
	assert.Contains(t, out, "Opened")
}

func TestOpenFileToolRejectsDirectory(t *testing.T) {
	_, err := (OpenFileTool{}).Invoke(context.Background(), map[string]any{"path": t.TempDir()})
	assert.Error(t, err)
}

func TestDeleteFileToolRefusesSystemRoot(t *testing.T) {
	tool := NewDeleteFileTool([]string{"/usr", "/etc"})
	_, err := tool.Invoke(context.Background(), map[string]any{"path": "/usr/bin/ls"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "protected root")
}

func TestDeleteFileToolRefusesDirectory(t *testing.T) {
	tool := NewDeleteFileTool(nil)
	_, err := tool.Invoke(context.Background(), map[string]any{"path": t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")
}

func TestDeleteFileToolDeletesOrdinaryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scratch.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	tool := NewDeleteFileTool(nil)
	out, err := tool.Invoke(context.Background(), map[string]any{"path": path})
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRegisterBuiltinsRegistersAllFour(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg, nil))

	list := reg.List()
	names := make(map[string]bool, len(list))
	for _, tl := range list {
		names[tl.Name] = true
	}
	for _, want := range []string{"open_file", "delete_file", "open_app", "close_app"} {
		assert.True(t, names[want], "expected %s to be registered", want)
	}
}
