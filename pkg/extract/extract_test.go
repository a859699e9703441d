package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.md")
	require.NoError(t, os.WriteFile(path, []byte("# Hello"), 0o644))

	result := Extract(path)
	assert.Equal(t, "# Hello", result.Text)
	assert.Equal(t, "text", result.ExtractionMethod)
	assert.Equal(t, "utf-8", result.Metadata["encoding"])
}

func TestExtractCodePrependsHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.py")
	require.NoError(t, os.WriteFile(path, []byte("print(1)"), 0o644))

	result := Extract(path)
	assert.Contains(t, result.Text, "# File: ")
	assert.Contains(t, result.Text, "print(1)")
}

func TestExtractFallbackUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.xyz")
	require.NoError(t, os.WriteFile(path, []byte("whatever"), 0o644))

	result := Extract(path)
	assert.Equal(t, "fallback", result.ExtractionMethod)
	assert.Equal(t, "fallback", result.Metadata["extraction_method"])
}

func TestExtractMissingFileIsNotFatal(t *testing.T) {
	result := Extract("/does/not/exist.txt")
	assert.Contains(t, result.Text, "Failed to extract")
}

func TestDetectBOM(t *testing.T) {
	enc, text := detectAndDecode(append([]byte{0xEF, 0xBB, 0xBF}, []byte("hi")...))
	assert.Equal(t, "utf-8-bom", enc)
	assert.Equal(t, "hi", text)
}
