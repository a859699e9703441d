package toolloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFindsMarkerAnywhereInOutput(t *testing.T) {
	out := `Sure, let me check that for you.
{"tool_call": {"name": "open_file", "arguments": {"path": "/tmp/a.txt"}}}`

	call, ok := Parse(out)
	require.True(t, ok)
	assert.Equal(t, "open_file", call.Name)
	assert.Equal(t, "/tmp/a.txt", call.Arguments["path"])
}

func TestParseHandlesNestedBraces(t *testing.T) {
	out := `{"tool_call": {"name": "search", "arguments": {"filter": {"type": "object", "nested": {"a": 1}}}}}`
	call, ok := Parse(out)
	require.True(t, ok)
	assert.Equal(t, "search", call.Name)
	filter, ok := call.Arguments["filter"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", filter["type"])
}

func TestParseIgnoresBracesInsideStrings(t *testing.T) {
	out := `{"tool_call": {"name": "echo", "arguments": {"text": "a } b { c"}}}`
	call, ok := Parse(out)
	require.True(t, ok)
	assert.Equal(t, "a } b { c", call.Arguments["text"])
}

func TestParseReturnsFalseWithNoMarker(t *testing.T) {
	_, ok := Parse("just a plain answer")
	assert.False(t, ok)
}

func TestParseReturnsFalseOnUnbalancedBraces(t *testing.T) {
	_, ok := Parse(`{"tool_call": {"name": "x"`)
	assert.False(t, ok)
}

func TestParseReturnsFalseWhenNameMissing(t *testing.T) {
	_, ok := Parse(`{"tool_call": {"arguments": {}}}`)
	assert.False(t, ok)
}
