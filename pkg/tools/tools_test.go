package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	output string
	err    error
}

func (s stubAdapter) Invoke(context.Context, map[string]any) (string, error) {
	return s.output, s.err
}

func TestRegistryInvokeReturnsAdapterOutput(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Tool{Name: "echo", Enabled: true}, stubAdapter{output: "hi"}))

	out, err := reg.Invoke(context.Background(), Call{Name: "echo"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestRegistryInvokeWrapsAdapterErrorAsResultString(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Tool{Name: "boom", Enabled: true}, stubAdapter{err: errors.New("kaboom")}))

	out, err := reg.Invoke(context.Background(), Call{Name: "boom"})
	require.NoError(t, err)
	assert.Equal(t, "Tool execution error: kaboom", out)
}

func TestRegistryInvokeUnknownToolErrors(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Invoke(context.Background(), Call{Name: "nope"})
	assert.Error(t, err)
}

func TestRegistryInvokeDisabledToolErrors(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Tool{Name: "off", Enabled: false}, stubAdapter{output: "never"}))
	_, err := reg.Invoke(context.Background(), Call{Name: "off"})
	assert.Error(t, err)
}

func TestRegistryListOnlyReturnsEnabled(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Tool{Name: "on", Enabled: true}, stubAdapter{}))
	require.NoError(t, reg.Register(Tool{Name: "off", Enabled: false}, stubAdapter{}))

	list := reg.List()
	require.Len(t, list, 1)
	assert.Equal(t, "on", list[0].Name)
}
