package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{"type": "string"},
		},
		"required": []string{"city"},
	}
}

func TestValidateAcceptsWellFormedSpec(t *testing.T) {
	result := Validate(UserDefinedSpec{
		Name:            "get_weather",
		Description:     "Fetch current weather for a city",
		ParameterSchema: validSchema(),
	})
	assert.True(t, result.Valid())
	assert.Empty(t, result.Offenses)
}

func TestValidateRejectsMissingName(t *testing.T) {
	result := Validate(UserDefinedSpec{ParameterSchema: validSchema()})
	assert.False(t, result.Valid())
	assert.Contains(t, result.Offenses, "name is required")
}

func TestValidateRejectsMissingSchema(t *testing.T) {
	result := Validate(UserDefinedSpec{Name: "x"})
	assert.False(t, result.Valid())
}

func TestValidateWarnsOnMissingDescription(t *testing.T) {
	result := Validate(UserDefinedSpec{Name: "x", ParameterSchema: validSchema()})
	assert.True(t, result.Valid())
	assert.Contains(t, result.Warnings, "description is empty")
}

func TestValidateRejectsMalformedSchema(t *testing.T) {
	result := Validate(UserDefinedSpec{
		Name:            "bad",
		Description:     "d",
		ParameterSchema: map[string]any{"type": 12345},
	})
	assert.False(t, result.Valid())
}

func TestRegisterUserDefinedAddsToolOnSuccess(t *testing.T) {
	reg := NewRegistry()
	_, err := RegisterUserDefined(reg, UserDefinedSpec{
		Name:            "get_weather",
		Description:     "Fetch current weather",
		ParameterSchema: validSchema(),
	}, stubAdapter{output: "sunny"})
	require.NoError(t, err)

	_, ok := reg.Get("get_weather")
	assert.True(t, ok)
}

func TestRegisterUserDefinedRejectsInvalidSpec(t *testing.T) {
	reg := NewRegistry()
	_, err := RegisterUserDefined(reg, UserDefinedSpec{Description: "no name"}, stubAdapter{})
	require.Error(t, err)

	_, ok := reg.Get("")
	assert.False(t, ok)
}

func TestSchemaValidatingAdapterRejectsBadArguments(t *testing.T) {
	adapter, err := NewSchemaValidatingAdapter(validSchema(), stubAdapter{output: "ok"})
	require.NoError(t, err)

	_, err = adapter.Invoke(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestSchemaValidatingAdapterAllowsGoodArguments(t *testing.T) {
	adapter, err := NewSchemaValidatingAdapter(validSchema(), stubAdapter{output: "ok"})
	require.NoError(t, err)

	out, err := adapter.Invoke(context.Background(), map[string]any{"city": "Paris"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}
