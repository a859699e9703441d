// Package tools implements C12: the tool registry, the closed set of
// built-in tools, and structural validation for user-defined tools
// (spec.md §4.8), grounded on the teacher's `pkg/tools` (`Tool`,
// `FunctionDefinition`, `ToolCall`) shapes, narrowed to the plain
// name/description/JSON-schema triple this runtime's marker-based
// tool-call wire format needs.
package tools

import (
	"context"

	"github.com/edombelayneh/Qlippy/pkg/qerrors"
)

// Tool describes one callable tool (entity T from spec.md §3).
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema for the arguments object
	Enabled     bool
}

// Call is a parsed invocation request (the payload of the
// `{"tool_call": {...}}` marker, spec.md §4.8).
type Call struct {
	Name      string
	Arguments map[string]any
}

// Adapter executes a Call's arguments and returns a short human-readable
// result string, mirroring the teacher's `ToolCallResult.Output` shape.
type Adapter interface {
	Invoke(ctx context.Context, arguments map[string]any) (string, error)
}

type registration struct {
	tool    Tool
	adapter Adapter
}

// Registry holds every registered tool by name (names unique, per spec.md
// §3's Tool invariant).
type Registry struct {
	entries map[string]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Register adds or replaces a tool definition and its adapter.
func (r *Registry) Register(t Tool, adapter Adapter) error {
	if t.Name == "" {
		return qerrors.New(qerrors.InputInvalid, "tool name must not be empty")
	}
	r.entries[t.Name] = registration{tool: t, adapter: adapter}
	return nil
}

// Get looks up a tool definition by name.
func (r *Registry) Get(name string) (Tool, bool) {
	e, ok := r.entries[name]
	return e.tool, ok
}

// List returns every enabled tool's definition, for prompt schema
// formatting (spec.md §4.8 "the formatted tool schemas").
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.entries))
	for _, e := range r.entries {
		if e.tool.Enabled {
			out = append(out, e.tool)
		}
	}
	return out
}

// Invoke dispatches a parsed Call to its adapter. Any adapter error is
// surfaced as a result string prefixed with "Tool execution error: "
// instead of propagated, matching spec.md §4.8's TOOL-node contract. An
// unknown or disabled tool is returned as an error, not a result string.
func (r *Registry) Invoke(ctx context.Context, call Call) (string, error) {
	e, ok := r.entries[call.Name]
	if !ok {
		return "", qerrors.New(qerrors.NotFound, "unknown tool: "+call.Name)
	}
	if !e.tool.Enabled {
		return "", qerrors.New(qerrors.PreconditionFailed, "tool is disabled: "+call.Name)
	}

	out, err := e.adapter.Invoke(ctx, call.Arguments)
	if err != nil {
		return "Tool execution error: " + err.Error(), nil
	}
	return out, nil
}
