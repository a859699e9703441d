package toolloop

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edombelayneh/Qlippy/pkg/conversation"
	"github.com/edombelayneh/Qlippy/pkg/qerrors"
	"github.com/edombelayneh/Qlippy/pkg/tools"
)

// Completer runs the LLM to completion for one prompt, returning its full
// text output. It is the seam between this package's graph executor and
// pkg/generation's streaming Handle — callers adapt a Handle by draining
// its TokenStream, since the state machine's transition predicate needs
// the complete model message, not individual tokens (spec.md §4.8:
// "state transitions happen only at message boundaries").
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Machine drives the two-node graph (LLM -> maybe-TOOL -> END) described in
// spec.md §4.8, grounded on the teacher's `pkg/runtime` event-driven
// execution and `tool_executor.go` dispatch pattern.
type Machine struct {
	LLM           Completer
	Tools         *tools.Registry
	ExecutionLog  *ExecutionLog
	Conversations *conversation.Store // optional; nil skips auxiliary-message persistence
}

// Result is the outcome of one Machine.Run call.
type Result struct {
	// FinalResponse is the content of the last non-system message: the
	// plain LLM answer when no tool was called, or the tool's result
	// string when one was.
	FinalResponse string
	ToolCalled    bool
	ToolName      string
}

// Run executes one pass of the graph for conversationID: LLM, then TOOL if
// (and only if) the model's output contains a parsed tool-call marker, then
// END. A single tool round-trip per turn; deeper chains are an explicit
// non-goal (spec.md §4.8).
func (m *Machine) Run(ctx context.Context, conversationID, prompt string) (Result, error) {
	output, err := m.LLM.Complete(ctx, prompt)
	if err != nil {
		return Result{}, qerrors.Wrap(qerrors.ModelFailure, "LLM node failed", err)
	}

	call, ok := Parse(output)
	if !ok {
		return Result{FinalResponse: output}, nil
	}

	result, err := m.invokeTool(ctx, call)
	if err != nil {
		return Result{}, err
	}

	argsJSON, _ := json.Marshal(call.Arguments)
	if m.ExecutionLog != nil {
		if _, err := m.ExecutionLog.Append(ctx, conversationID, call.Name, string(argsJSON), result); err != nil {
			return Result{}, err
		}
	}
	if m.Conversations != nil {
		_, _ = m.Conversations.AddMessage(ctx, conversationID, conversation.RoleAssistant, output)
		_, _ = m.Conversations.AddMessage(ctx, conversationID, conversation.RoleAssistant, result)
	}

	return Result{FinalResponse: result, ToolCalled: true, ToolName: call.Name}, nil
}

// invokeTool dispatches to the registry. Any adapter exception is already
// caught by tools.Registry.Invoke and surfaced as a "Tool execution error: "
// prefixed result string (spec.md §4.8); an unknown/disabled tool lookup
// failure is wrapped the same way here so both failure modes look
// identical to the conversation.
func (m *Machine) invokeTool(ctx context.Context, call ParsedCall) (string, error) {
	result, err := m.Tools.Invoke(ctx, tools.Call{Name: call.Name, Arguments: call.Arguments})
	if err != nil {
		return fmt.Sprintf("Tool execution error: %v", err), nil
	}
	return result, nil
}
