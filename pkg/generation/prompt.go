package generation

import (
	"fmt"
	"strings"

	"github.com/edombelayneh/Qlippy/pkg/conversation"
)

// HistoryMessage is the minimal shape the prompt composer needs from a
// conversation's message history (decoupled from pkg/conversation.Message
// so callers can also feed in-flight messages that aren't persisted yet).
type HistoryMessage struct {
	Role    conversation.Role
	Content string
}

// PromptInput is everything ComposePrompt needs to build the final prompt
// fed to the LLM (spec.md §4.7 "Generation prompt composition").
type PromptInput struct {
	SystemPrompt    string
	AdditionalRules string
	ContextBlock    string // output of retrieval.FormatContext; "" if none
	History         []HistoryMessage
	HistoryWindow   int
	Query           string
}

// ComposePrompt builds the prompt in the exact order spec.md §4.7 mandates:
// system prompt (+ additional rules), RAG context block, last N history
// messages, current query, and the trailing "\nAssistant:" continuation
// token.
func ComposePrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString(in.SystemPrompt)
	if in.AdditionalRules != "" {
		b.WriteString("\n\nADDITIONAL RULES\n")
		b.WriteString(in.AdditionalRules)
	}

	if in.ContextBlock != "" {
		b.WriteString("\n\n[File/Document Context (RAG)]\n")
		b.WriteString(in.ContextBlock)
		b.WriteString("\n---")
	}

	history := in.History
	if in.HistoryWindow > 0 && len(history) > in.HistoryWindow {
		history = history[len(history)-in.HistoryWindow:]
	}
	for _, m := range history {
		b.WriteString("\n")
		b.WriteString(renderTurn(m.Role, m.Content))
	}

	b.WriteString("\n[Current Query]\nHuman: ")
	b.WriteString(in.Query)
	b.WriteString("\nAssistant:")

	return b.String()
}

func renderTurn(role conversation.Role, content string) string {
	switch role {
	case conversation.RoleUser:
		return fmt.Sprintf("Human: %s", content)
	case conversation.RoleAssistant:
		return fmt.Sprintf("Assistant: %s", content)
	default:
		return fmt.Sprintf("System: %s", content)
	}
}

// wordCount counts whitespace-separated words; ClampMaxTokens scales it by
// 0.75 to estimate the prompt's token count.
func wordCount(s string) int {
	return len(strings.Fields(s))
}

// ClampMaxTokens implements spec.md §4.7's max_tokens formula:
// clamp(context_window - estimated_prompt_tokens, min_out, configured_max_out).
func ClampMaxTokens(prompt string, contextWindow, minOut, maxOut int) int {
	estimated := int(0.75 * float64(wordCount(prompt)))
	budget := contextWindow - estimated
	if budget < minOut {
		return minOut
	}
	if budget > maxOut {
		return maxOut
	}
	return budget
}

// UnionStops merges the fixed stop sequences with the caller's configured
// stops, de-duplicating while preserving first-seen order.
func UnionStops(configured []string) []string {
	fixed := []string{"</s>", "<|endoftext|>", "\nUser:"}
	seen := make(map[string]bool, len(fixed)+len(configured))
	out := make([]string, 0, len(fixed)+len(configured))
	for _, s := range append(fixed, configured...) {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
