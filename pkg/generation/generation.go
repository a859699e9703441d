// Package generation implements C11: the process-wide LLM handle, prompt
// composition, and the streaming token-event contract of spec.md §4.7,
// grounded on the teacher's `pkg/runtime.LocalRuntime.RunStream` (buffered
// event channel fed by a goroutine, terminal done/error events) and its
// `pkg/server` SSE framing (`data: <json>\n\n`, flush per event).
package generation

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/edombelayneh/Qlippy/pkg/conversation"
	"github.com/edombelayneh/Qlippy/pkg/qerrors"
	"github.com/edombelayneh/Qlippy/pkg/retrieval"
	"github.com/edombelayneh/Qlippy/pkg/settings"
)

// Request is the input to GenerateStream (spec.md §6 `POST /generate`).
type Request struct {
	Prompt            string
	ConversationID    string
	DirectoryIDs      []string
	TopK              *int
	MinScore          *float32
	UseEnhancedMemory bool
}

// Service ties the LLM handle, retrieval, and conversation history together
// behind the prompt-composition and streaming contract of spec.md §4.7.
type Service struct {
	Handle        *Handle
	ModelID       string
	Retrieval     *retrieval.Service // nil disables RAG augmentation entirely
	Conversations *conversation.Store
	Settings      func() settings.Settings
}

// GenerateStream resolves RAG context (if enabled and a conversation has
// linked directories), composes the prompt, and streams events on the
// returned channel in the order spec.md §4.7/§179 requires: an optional
// context_info first, then tokens in order, then a terminal done or error.
// The channel is closed once the terminal event has been sent.
func (s *Service) GenerateStream(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, 64)

	go func() {
		defer close(events)

		cfg := s.Settings()

		var chunks []retrieval.Chunk
		if req.UseEnhancedMemory && s.Retrieval != nil {
			var err error
			chunks, err = s.Retrieval.Retrieve(ctx, retrieval.Request{
				Query:          req.Prompt,
				ConversationID: req.ConversationID,
				DirectoryIDs:   req.DirectoryIDs,
				TopK:           req.TopK,
				MinScore:       req.MinScore,
			})
			if err != nil {
				events <- ErrorEvent{Error: err.Error()}
				return
			}
		}

		contextBlock := retrieval.FormatContext(chunks, cfg.MaxContextLength)

		history, err := s.loadHistory(ctx, req.ConversationID)
		if err != nil {
			events <- ErrorEvent{Error: err.Error()}
			return
		}

		if contextBlock != "" {
			sources := make([]string, 0, len(chunks))
			for _, c := range chunks {
				sources = append(sources, c.FilePath)
			}
			events <- ContextInfoEvent{ContextInfo: ContextInfo{
				RAGChunks:           len(chunks),
				ConversationHistory: len(history),
				Sources:             sources,
			}}
		}

		prompt := ComposePrompt(PromptInput{
			SystemPrompt:    cfg.SystemPrompt,
			AdditionalRules: cfg.AdditionalRules,
			ContextBlock:    contextBlock,
			History:         history,
			HistoryWindow:   cfg.HistoryWindow,
			Query:           req.Prompt,
		})

		contextWindow := s.Handle.ContextWindow()
		if contextWindow == 0 {
			contextWindow = cfg.ContextWindow
		}
		maxTokens := ClampMaxTokens(prompt, contextWindow, cfg.MinOutputTokens, cfg.MaxOutputTokens)
		stops := UnionStops(cfg.Stops)

		stream, err := s.Handle.Complete(ctx, s.ModelID, prompt, CompletionOptions{MaxTokens: maxTokens, Stops: stops})
		if err != nil {
			events <- ErrorEvent{Error: err.Error()}
			return
		}
		defer stream.Close()

		s.streamTokens(ctx, stream, events)
	}()

	return events
}

// streamTokens pumps tokens from stream to events, yielding to the scheduler
// after every emission so HTTP flushes aren't coalesced (spec.md §5 "every
// token emission yields"), and stopping at the next token boundary if ctx
// is cancelled. Cancellation is handled silently per spec.md §7's
// `Cancelled` row ("Silently; release resources"): the channel is simply
// closed with no terminal event, not treated as a failure.
func (s *Service) streamTokens(ctx context.Context, stream TokenStream, events chan<- Event) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		tok, ok, err := stream.Next()
		if err != nil {
			events <- ErrorEvent{Error: qerrors.Wrap(qerrors.ModelFailure, "token stream failed", err).Error()}
			return
		}
		if !ok {
			events <- DoneEvent{Done: true}
			return
		}

		events <- TokenEvent{Token: tok}
		runtime.Gosched()
	}
}

func (s *Service) loadHistory(ctx context.Context, conversationID string) ([]HistoryMessage, error) {
	if s.Conversations == nil || conversationID == "" {
		return nil, nil
	}
	msgs, err := s.Conversations.Messages(ctx, conversationID)
	if err != nil {
		if qerrors.KindOf(err) == qerrors.NotFound {
			return nil, nil
		}
		slog.Warn("failed to load conversation history", "conversation_id", conversationID, "error", err)
		return nil, nil
	}
	out := make([]HistoryMessage, len(msgs))
	for i, m := range msgs {
		out[i] = HistoryMessage{Role: m.Role, Content: m.Content}
	}
	return out, nil
}
