package server

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/edombelayneh/Qlippy/pkg/conversation"
	"github.com/edombelayneh/Qlippy/pkg/qerrors"
	"github.com/edombelayneh/Qlippy/pkg/toolloop"
)

func (s *Server) listTools(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Tools.List())
}

type toolsExecuteRequest struct {
	ConversationID string `json:"conversation_id"`
	Prompt         string `json:"prompt"`
}

// machineFor builds a Machine bound to the current LLM handle and settings,
// matching spec.md §4.8's "state transitions happen only at message
// boundaries" — the Completer drains a full model message before the
// state machine inspects it for a tool-call marker.
func (s *Server) machineFor() *toolloop.Machine {
	cfg := s.Settings.Get()
	completer := &toolloop.HandleCompleter{
		Handle:    s.Generation.Handle,
		ModelID:   s.Generation.ModelID,
		MaxTokens: cfg.MaxOutputTokens,
		Stops:     cfg.Stops,
	}
	return &toolloop.Machine{
		LLM:           completer,
		Tools:         s.Tools,
		ExecutionLog:  s.ExecutionLog,
		Conversations: s.Conversations,
	}
}

func (s *Server) toolsExecute(c echo.Context) error {
	var req toolsExecuteRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, qerrors.Wrap(qerrors.InputInvalid, "invalid request body", err))
	}
	if req.Prompt == "" {
		return errorJSON(c, qerrors.New(qerrors.InputInvalid, "prompt is required"))
	}

	result, err := s.machineFor().Run(c.Request().Context(), req.ConversationID, req.Prompt)
	if err != nil {
		return errorJSON(c, err)
	}

	var messages []conversation.Message
	if req.ConversationID != "" {
		if msgs, err := s.Conversations.Messages(c.Request().Context(), req.ConversationID); err == nil {
			messages = msgs
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"response":     result.FinalResponse,
		"tools_called": toolsCalledList(result),
		"messages":     messages,
		"success":      true,
	})
}

func toolsCalledList(result toolloop.Result) []string {
	if !result.ToolCalled {
		return nil
	}
	return []string{result.ToolName}
}

// toolsStream streams the same Run outcome as a sequence of progress
// markers plus a terminal result line, since the two-node graph produces
// one observable transition (LLM -> TOOL) rather than per-token events.
func (s *Server) toolsStream(c echo.Context) error {
	var req toolsExecuteRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, qerrors.Wrap(qerrors.InputInvalid, "invalid request body", err))
	}
	if req.Prompt == "" {
		return errorJSON(c, qerrors.New(qerrors.InputInvalid, "prompt is required"))
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/plain; charset=utf-8")
	resp.Header().Set("Cache-Control", "no-cache, no-transform")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("Transfer-Encoding", "chunked")
	resp.WriteHeader(http.StatusOK)

	writeLine(resp, map[string]string{"status": "running"})

	result, err := s.machineFor().Run(c.Request().Context(), req.ConversationID, req.Prompt)
	if err != nil {
		writeLine(resp, map[string]string{"status": "error", "error": err.Error()})
		return nil
	}

	writeLine(resp, map[string]any{
		"status":       "done",
		"response":     result.FinalResponse,
		"tools_called": toolsCalledList(result),
	})
	return nil
}

func writeLine(resp *echo.Response, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	resp.Write(append(data, '\n'))
	resp.Flush()
}
