package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/edombelayneh/Qlippy/pkg/conversation"
	"github.com/edombelayneh/Qlippy/pkg/generation"
	"github.com/edombelayneh/Qlippy/pkg/qerrors"
)

type generateRequest struct {
	Prompt            string   `json:"prompt"`
	ConversationID    string   `json:"conversation_id"`
	DirectoryIDs      []string `json:"directory_ids"`
	TopK              *int     `json:"top_k"`
	MinScore          *float32 `json:"min_score"`
	UseEnhancedMemory *bool    `json:"use_enhanced_memory"`
}

func (req generateRequest) toServiceRequest() generation.Request {
	useMemory := true
	if req.UseEnhancedMemory != nil {
		useMemory = *req.UseEnhancedMemory
	}
	return generation.Request{
		Prompt:            req.Prompt,
		ConversationID:    req.ConversationID,
		DirectoryIDs:      req.DirectoryIDs,
		TopK:              req.TopK,
		MinScore:          req.MinScore,
		UseEnhancedMemory: useMemory,
	}
}

func bindGenerateRequest(c echo.Context) (generateRequest, error) {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return req, qerrors.Wrap(qerrors.InputInvalid, "invalid request body", err)
	}
	if req.Prompt == "" {
		return req, qerrors.New(qerrors.InputInvalid, "prompt is required")
	}
	return req, nil
}

// generate streams chunked text over the event kinds spec.md §4.7 defines,
// one JSON object per line, with the headers spec.md §4.9 requires so no
// intermediary buffers the response.
func (s *Server) generate(c echo.Context) error {
	req, err := bindGenerateRequest(c)
	if err != nil {
		return errorJSON(c, err)
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/plain; charset=utf-8")
	resp.Header().Set("Cache-Control", "no-cache, no-transform")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("Transfer-Encoding", "chunked")
	resp.WriteHeader(http.StatusOK)

	for event := range s.Generation.GenerateStream(c.Request().Context(), req.toServiceRequest()) {
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := resp.Write(append(data, '\n')); err != nil {
			return err
		}
		resp.Flush()
	}
	return nil
}

// generateSSE is the same stream in explicit `event: <kind>` SSE framing.
func (s *Server) generateSSE(c echo.Context) error {
	req, err := bindGenerateRequest(c)
	if err != nil {
		return errorJSON(c, err)
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	fmt.Fprint(resp, "event: start\ndata: {}\n\n")
	resp.Flush()

	for event := range s.Generation.GenerateStream(c.Request().Context(), req.toServiceRequest()) {
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}

		kind := "token"
		switch event.(type) {
		case generation.DoneEvent:
			kind = "done"
		case generation.ErrorEvent:
			kind = "error"
		case generation.ContextInfoEvent:
			kind = "context_info"
		}

		fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", kind, data)
		resp.Flush()

		if kind == "done" || kind == "error" {
			break
		}
	}
	return nil
}

type saveMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
}

func (s *Server) saveMessage(c echo.Context) error {
	var req saveMessageRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, qerrors.Wrap(qerrors.InputInvalid, "invalid request body", err))
	}
	if req.ConversationID == "" || req.Content == "" {
		return errorJSON(c, qerrors.New(qerrors.InputInvalid, "conversation_id and content are required"))
	}
	role := conversation.Role(req.Role)
	if role != conversation.RoleUser && role != conversation.RoleAssistant {
		return errorJSON(c, qerrors.New(qerrors.InputInvalid, "role must be \"user\" or \"assistant\""))
	}

	msg, err := s.Conversations.AddMessage(c.Request().Context(), req.ConversationID, role, req.Content)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "saved", "message_id": msg.ID})
}
