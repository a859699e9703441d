package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/edombelayneh/Qlippy/pkg/chunk"
	"github.com/edombelayneh/Qlippy/pkg/indexer"
)

// upgrader allows cross-origin WebSocket upgrades, matching the CORS
// middleware already applied to the rest of this surface; spec.md defines
// no origin restriction for the index-stream socket.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// indexStream upgrades to a WebSocket and pushes one JSON message per C8
// progress event, then a final {"status":"complete","stats":{...}}, then
// closes — spec.md §4.9.
func (s *Server) indexStream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	directoryID := c.Param("id")
	cfg := s.Settings.Get()
	progress := make(chan indexer.ProgressEvent, 16)

	done := make(chan struct {
		stats indexer.Stats
		err   error
	}, 1)

	ctx := c.Request().Context()
	go func() {
		stats, err := s.Indexer.Index(ctx, directoryID, cfg.EmbeddingModel,
			chunk.Config{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}, progress)
		close(progress)
		done <- struct {
			stats indexer.Stats
			err   error
		}{stats, err}
	}()

	for event := range progress {
		if err := conn.WriteJSON(event); err != nil {
			slog.Warn("server: index-stream write failed, draining", "error", err)
		}
	}

	result := <-done
	if result.err != nil {
		_ = conn.WriteJSON(map[string]string{"status": "error", "error": result.err.Error()})
		return nil
	}

	_ = conn.WriteJSON(map[string]any{"status": "complete", "stats": result.stats})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return nil
}
