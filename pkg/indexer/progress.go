package indexer

import "log/slog"

// Status is one of the cooperative progress phases spec.md §4.5 names.
type Status string

const (
	StatusScanning   Status = "scanning"
	StatusIndexing   Status = "indexing"
	StatusFinalizing Status = "finalizing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// ProgressEvent is one update emitted during Index, consumed by C14's
// websocket index-stream handler.
type ProgressEvent struct {
	DirectoryID string
	Status      Status
	CurrentFile string
	Progress    float64
	Message     string
}

// emitProgress sends a non-blocking update: a slow or absent consumer never
// stalls the indexing batch (spec.md §4.5: "never blocking on I/O... drop
// event to avoid blocking"), matching the teacher's strategy.EmitEvent.
func emitProgress(sink chan<- ProgressEvent, event ProgressEvent) {
	if sink == nil {
		return
	}
	select {
	case sink <- event:
	default:
		slog.Warn("indexing progress channel full, dropping event", "directory_id", event.DirectoryID, "status", event.Status)
	}
}
