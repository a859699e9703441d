package toolloop

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/edombelayneh/Qlippy/pkg/qerrors"
	"github.com/edombelayneh/Qlippy/pkg/sqliteutil"
)

const executionLogSchemaSQL = `
CREATE TABLE IF NOT EXISTS tool_executions (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	tool_name TEXT NOT NULL,
	arguments TEXT NOT NULL,
	result TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tool_executions_conversation ON tool_executions(conversation_id);
`

// ExecutionRecord mirrors entity L (spec.md §3): tool name, serialized
// arguments, serialized result (or error text), timestamp. Append-only.
type ExecutionRecord struct {
	ID             string
	ConversationID string
	ToolName       string
	Arguments      string
	Result         string
	CreatedAt      time.Time
}

// ExecutionLog is the append-only store for L, grounded on the teacher's
// `pkg/session` sqlite conventions used throughout the rest of this
// repository's storage packages.
type ExecutionLog struct {
	db *sql.DB
}

// OpenExecutionLog creates the execution-log schema (idempotently) on db.
func OpenExecutionLog(db *sql.DB) (*ExecutionLog, error) {
	if err := sqliteutil.RunMigrations(db, []string{executionLogSchemaSQL}); err != nil {
		return nil, err
	}
	return &ExecutionLog{db: db}, nil
}

// Append writes one tool-execution row. Rows are never updated or deleted.
func (l *ExecutionLog) Append(ctx context.Context, conversationID, toolName, arguments, result string) (ExecutionRecord, error) {
	rec := ExecutionRecord{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		ToolName:       toolName,
		Arguments:      arguments,
		Result:         result,
		CreatedAt:      time.Now().UTC(),
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO tool_executions (id, conversation_id, tool_name, arguments, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.ConversationID, rec.ToolName, rec.Arguments, rec.Result, rec.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return ExecutionRecord{}, qerrors.Wrap(qerrors.IOFailure, "failed to append tool execution record", err)
	}
	return rec, nil
}

// ForConversation lists every execution record for a conversation, oldest
// first.
func (l *ExecutionLog) ForConversation(ctx context.Context, conversationID string) ([]ExecutionRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, conversation_id, tool_name, arguments, result, created_at
		FROM tool_executions WHERE conversation_id = ? ORDER BY created_at ASC
	`, conversationID)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.IOFailure, "failed to list tool executions", err)
	}
	defer rows.Close()

	var out []ExecutionRecord
	for rows.Next() {
		var rec ExecutionRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.ConversationID, &rec.ToolName, &rec.Arguments, &rec.Result, &createdAt); err != nil {
			return nil, qerrors.Wrap(qerrors.IOFailure, "failed to scan tool execution row", err)
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, qerrors.Wrap(qerrors.IOFailure, "failed to parse tool execution created_at", err)
		}
		rec.CreatedAt = t
		out = append(out, rec)
	}
	return out, rows.Err()
}
