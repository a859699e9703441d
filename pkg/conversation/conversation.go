// Package conversation implements the conversation/message store (entities
// V, G, X from spec.md §3): conversations, their messages, and which
// directories each conversation has linked for retrieval.
package conversation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/edombelayneh/Qlippy/pkg/qerrors"
	"github.com/edombelayneh/Qlippy/pkg/sqliteutil"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	last_updated TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);

CREATE TABLE IF NOT EXISTS conversation_directories (
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	directory_id TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (conversation_id, directory_id)
);
`

// Role is the producer-side enum for Message.Role (spec.md §3: "user" or
// "assistant").
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Conversation mirrors entity V.
type Conversation struct {
	ID          string
	Title       string
	LastUpdated time.Time
}

// Message mirrors entity G.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	CreatedAt      time.Time
}

// Store wraps a *sql.DB configured per pkg/sqliteutil conventions.
type Store struct {
	db *sql.DB
}

// Open creates the conversation schema (idempotently) on db.
func Open(db *sql.DB) (*Store, error) {
	if err := sqliteutil.RunMigrations(db, []string{schemaSQL}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// CreateConversation creates a new conversation with a generated id.
func (s *Store) CreateConversation(ctx context.Context, title string) (Conversation, error) {
	now := time.Now().UTC()
	c := Conversation{ID: uuid.NewString(), Title: title, LastUpdated: now}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, title, last_updated) VALUES (?, ?, ?)
	`, c.ID, c.Title, c.LastUpdated.Format(time.RFC3339))
	if err != nil {
		return Conversation{}, qerrors.Wrap(qerrors.IOFailure, "failed to insert conversation", err)
	}
	return c, nil
}

// GetConversation fetches a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (Conversation, error) {
	var c Conversation
	var lastUpdated string
	err := s.db.QueryRowContext(ctx, `SELECT id, title, last_updated FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.Title, &lastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, qerrors.New(qerrors.NotFound, "conversation not found")
		}
		return Conversation{}, qerrors.Wrap(qerrors.IOFailure, "failed to load conversation", err)
	}
	t, err := time.Parse(time.RFC3339, lastUpdated)
	if err != nil {
		return Conversation{}, qerrors.Wrap(qerrors.IOFailure, "failed to parse last_updated", err)
	}
	c.LastUpdated = t
	return c, nil
}

// DeleteConversation removes a conversation, cascading to its messages and
// directory links via the ON DELETE CASCADE foreign keys (spec.md §3:
// "deleting V cascades to all its G").
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to delete conversation", err)
	}
	return nil
}

// AddMessage appends a message and bumps the conversation's last_updated.
func (s *Store) AddMessage(ctx context.Context, conversationID string, role Role, content string) (Message, error) {
	now := time.Now().UTC()
	m := Message{ID: uuid.NewString(), ConversationID: conversationID, Role: role, Content: content, CreatedAt: now}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, qerrors.Wrap(qerrors.IOFailure, "failed to begin add-message transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.ConversationID, string(m.Role), m.Content, m.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return Message{}, qerrors.Wrap(qerrors.IOFailure, "failed to insert message", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE conversations SET last_updated = ? WHERE id = ?`, m.CreatedAt.Format(time.RFC3339), conversationID)
	if err != nil {
		return Message{}, qerrors.Wrap(qerrors.IOFailure, "failed to bump conversation last_updated", err)
	}

	if err := tx.Commit(); err != nil {
		return Message{}, qerrors.Wrap(qerrors.IOFailure, "failed to commit add-message", err)
	}
	return m, nil
}

// Messages lists every message for a conversation, oldest first.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at FROM messages
		WHERE conversation_id = ? ORDER BY created_at ASC
	`, conversationID)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.IOFailure, "failed to list messages", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var role, createdAt string
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &createdAt); err != nil {
			return nil, qerrors.Wrap(qerrors.IOFailure, "failed to scan message row", err)
		}
		m.Role = Role(role)
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, qerrors.Wrap(qerrors.IOFailure, "failed to parse message created_at", err)
		}
		m.CreatedAt = t
		out = append(out, m)
	}
	return out, rows.Err()
}

// LinkDirectory activates X(conversation_id, directory_id) (upserting if
// the pair already exists but was previously deactivated).
func (s *Store) LinkDirectory(ctx context.Context, conversationID, directoryID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_directories (conversation_id, directory_id, active) VALUES (?, ?, 1)
		ON CONFLICT(conversation_id, directory_id) DO UPDATE SET active = 1
	`, conversationID, directoryID)
	if err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to link directory to conversation", err)
	}
	return nil
}

// UnlinkDirectory deactivates X(conversation_id, directory_id).
func (s *Store) UnlinkDirectory(ctx context.Context, conversationID, directoryID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversation_directories SET active = 0 WHERE conversation_id = ? AND directory_id = ?
	`, conversationID, directoryID)
	if err != nil {
		return qerrors.Wrap(qerrors.IOFailure, "failed to unlink directory from conversation", err)
	}
	return nil
}

// ActiveDirectories returns the set {D : X(conversation_id, D) active},
// the resolution spec.md §4.7 retrieval falls back to when no explicit
// directory_ids are given.
func (s *Store) ActiveDirectories(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT directory_id FROM conversation_directories WHERE conversation_id = ? AND active = 1
	`, conversationID)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.IOFailure, "failed to list active directories for conversation", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, qerrors.Wrap(qerrors.IOFailure, "failed to scan directory id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
