// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sqlite implements store.MessageStore on an embedded SQLite
// database (modernc.org/sqlite, CGO-free).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/datatypes"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/store"
	_ "modernc.org/sqlite"
)

// Compile-time interface implementation check.
var _ store.MessageStore = (*MessageStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	sender_type     TEXT NOT NULL,
	content         TEXT NOT NULL,
	timestamp       INTEGER NOT NULL,
	seq             INTEGER
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages (conversation_id, timestamp, seq);
`

// MessageStore is the SQLite-backed transcript log.
type MessageStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the message database at path and applies
// the schema. Use ":memory:" for an ephemeral database in tests.
func Open(path string) (*MessageStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open message database at %s: %w", path, err)
	}

	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent conversations.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply message schema: %w", err)
	}

	slog.Info("Opened message store", "path", path)
	return &MessageStore{db: db}, nil
}

// Close closes the underlying database.
func (s *MessageStore) Close() error {
	return s.db.Close()
}

// SaveMessage implements store.MessageStore. The rowid-backed seq column
// breaks ties between messages written in the same millisecond.
func (s *MessageStore) SaveMessage(ctx context.Context, msg *datatypes.ChatMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender_type, content, timestamp, seq)
		 VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages))`,
		msg.ID, msg.ConversationID, msg.SenderType, msg.Content, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save message for conversation %s: %w", msg.ConversationID, err)
	}
	return nil
}

// RecentHistory implements store.MessageStore. It selects the newest limit
// rows and reverses them so callers receive the tail of the transcript
// oldest-first.
func (s *MessageStore) RecentHistory(ctx context.Context, conversationID string,
	limit int) ([]datatypes.ChatMessage, error) {

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, sender_type, content, timestamp
		 FROM messages
		 WHERE conversation_id = ?
		 ORDER BY timestamp DESC, seq DESC
		 LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent history: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Newest-first from the query; flip to oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// FullHistory implements store.MessageStore.
func (s *MessageStore) FullHistory(ctx context.Context,
	conversationID string) ([]datatypes.ChatMessage, error) {

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, sender_type, content, timestamp
		 FROM messages
		 WHERE conversation_id = ?
		 ORDER BY timestamp ASC, seq ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query full history: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListConversations implements store.MessageStore.
func (s *MessageStore) ListConversations(ctx context.Context,
	limit int) ([]datatypes.ConversationSummary, error) {

	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id, MIN(timestamp) AS first_message
		 FROM messages
		 GROUP BY conversation_id
		 ORDER BY first_message DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var summaries []datatypes.ConversationSummary
	for rows.Next() {
		var s datatypes.ConversationSummary
		if err := rows.Scan(&s.ConversationID, &s.FirstMessage); err != nil {
			return nil, fmt.Errorf("failed to scan conversation summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func scanMessages(rows *sql.Rows) ([]datatypes.ChatMessage, error) {
	var messages []datatypes.ChatMessage
	for rows.Next() {
		var m datatypes.ChatMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderType, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
