// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"time"

	"github.com/google/uuid"
)

// Sender types for persisted chat messages. "human" marks messages written
// by a human agent after a takeover; both "ai" and "human" map to the
// assistant role when history is replayed into a prompt.
const (
	SenderUser  = "user"
	SenderAI    = "ai"
	SenderHuman = "human"
)

// ChatMessage is one persisted transcript entry. Messages are append-only
// and immutable once written; ordering is by Timestamp, then insertion
// order for messages created in the same millisecond.
type ChatMessage struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderType     string `json:"sender_type"`
	Content        string `json:"content"`
	// Timestamp is Unix milliseconds UTC, matching the rest of the stack.
	Timestamp int64 `json:"timestamp"`
}

// NewChatMessage creates a ChatMessage with a generated id and the current
// timestamp.
func NewChatMessage(conversationID, senderType, content string) *ChatMessage {
	return &ChatMessage{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderType:     senderType,
		Content:        content,
		Timestamp:      time.Now().UnixMilli(),
	}
}

// HistoryRole maps a persisted sender type to the chat role used when the
// transcript window is replayed to the generator. Anything the user did not
// write is presented as the assistant side of the conversation.
func HistoryRole(senderType string) string {
	if senderType == SenderUser {
		return RoleUser
	}
	return RoleAssistant
}

// ConversationSummary is one row of the admin conversation listing:
// a conversation id and the time of its first message.
type ConversationSummary struct {
	ConversationID string `json:"conversation_id"`
	FirstMessage   int64  `json:"first_message"`
}
