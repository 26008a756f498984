// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the widget gateway service.
//
// This file contains the websocket frame protocol shared between the chat
// widget and the conversation engine. For persisted message and widget
// configuration types, see message.go and config.go.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// MaxMessageContentBytes is the maximum size of a single inbound message.
// Oversized payloads are rejected at the transport boundary before they
// reach the engine or any capability.
const MaxMessageContentBytes = 32 * 1024 // 32KB

// Outbound frame discriminators. The widget switches rendering on the
// "type" field, so these values are part of the wire contract.
const (
	// FrameToken carries one incremental piece of the AI answer.
	FrameToken = "token"
	// FrameComplete signals the end of a pipeline run. Content is optional
	// and carries system notices such as the takeover announcement.
	FrameComplete = "complete"
	// FrameError carries a user-safe failure or policy message. Internal
	// error detail never travels in this frame.
	FrameError = "error"
	// FrameTyping is reserved for a typing indicator. The pipeline itself
	// never emits it.
	FrameTyping = "typing"
)

// frameValidate is the validator instance for frame datatypes.
var frameValidate *validator.Validate

func init() {
	frameValidate = validator.New()
	_ = frameValidate.RegisterValidation("maxbytes", validateFrameMaxBytes)
}

// validateFrameMaxBytes enforces the byte limit on message content.
// Byte length, not rune count, so large multi-byte payloads cannot slip
// past the guard.
func validateFrameMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// InboundFrame is one client-to-engine websocket message.
//
// # Fields
//
//   - WidgetID: Required. Identifies which widget configuration governs
//     this turn (system prompt, tenant org).
//   - ConversationID: Optional echo of the conversation id. The id in the
//     websocket URL path is authoritative; this field is accepted for
//     older widget builds but never trusted or parsed.
//   - Message: The user's text. A message that is empty after trimming is
//     silently dropped by the engine, so it carries no validation tag.
type InboundFrame struct {
	WidgetID       string `json:"widgetId" validate:"required"`
	ConversationID string `json:"conversationId,omitempty"`
	Message        string `json:"message" validate:"maxbytes"`
}

// Validate validates the InboundFrame fields.
func (f *InboundFrame) Validate() error {
	return frameValidate.Struct(f)
}

// OutboundFrame is one engine-to-client websocket message, discriminated
// by Type (see the Frame* constants).
type OutboundFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// TokenFrame builds a FrameToken frame for one generated token.
func TokenFrame(content string) OutboundFrame {
	return OutboundFrame{Type: FrameToken, Content: content}
}

// CompleteFrame builds a FrameComplete frame. Pass an empty notice for the
// normal end-of-stream signal.
func CompleteFrame(notice string) OutboundFrame {
	return OutboundFrame{Type: FrameComplete, Content: notice}
}

// ErrorFrame builds a FrameError frame with a user-safe message.
func ErrorFrame(message string) OutboundFrame {
	return OutboundFrame{Type: FrameError, Content: message}
}

// Message is one entry in an LLM chat transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles understood by the generator capability.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
