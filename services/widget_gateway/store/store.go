// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store defines the persistence contracts for the widget gateway.
//
// The conversation engine only sees these interfaces; the concrete
// backends live in the sqlite (message log) and badgerkv (widget config)
// subpackages. Both backends are safe for concurrent use across
// conversations; per-conversation append order is guaranteed by the
// backend, not by callers.
package store

import (
	"context"
	"errors"

	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/datatypes"
)

// ErrConfigNotFound is returned by ConfigStore.GetConfig when no
// configuration exists for a widget id.
var ErrConfigNotFound = errors.New("widget configuration not found")

// MessageStore is the append-only conversation transcript log.
type MessageStore interface {
	// SaveMessage appends one message. Messages are immutable once written.
	SaveMessage(ctx context.Context, msg *datatypes.ChatMessage) error

	// RecentHistory returns up to limit of the most recent messages for a
	// conversation, ordered oldest-first.
	RecentHistory(ctx context.Context, conversationID string, limit int) ([]datatypes.ChatMessage, error)

	// FullHistory returns the complete transcript for a conversation,
	// ordered oldest-first.
	FullHistory(ctx context.Context, conversationID string) ([]datatypes.ChatMessage, error)

	// ListConversations returns up to limit conversation summaries,
	// newest conversation first.
	ListConversations(ctx context.Context, limit int) ([]datatypes.ConversationSummary, error)
}

// ConfigStore holds per-widget configuration written by the dashboard.
type ConfigStore interface {
	// SaveConfig stores or replaces the configuration for a widget id.
	SaveConfig(ctx context.Context, widgetID string, cfg *datatypes.WidgetConfig) error

	// GetConfig returns the configuration for a widget id, or
	// ErrConfigNotFound.
	GetConfig(ctx context.Context, widgetID string) (*datatypes.WidgetConfig, error)
}
