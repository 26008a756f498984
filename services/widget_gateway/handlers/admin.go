// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/datatypes"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/engine"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/store"
)

// conversationListLimit caps the admin conversation listing.
const conversationListLimit = 50

// RequireAdminSecret guards the admin group with a shared bearer secret.
// An empty configured secret disables the admin surface entirely rather
// than leaving it open.
func RequireAdminSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin API is not configured"})
			return
		}

		auth := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// SaveWidgetConfig handles POST /api/config.
func SaveWidgetConfig(configs store.ConfigStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.SaveConfigRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		req.Config.WidgetID = req.WidgetID
		if err := configs.SaveConfig(c.Request.Context(), req.WidgetID, req.Config); err != nil {
			slog.Error("Failed to save widget config", "widgetId", req.WidgetID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save config"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "widgetId": req.WidgetID})
	}
}

// GetWidgetConfig handles GET /api/config/:widgetId.
func GetWidgetConfig(configs store.ConfigStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		widgetID := c.Param("widgetId")
		cfg, err := configs.GetConfig(c.Request.Context(), widgetID)
		if errors.Is(err, store.ErrConfigNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "config not found"})
			return
		}
		if err != nil {
			slog.Error("Failed to load widget config", "widgetId", widgetID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load config"})
			return
		}
		c.JSON(http.StatusOK, cfg)
	}
}

// GetConversationHistory handles GET /api/history/:conversationId. It
// returns the full ordered transcript, including messages from turns that
// later failed.
func GetConversationHistory(messages store.MessageStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationId")
		history, err := messages.FullHistory(c.Request.Context(), conversationID)
		if err != nil {
			slog.Error("Failed to load conversation history",
				"conversationId", conversationID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
			return
		}
		if history == nil {
			history = []datatypes.ChatMessage{}
		}
		c.JSON(http.StatusOK, gin.H{"messages": history})
	}
}

// RequestTakeover handles POST /api/takeover/:conversationId. The switch
// is one-way; repeating the call is harmless.
func RequestTakeover(registry *engine.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationId")
		session := registry.Session(conversationID)
		session.RequestTakeover(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"status":         "success",
			"conversationId": conversationID,
			"mode":           session.Mode(),
		})
	}
}

// ListConversations handles GET /api/conversations.
func ListConversations(messages store.MessageStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		summaries, err := messages.ListConversations(c.Request.Context(), conversationListLimit)
		if err != nil {
			slog.Error("Failed to list conversations", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
			return
		}
		if summaries == nil {
			summaries = []datatypes.ConversationSummary{}
		}
		c.JSON(http.StatusOK, gin.H{"conversations": summaries})
	}
}
