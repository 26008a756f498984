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
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/datatypes"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/engine"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// wsChannel adapts one websocket connection to engine.OutboundChannel.
// gorilla/websocket allows a single concurrent writer, so writes are
// serialized here; the pipeline goroutine and admin-triggered sends both
// go through this mutex.
type wsChannel struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsChannel) Send(frame datatypes.OutboundFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(frame)
}

// HandleChatWebSocket upgrades GET /api/chat/:conversationId and pumps
// inbound frames into the conversation's session. The conversation id in
// the URL is authoritative; any id echoed inside a frame is ignored.
func HandleChatWebSocket(registry *engine.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationId")
		if conversationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversationId is required"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		session := registry.Session(conversationID)
		channel := &wsChannel{ws: ws}
		session.BindChannel(channel)
		defer session.DetachChannel(channel)

		slog.Info("Widget client connected", "conversationId", conversationID)
		ctx := c.Request.Context()

		for {
			_, payload, err := ws.ReadMessage()
			if err != nil {
				slog.Info("Widget client disconnected",
					"conversationId", conversationID, "error", err.Error())
				return
			}

			var frame datatypes.InboundFrame
			if err := json.Unmarshal(payload, &frame); err != nil {
				slog.Warn("Rejected unparseable inbound frame",
					"conversationId", conversationID, "error", err)
				if sendErr := channel.Send(datatypes.ErrorFrame(
					"Sorry, something went wrong. Please try again.")); sendErr != nil {
					return
				}
				continue
			}

			if err := frame.Validate(); err != nil {
				slog.Warn("Rejected invalid inbound frame",
					"conversationId", conversationID, "error", err)
				if sendErr := channel.Send(datatypes.ErrorFrame(
					"Sorry, something went wrong. Please try again.")); sendErr != nil {
					return
				}
				continue
			}

			// OnUserMessage returns quickly; the pipeline runs on its own
			// goroutine so the read loop can keep accepting frames.
			if err := session.OnUserMessage(ctx, frame.WidgetID, frame.Message); err != nil {
				slog.Error("Failed to accept user message",
					"conversationId", conversationID, "error", err)
			}
		}
	}
}
