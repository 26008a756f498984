// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/engine"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/handlers"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/store"
)

func SetupRoutes(router *gin.Engine, registry *engine.Registry,
	messages store.MessageStore, configs store.ConfigStore, adminSecret string) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/chat/:conversationId", handlers.HandleChatWebSocket(registry))

		// Dashboard routes, gated by the shared admin secret
		admin := api.Group("", handlers.RequireAdminSecret(adminSecret))
		{
			admin.POST("/config", handlers.SaveWidgetConfig(configs))
			admin.GET("/config/:widgetId", handlers.GetWidgetConfig(configs))
			admin.GET("/history/:conversationId", handlers.GetConversationHistory(messages))
			admin.POST("/takeover/:conversationId", handlers.RequestTakeover(registry))
			admin.GET("/conversations", handlers.ListConversations(messages))
		}
	}
}
