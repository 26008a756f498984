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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/datatypes"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/engine"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/store/badgerkv"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/store/sqlite"
)

const testAdminSecret = "test-secret"

type adminFixture struct {
	router   *gin.Engine
	messages *sqlite.MessageStore
	configs  *badgerkv.ConfigStore
	registry *engine.Registry
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	messages, err := sqlite.Open(filepath.Join(t.TempDir(), "messages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { messages.Close() })

	configs, err := badgerkv.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { configs.Close() })

	registry := engine.NewRegistry(engine.Dependencies{
		Messages: messages,
		Configs:  configs,
	}, engine.DefaultConfig())

	router := gin.New()
	admin := router.Group("/api", RequireAdminSecret(testAdminSecret))
	admin.POST("/config", SaveWidgetConfig(configs))
	admin.GET("/config/:widgetId", GetWidgetConfig(configs))
	admin.GET("/history/:conversationId", GetConversationHistory(messages))
	admin.POST("/takeover/:conversationId", RequestTakeover(registry))
	admin.GET("/conversations", ListConversations(messages))

	return &adminFixture{router: router, messages: messages, configs: configs, registry: registry}
}

func (f *adminFixture) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if authed {
		req.Header.Set("Authorization", "Bearer "+testAdminSecret)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// Auth middleware
// =============================================================================

func TestAdmin_MissingBearerTokenRejected(t *testing.T) {
	f := newAdminFixture(t)
	w := f.do("GET", "/api/conversations", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdmin_WrongTokenRejected(t *testing.T) {
	f := newAdminFixture(t)

	req := httptest.NewRequest("GET", "/api/conversations", nil)
	req.Header.Set("Authorization", "Bearer wrong-secret")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdmin_EmptyConfiguredSecretDisablesRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/conversations", RequireAdminSecret(""), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/conversations", nil)
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// =============================================================================
// Config routes
// =============================================================================

func TestAdmin_SaveAndFetchConfig(t *testing.T) {
	f := newAdminFixture(t)

	body := `{"widgetId": "widget-1", "config": {"org_id": "org-1", "prompt": "Be helpful."}}`
	w := f.do("POST", "/api/config", body, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do("GET", "/api/config/widget-1", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var cfg datatypes.WidgetConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, "widget-1", cfg.WidgetID)
	assert.Equal(t, "org-1", cfg.OrgID)
	assert.Equal(t, "Be helpful.", cfg.Prompt)
}

func TestAdmin_SaveConfigWithoutWidgetID(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do("POST", "/api/config", `{"config": {"prompt": "x"}}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_FetchUnknownConfig(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do("GET", "/api/config/never-saved", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// =============================================================================
// History and conversation listing
// =============================================================================

func TestAdmin_HistoryReturnsOrderedTranscript(t *testing.T) {
	f := newAdminFixture(t)

	for i, content := range []string{"q1", "a1", "q2"} {
		sender := datatypes.SenderUser
		if i == 1 {
			sender = datatypes.SenderAI
		}
		msg := &datatypes.ChatMessage{
			ID: content, ConversationID: "conv-1", SenderType: sender,
			Content: content, Timestamp: int64(1000 + i),
		}
		require.NoError(t, f.messages.SaveMessage(context.Background(), msg))
	}

	w := f.do("GET", "/api/history/conv-1", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Messages []datatypes.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 3)
	assert.Equal(t, "q1", resp.Messages[0].Content)
	assert.Equal(t, "a1", resp.Messages[1].Content)
	assert.Equal(t, "q2", resp.Messages[2].Content)
}

func TestAdmin_HistoryForUnknownConversationIsEmptyList(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do("GET", "/api/history/never-seen", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages": []}`, w.Body.String())
}

func TestAdmin_ListConversationsEmpty(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do("GET", "/api/conversations", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"conversations": []}`, w.Body.String())
}

// =============================================================================
// Takeover
// =============================================================================

func TestAdmin_TakeoverSwitchesSessionMode(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do("POST", "/api/takeover/conv-1", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, engine.ModeHumanTakeover, resp["mode"])

	session, ok := f.registry.Peek("conv-1")
	require.True(t, ok)
	assert.Equal(t, engine.ModeHumanTakeover, session.Mode())
}

// =============================================================================
// Health
// =============================================================================

func TestHealthCheck_ReturnsOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", HealthCheck)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "ok", response["status"])
	assert.NotEmpty(t, response["timestamp"])
}
