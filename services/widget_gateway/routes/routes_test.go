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
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/engine"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/store/badgerkv"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/store/sqlite"
)

func newTestRouter(t *testing.T, adminSecret string) *gin.Engine {
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
	SetupRoutes(router, registry, messages, configs, adminSecret)
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestRoutes_HealthIsOpen(t *testing.T) {
	router := newTestRouter(t, "secret")
	assert.Equal(t, http.StatusOK, get(router, "/health").Code)
}

func TestRoutes_MetricsIsOpen(t *testing.T) {
	router := newTestRouter(t, "secret")
	w := get(router, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRoutes_AdminRequiresAuth(t *testing.T) {
	router := newTestRouter(t, "secret")

	for _, path := range []string{
		"/api/conversations",
		"/api/config/widget-1",
		"/api/history/conv-1",
	} {
		assert.Equal(t, http.StatusUnauthorized, get(router, path).Code, path)
	}
}

func TestRoutes_AdminAcceptsBearerSecret(t *testing.T) {
	router := newTestRouter(t, "secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/conversations", nil)
	req.Header.Set("Authorization", "Bearer secret")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_ChatEndpointRequiresWebsocketUpgrade(t *testing.T) {
	router := newTestRouter(t, "secret")

	// A plain GET without upgrade headers must not panic; the upgrader
	// rejects it.
	w := get(router, "/api/chat/conv-1")
	assert.NotEqual(t, http.StatusOK, w.Code)
}
