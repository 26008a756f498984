// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"sync"

	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/observability"
)

// Registry routes conversation ids to their single Session.
//
// # Description
//
// The registry is the process-wide map from conversation id to session
// actor, creating a session on first reference. It is what makes the
// per-session serialization guarantees enforceable: the same id always
// resolves to the same instance, so no two actors can ever own one
// conversation concurrently.
//
// # Inputs
//
// Conversation ids are opaque keys supplied by the transport. They are
// never parsed, validated, or trusted beyond map identity.
//
// # Limitations
//
//   - Sessions live for the process lifetime; there is no eviction or
//     expiry. Restarting the process resets every session to AI-active
//     (mode is not persisted), while transcripts survive in the store.
type Registry struct {
	deps Dependencies
	cfg  Config

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry. All sessions it creates share the
// same dependencies and tuning.
func NewRegistry(deps Dependencies, cfg Config) *Registry {
	return &Registry{
		deps:     deps,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Session returns the session for a conversation id, creating it if this is
// the first time the id has been seen.
func (r *Registry) Session(conversationID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[conversationID]; ok {
		return s
	}
	s := NewSession(conversationID, r.deps, r.cfg)
	r.sessions[conversationID] = s
	observability.ActiveSessions.Set(float64(len(r.sessions)))
	return s
}

// Peek returns the session for a conversation id without creating one.
// Admin operations that only make sense on live conversations use this.
func (r *Registry) Peek(conversationID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[conversationID]
	return s, ok
}

// Len returns the number of resident sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
