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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SameIDReturnsSameSession(t *testing.T) {
	r := NewRegistry(Dependencies{}, DefaultConfig())

	a := r.Session("conv-1")
	b := r.Session("conv-1")

	assert.Same(t, a, b)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_DistinctIDsGetDistinctSessions(t *testing.T) {
	r := NewRegistry(Dependencies{}, DefaultConfig())

	a := r.Session("conv-1")
	b := r.Session("conv-2")

	assert.NotSame(t, a, b)
	assert.Equal(t, "conv-1", a.ConversationID())
	assert.Equal(t, "conv-2", b.ConversationID())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_PeekDoesNotCreate(t *testing.T) {
	r := NewRegistry(Dependencies{}, DefaultConfig())

	_, ok := r.Peek("conv-1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())

	created := r.Session("conv-1")
	peeked, ok := r.Peek("conv-1")
	require.True(t, ok)
	assert.Same(t, created, peeked)
}

func TestRegistry_ConcurrentAccessYieldsOneSession(t *testing.T) {
	r := NewRegistry(Dependencies{}, DefaultConfig())

	const goroutines = 32
	sessions := make([]*Session, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = r.Session("conv-1")
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, r.Len())
	for i := 1; i < goroutines; i++ {
		assert.Same(t, sessions[0], sessions[i])
	}
}
