// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package capabilities defines the external capability contracts the
// conversation engine depends on, plus the production adapters for them.
//
// Each capability is a narrow interface injected into the engine at
// construction; there is no ambient or static access to providers. The
// production set is:
//   - Embedder: OpenAI embeddings (openai_embedder.go)
//   - Retriever: Weaviate nearVector search (weaviate_retriever.go)
//   - Generator: OpenAI streaming chat completions (openai_generator.go)
//
// Timeouts are the responsibility of each adapter's underlying client and
// surface to the engine as plain errors.
package capabilities

import (
	"context"

	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/datatypes"
)

// Embedder turns user text into a similarity-search vector.
type Embedder interface {
	// Embed returns the embedding vector for text, or an error if the
	// provider fails or returns no vector.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RetrievalQuery carries the parameters for one top-k similarity search.
type RetrievalQuery struct {
	// TopK is the number of passages to return.
	TopK int
	// OrgID scopes the search to one tenant's passages. Empty means no
	// tenant filter, which only happens for widgets without an org.
	OrgID string
}

// Passage is one ranked retrieval match.
type Passage struct {
	Text   string
	Source string
	Score  float64
}

// Retriever performs vector similarity search over the knowledge base.
type Retriever interface {
	// Retrieve returns up to query.TopK passages ranked by similarity to
	// vector. An empty result set is not an error.
	Retrieve(ctx context.Context, vector []float32, query RetrievalQuery) ([]Passage, error)
}

// StreamEventType discriminates events delivered to a StreamCallback.
type StreamEventType int

const (
	// StreamEventToken carries one incremental content token.
	StreamEventToken StreamEventType = iota
)

// StreamEvent is one incremental generation event.
type StreamEvent struct {
	Type    StreamEventType
	Content string
}

// StreamCallback receives generation events in production order. Returning
// an error aborts the stream.
type StreamCallback func(event StreamEvent) error

// GenerationParams tunes a single generation request. Nil fields fall back
// to the adapter's defaults.
type GenerationParams struct {
	Temperature *float32
	MaxTokens   *int
}

// Generator produces a streamed chat completion for a message list.
type Generator interface {
	// GenerateStream invokes the model with messages and delivers tokens
	// to callback as they arrive. A nil return means the stream ended
	// normally; the end-of-stream sentinel is consumed by the adapter and
	// never reaches the callback.
	GenerateStream(ctx context.Context, messages []datatypes.Message, params GenerationParams, callback StreamCallback) error
}
