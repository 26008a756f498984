// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package capabilities

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var embedderTracer = otel.Tracer("aleutian.widget_gateway.capabilities.embedder")

// OpenAIEmbedder implements Embedder on the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder creates an embedder on the shared OpenAI client. The
// model comes from OPENAI_EMBEDDING_MODEL, defaulting to
// text-embedding-ada-002.
func NewOpenAIEmbedder(client *openai.Client) *OpenAIEmbedder {
	model := os.Getenv("OPENAI_EMBEDDING_MODEL")
	if model == "" {
		model = string(openai.AdaEmbeddingV2)
		slog.Warn("OPENAI_EMBEDDING_MODEL not set, defaulting to text-embedding-ada-002")
	}
	slog.Info("Initializing OpenAI embedder", "model", model)
	return &OpenAIEmbedder{
		client: client,
		model:  openai.EmbeddingModel(model),
	}
}

// Embed implements the Embedder interface.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := embedderTracer.Start(ctx, "OpenAIEmbedder.Embed")
	defer span.End()
	span.SetAttributes(attribute.String("embedding.model", string(e.model)))

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("OpenAI embedding call failed", "error", err)
		return nil, fmt.Errorf("OpenAI embedding call failed: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		slog.Warn("OpenAI returned no embedding vector")
		return nil, fmt.Errorf("no embedding returned from OpenAI")
	}

	span.SetAttributes(attribute.Int("embedding.dim", len(resp.Data[0].Embedding)))
	return resp.Data[0].Embedding, nil
}
