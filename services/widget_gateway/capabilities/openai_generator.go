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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/datatypes"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var generatorTracer = otel.Tracer("aleutian.widget_gateway.capabilities.generator")

// OpenAIGenerator implements Generator on the OpenAI streaming chat
// completion API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates a generator on the shared OpenAI client. The
// model comes from OPENAI_MODEL, defaulting to gpt-4o-mini.
func NewOpenAIGenerator(client *openai.Client) *OpenAIGenerator {
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing OpenAI generator", "model", model)
	return &OpenAIGenerator{client: client, model: model}
}

// GenerateStream implements the Generator interface.
//
// Tokens are forwarded to callback in arrival order. Chunks with no
// choices or an empty delta are skipped; upstream occasionally emits
// keepalive noise and it must not abort a live stream. The io.EOF
// sentinel terminates the stream normally.
func (g *OpenAIGenerator) GenerateStream(ctx context.Context, messages []datatypes.Message,
	params GenerationParams, callback StreamCallback) error {

	ctx, span := generatorTracer.Start(ctx, "OpenAIGenerator.GenerateStream")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", g.model),
		attribute.Int("llm.num_messages", len(messages)),
	)

	req := openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}

	stream, err := g.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("OpenAI streaming call failed", "error", err)
		return fmt.Errorf("OpenAI streaming call failed: %w", err)
	}
	defer stream.Close()

	tokens := 0
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("OpenAI stream read failed", "error", err, "tokens_so_far", tokens)
			return fmt.Errorf("OpenAI stream read failed: %w", err)
		}

		if len(resp.Choices) == 0 {
			slog.Debug("Skipping stream chunk with no choices")
			continue
		}
		token := resp.Choices[0].Delta.Content
		if token == "" {
			continue
		}

		tokens++
		if err := callback(StreamEvent{Type: StreamEventToken, Content: token}); err != nil {
			return err
		}
	}

	span.SetAttributes(attribute.Int("llm.tokens_streamed", tokens))
	return nil
}

func toOpenAIMessages(messages []datatypes.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return out
}
