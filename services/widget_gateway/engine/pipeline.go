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
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/capabilities"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/datatypes"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// defaultSystemPrompt is the persona used when a widget has no configured
// prompt.
const defaultSystemPrompt = "You are a helpful AI assistant."

// promptSuffix is appended to every system prompt. It instructs the model
// to admit when the retrieved context does not cover the question.
const promptSuffix = "\n\nPlease provide helpful, accurate responses based on the context provided. " +
	"If the context doesn't contain relevant information, let the user know and offer to help in other ways."

// executeRun performs one full pipeline pass for a user message that has
// already been persisted.
//
// Stages run strictly in order: config load, embedding, retrieval, history
// load, prompt build, streaming, persisting. Any stage error aborts the run
// with a CapabilityError naming the stage, except history load, which
// degrades to a prompt containing only the current message. Retrieval that
// succeeds with zero passages is not an error; the context section is
// simply omitted.
func (s *Session) executeRun(ctx context.Context, widgetID, text string) error {
	start := time.Now()
	defer func() {
		observability.PipelineDuration.Observe(time.Since(start).Seconds())
	}()

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("conversation.id", s.conversationID),
		attribute.String("widget.id", widgetID),
	)

	// CONFIG_LOAD
	widgetCfg, err := s.deps.Configs.GetConfig(ctx, widgetID)
	if err != nil {
		return s.failStage(span, StageConfigLoad, err)
	}

	// EMBEDDING
	vector, err := s.deps.Embedder.Embed(ctx, text)
	if err != nil {
		return s.failStage(span, StageEmbedding, err)
	}

	// RETRIEVING
	passages, err := s.deps.Retriever.Retrieve(ctx, vector, capabilities.RetrievalQuery{
		TopK:  s.cfg.RetrievalTopK,
		OrgID: widgetCfg.OrgID,
	})
	if err != nil {
		return s.failStage(span, StageRetrieving, err)
	}
	span.SetAttributes(attribute.Int("retrieval.passages", len(passages)))

	// HISTORY_LOAD. On failure the run continues with the current turn
	// alone rather than dying on a read error.
	history, err := s.deps.Messages.RecentHistory(ctx, s.conversationID, s.cfg.HistoryWindow)
	if err != nil {
		slog.Warn("History load failed, continuing without history",
			"conversationId", s.conversationID, "error", err)
		history = nil
	}

	// The current turn is already persisted, usually as the newest row,
	// but a message that waited in the queue has newer rows behind it
	// (the previous run's answer). Strip its row, wherever it sits, so
	// the prompt build appends the current message exactly once, last.
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].SenderType == datatypes.SenderUser && history[i].Content == text {
			history = append(history[:i:i], history[i+1:]...)
			break
		}
	}

	// PROMPT_BUILD
	messages := buildMessages(widgetCfg, passages, history, text)

	// STREAMING
	params := capabilities.GenerationParams{
		Temperature: &s.cfg.Temperature,
		MaxTokens:   &s.cfg.MaxTokens,
	}
	var response strings.Builder
	err = s.deps.Generator.GenerateStream(ctx, messages, params, func(event capabilities.StreamEvent) error {
		if event.Type != capabilities.StreamEventToken || event.Content == "" {
			return nil
		}
		response.WriteString(event.Content)
		observability.TokensStreamed.Inc()
		s.send(datatypes.TokenFrame(event.Content))
		return nil
	})
	if err != nil {
		return s.failStage(span, StageStreaming, err)
	}

	// PERSISTING. A stream that produced only whitespace leaves no
	// transcript entry.
	full := response.String()
	if strings.TrimSpace(full) != "" {
		aiMsg := datatypes.NewChatMessage(s.conversationID, datatypes.SenderAI, full)
		if err := s.deps.Messages.SaveMessage(ctx, aiMsg); err != nil {
			return s.failStage(span, StagePersisting, err)
		}
	}

	return nil
}

func (s *Session) failStage(span trace.Span, stage string, err error) error {
	capErr := &CapabilityError{Stage: stage, Err: err}
	span.RecordError(capErr)
	span.SetStatus(codes.Error, capErr.Error())
	return capErr
}

// buildMessages assembles the generator transcript: the system prompt with
// retrieved context, the recent history mapped onto chat roles, and the
// current user message last.
func buildMessages(cfg *datatypes.WidgetConfig, passages []capabilities.Passage,
	history []datatypes.ChatMessage, userText string) []datatypes.Message {

	messages := make([]datatypes.Message, 0, len(history)+2)
	messages = append(messages, datatypes.Message{
		Role:    datatypes.RoleSystem,
		Content: buildSystemPrompt(cfg, passages),
	})
	for _, h := range history {
		messages = append(messages, datatypes.Message{
			Role:    datatypes.HistoryRole(h.SenderType),
			Content: h.Content,
		})
	}
	messages = append(messages, datatypes.Message{
		Role:    datatypes.RoleUser,
		Content: userText,
	})
	return messages
}

// buildSystemPrompt renders the widget persona, the optional retrieved
// context block, and the fixed transparency instruction.
func buildSystemPrompt(cfg *datatypes.WidgetConfig, passages []capabilities.Passage) string {
	base := cfg.Prompt
	if base == "" {
		base = defaultSystemPrompt
	}

	var b strings.Builder
	b.WriteString(base)
	if len(passages) > 0 {
		b.WriteString("\n\nRelevant context:\n")
		for i, p := range passages {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(p.Text)
		}
	}
	b.WriteString(promptSuffix)
	return b.String()
}
