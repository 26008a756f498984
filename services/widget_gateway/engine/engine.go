// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine implements the per-conversation session actor and its
// retrieval-augmented generation pipeline.
//
// Each conversation id owns exactly one Session (see Registry). All state
// transitions happen under the session mutex, so callers from the websocket
// read loop, admin handlers, and the pipeline goroutine never race. At most
// one pipeline runs per session; messages that arrive mid-run are queued
// and served strictly in arrival order.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/capabilities"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/datatypes"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/observability"
	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/store"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("aleutian.widget_gateway.engine")

// Session modes. The transition is one-way: once a human takes over, the
// session never returns to AI handling.
const (
	ModeAIActive      = "ai_active"
	ModeHumanTakeover = "human_takeover"
)

// Pipeline states.
const (
	pipelineIdle    = "idle"
	pipelineRunning = "running"
)

// OutboundChannel delivers frames to the connected widget client. The
// transport owns write serialization; Send may be called from the pipeline
// goroutine and from admin-triggered paths concurrently.
type OutboundChannel interface {
	Send(frame datatypes.OutboundFrame) error
}

// Dependencies are the capabilities and stores a Session operates on.
type Dependencies struct {
	Embedder  capabilities.Embedder
	Retriever capabilities.Retriever
	Generator capabilities.Generator
	Messages  store.MessageStore
	Configs   store.ConfigStore
}

// Config carries the pipeline tuning knobs, resolved once at startup.
type Config struct {
	// HistoryWindow is the number of recent messages replayed into the
	// prompt.
	HistoryWindow int
	// RetrievalTopK is the number of knowledge passages fetched per turn.
	RetrievalTopK int
	// Temperature and MaxTokens are passed through to the generator.
	Temperature float32
	MaxTokens   int
}

// DefaultConfig returns the stock pipeline tuning.
func DefaultConfig() Config {
	return Config{
		HistoryWindow: 10,
		RetrievalTopK: 5,
		Temperature:   0.7,
		MaxTokens:     1000,
	}
}

type queuedMessage struct {
	widgetID string
	text     string
}

// Session is the single-writer actor for one conversation.
//
// # Description
//
// A Session owns every state transition for one conversation id: the
// one-way AI-to-human mode switch, the at-most-one-running-pipeline
// guarantee, the queue of messages that arrive mid-run, and the handle to
// the connected client. All entry points (OnUserMessage, RequestTakeover,
// BindChannel, DetachChannel) may be called concurrently from the
// websocket read loop and admin handlers.
//
// # Concurrency Model
//
// The mutex guards mode, pipelineState, the channel handle, and the queue.
// The pipeline itself runs on a dedicated goroutine outside the lock; it
// re-acquires the lock only at run boundaries to dequeue or go idle. Frame
// sends snapshot the channel under the lock and write outside it, so a slow
// client write can never stall state transitions.
//
// # Invariants
//
//   - At most one pipeline run is in flight per session at any instant.
//   - mode transitions only ModeAIActive -> ModeHumanTakeover, never back.
//   - The user message is persisted before any capability is called.
//   - Every accepted turn terminates in exactly one complete or error frame.
//
// # Limitations
//
//   - Sessions are never evicted; lifecycle is the hosting process's.
type Session struct {
	conversationID string
	deps           Dependencies
	cfg            Config

	mu            sync.Mutex
	mode          string
	pipelineState string
	channel       OutboundChannel
	queue         []queuedMessage
}

// NewSession creates an idle AI-active session for a conversation id.
func NewSession(conversationID string, deps Dependencies, cfg Config) *Session {
	return &Session{
		conversationID: conversationID,
		deps:           deps,
		cfg:            cfg,
		mode:           ModeAIActive,
		pipelineState:  pipelineIdle,
	}
}

// ConversationID returns the session's conversation id.
func (s *Session) ConversationID() string {
	return s.conversationID
}

// Mode returns the current session mode.
func (s *Session) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// BindChannel attaches (or replaces) the outbound channel. A reconnecting
// client rebinds onto the same session and receives frames from any run
// still in flight.
func (s *Session) BindChannel(ch OutboundChannel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channel = ch
}

// DetachChannel removes ch if it is still the bound channel. A stale detach
// from a superseded connection is a no-op. Pipelines keep running and keep
// persisting after detach; only delivery stops.
func (s *Session) DetachChannel(ch OutboundChannel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel == ch {
		s.channel = nil
	}
}

// send delivers one frame to the bound channel, if any. Delivery is best
// effort: a write failure is logged and dropped, never propagated into
// session state.
func (s *Session) send(frame datatypes.OutboundFrame) {
	s.mu.Lock()
	ch := s.channel
	s.mu.Unlock()
	if ch == nil {
		return
	}
	if err := ch.Send(frame); err != nil {
		slog.Warn("Failed to deliver frame",
			"conversationId", s.conversationID,
			"frameType", frame.Type,
			"error", err)
	}
}

// OnUserMessage handles one inbound user message.
//
// The message is persisted first, unconditionally, so the transcript is
// complete even when the turn is blocked or fails later. Then, in order:
//   - takeover active: one error frame, no pipeline
//   - pipeline running: queue the message
//   - otherwise: start the pipeline goroutine
//
// A message that is empty after trimming is dropped without any side
// effect.
func (s *Session) OnUserMessage(ctx context.Context, widgetID, text string) error {
	ctx, span := tracer.Start(ctx, "Session.OnUserMessage")
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()

	userMsg := datatypes.NewChatMessage(s.conversationID, datatypes.SenderUser, text)
	if err := s.deps.Messages.SaveMessage(ctx, userMsg); err != nil {
		s.mu.Unlock()
		slog.Error("Failed to persist user message",
			"conversationId", s.conversationID, "error", err)
		s.send(datatypes.ErrorFrame(pipelineErrorMessage))
		return err
	}

	if s.mode == ModeHumanTakeover {
		s.mu.Unlock()
		s.send(datatypes.ErrorFrame(takeoverUserMessage))
		return nil
	}

	if s.pipelineState == pipelineRunning {
		s.queue = append(s.queue, queuedMessage{widgetID: widgetID, text: text})
		observability.QueuedMessages.Inc()
		depth := len(s.queue)
		s.mu.Unlock()
		slog.Info("Queued message behind running pipeline",
			"conversationId", s.conversationID, "queueDepth", depth)
		return nil
	}

	s.pipelineState = pipelineRunning
	s.mu.Unlock()
	go s.runLoop(widgetID, text)
	return nil
}

// RequestTakeover switches the session to human mode and notifies the
// client. Calling it again after the switch is a no-op. A run already in
// flight finishes normally; messages queued behind it are answered with the
// takeover error frame instead of a pipeline run.
func (s *Session) RequestTakeover(ctx context.Context) {
	_, span := tracer.Start(ctx, "Session.RequestTakeover")
	defer span.End()

	s.mu.Lock()
	if s.mode == ModeHumanTakeover {
		s.mu.Unlock()
		return
	}
	s.mode = ModeHumanTakeover
	s.mu.Unlock()

	observability.Takeovers.Inc()
	slog.Info("Human takeover activated", "conversationId", s.conversationID)
	s.send(datatypes.CompleteFrame(takeoverNotice))
}

// runLoop drives pipeline runs until the queue drains, then returns the
// session to idle. Only this goroutine dequeues, which is what keeps the
// at-most-one-pipeline invariant: the RUNNING flag is set before the
// goroutine starts and cleared only here.
func (s *Session) runLoop(widgetID, text string) {
	for {
		s.executeAndReport(widgetID, text)

		// Dequeue the next runnable message. Messages dequeued after a
		// takeover are answered with the human-agent error frame and never
		// reach the pipeline again.
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.pipelineState = pipelineIdle
				s.mu.Unlock()
				return
			}
			next := s.queue[0]
			s.queue = s.queue[1:]
			takenOver := s.mode == ModeHumanTakeover
			s.mu.Unlock()

			if takenOver {
				s.send(datatypes.ErrorFrame(takeoverUserMessage))
				continue
			}
			widgetID, text = next.widgetID, next.text
			break
		}
	}
}

// executeAndReport runs one pipeline pass and emits exactly one terminal
// frame: complete on success, the generic error text on any failure.
func (s *Session) executeAndReport(widgetID, text string) {
	ctx, span := tracer.Start(context.Background(), "Session.pipeline")
	defer span.End()

	err := s.executeRun(ctx, widgetID, text)
	if err != nil {
		observability.PipelineRuns.WithLabelValues(observability.OutcomeError).Inc()
		slog.Error("Pipeline run failed",
			"conversationId", s.conversationID,
			"widgetId", widgetID,
			"stage", stageOf(err),
			"error", err)
		s.send(datatypes.ErrorFrame(pipelineErrorMessage))
		return
	}

	observability.PipelineRuns.WithLabelValues(observability.OutcomeOK).Inc()
	s.send(datatypes.CompleteFrame(""))
}
