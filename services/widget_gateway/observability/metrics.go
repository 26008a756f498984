// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability holds the Prometheus instruments for the widget
// gateway. Collectors are registered on the default registry via promauto
// and exposed on /metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for PipelineRuns.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	// PipelineRuns counts completed pipeline runs by outcome.
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "widget_gateway_pipeline_runs_total",
		Help: "Completed conversation pipeline runs, labeled by outcome.",
	}, []string{"outcome"})

	// PipelineDuration observes wall time per pipeline run.
	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "widget_gateway_pipeline_duration_seconds",
		Help:    "Wall time of a full conversation pipeline run.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	// TokensStreamed counts individual tokens delivered to clients.
	TokensStreamed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "widget_gateway_tokens_streamed_total",
		Help: "Generation tokens streamed to widget clients.",
	})

	// Takeovers counts human takeover transitions.
	Takeovers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "widget_gateway_takeovers_total",
		Help: "Conversations switched to human takeover.",
	})

	// QueuedMessages counts messages queued behind a running pipeline.
	QueuedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "widget_gateway_queued_messages_total",
		Help: "User messages queued while a pipeline run was in flight.",
	})

	// ActiveSessions tracks sessions resident in the registry.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "widget_gateway_active_sessions",
		Help: "Conversation sessions currently held in memory.",
	})
)
