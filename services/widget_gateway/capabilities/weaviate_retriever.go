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

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var retrieverTracer = otel.Tracer("aleutian.widget_gateway.capabilities.retriever")

// defaultPassageClass is the Weaviate class holding ingested knowledge
// passages. Overridable for deployments that ingest into a custom class.
const defaultPassageClass = "KnowledgePassage"

// passageQueryResponse is the typed shape of the GraphQL Get response for
// the passage class. The class name key is remapped at parse time.
type passageQueryResponse struct {
	Get map[string][]passageResult `json:"Get"`
}

type passageResult struct {
	Text       string `json:"text"`
	Source     string `json:"source"`
	OrgID      string `json:"org_id"`
	Additional struct {
		Certainty *float64 `json:"certainty"`
	} `json:"_additional"`
}

// WeaviateRetriever implements Retriever with a nearVector search against
// the passage class, filtered to the requesting widget's tenant.
type WeaviateRetriever struct {
	client    *weaviate.Client
	className string
}

// NewWeaviateRetriever creates a retriever on the given Weaviate client.
// The class name comes from WEAVIATE_PASSAGE_CLASS, defaulting to
// KnowledgePassage.
func NewWeaviateRetriever(client *weaviate.Client) *WeaviateRetriever {
	className := os.Getenv("WEAVIATE_PASSAGE_CLASS")
	if className == "" {
		className = defaultPassageClass
	}
	slog.Info("Initializing Weaviate retriever", "class", className)
	return &WeaviateRetriever{client: client, className: className}
}

// Retrieve implements the Retriever interface.
func (r *WeaviateRetriever) Retrieve(ctx context.Context, vector []float32,
	query RetrievalQuery) ([]Passage, error) {

	ctx, span := retrieverTracer.Start(ctx, "WeaviateRetriever.Retrieve")
	defer span.End()
	span.SetAttributes(
		attribute.String("retrieval.class", r.className),
		attribute.Int("retrieval.top_k", query.TopK),
	)

	nearVector := r.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "source"},
		{Name: "org_id"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	builder := r.client.GraphQL().Get().
		WithClassName(r.className).
		WithNearVector(nearVector).
		WithFields(fields...).
		WithLimit(query.TopK)

	if query.OrgID != "" {
		where := filters.Where().
			WithPath([]string{"org_id"}).
			WithOperator(filters.Equal).
			WithValueString(query.OrgID)
		builder = builder.WithWhere(where)
		span.SetAttributes(attribute.String("retrieval.org_id", query.OrgID))
	}

	resp, err := builder.Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("weaviate nearVector query failed: %w", err)
	}

	parsed, err := ParseGraphQLResponse[passageQueryResponse](resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to parse weaviate response: %w", err)
	}

	results := parsed.Get[r.className]
	passages := make([]Passage, 0, len(results))
	for _, res := range results {
		p := Passage{Text: res.Text, Source: res.Source}
		if res.Additional.Certainty != nil {
			p.Score = *res.Additional.Certainty
		}
		passages = append(passages, p)
	}

	span.SetAttributes(attribute.Int("retrieval.matches", len(passages)))
	return passages, nil
}
