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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/AleutianWidget/services/widget_gateway/datatypes"
)

func TestParseGraphQLResponse_TypedPassages(t *testing.T) {
	resp := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{
				"KnowledgePassage": []interface{}{
					map[string]interface{}{
						"text":   "Business hours are 9-5.",
						"source": "faq.md",
						"org_id": "org-1",
						"_additional": map[string]interface{}{
							"certainty": 0.91,
						},
					},
				},
			},
		},
	}

	parsed, err := ParseGraphQLResponse[passageQueryResponse](resp)
	require.NoError(t, err)

	results := parsed.Get["KnowledgePassage"]
	require.Len(t, results, 1)
	assert.Equal(t, "Business hours are 9-5.", results[0].Text)
	assert.Equal(t, "faq.md", results[0].Source)
	require.NotNil(t, results[0].Additional.Certainty)
	assert.InDelta(t, 0.91, *results[0].Additional.Certainty, 1e-9)
}

func TestParseGraphQLResponse_NilResponse(t *testing.T) {
	_, err := ParseGraphQLResponse[passageQueryResponse](nil)
	assert.Error(t, err)
}

func TestParseGraphQLResponse_MissingCertainty(t *testing.T) {
	resp := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{
				"KnowledgePassage": []interface{}{
					map[string]interface{}{"text": "no score", "source": "doc.md"},
				},
			},
		},
	}

	parsed, err := ParseGraphQLResponse[passageQueryResponse](resp)
	require.NoError(t, err)
	results := parsed.Get["KnowledgePassage"]
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Additional.Certainty)
}

func TestToOpenAIMessages_PreservesRolesAndOrder(t *testing.T) {
	in := []datatypes.Message{
		{Role: datatypes.RoleSystem, Content: "persona"},
		{Role: datatypes.RoleUser, Content: "question"},
		{Role: datatypes.RoleAssistant, Content: "answer"},
	}

	out := toOpenAIMessages(in)
	require.Len(t, out, 3)
	assert.Equal(t, "system", out[0].Role)
	assert.Equal(t, "persona", out[0].Content)
	assert.Equal(t, "user", out[1].Role)
	assert.Equal(t, "assistant", out[2].Role)
}
