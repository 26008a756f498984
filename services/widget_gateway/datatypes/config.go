// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
)

// WidgetConfig is the per-widget configuration consulted once per pipeline
// run. OrgID scopes retrieval to the owning tenant; Prompt overrides the
// default assistant persona. Dashboards attach arbitrary presentation
// fields (colors, titles, welcome text beyond the named ones), so unknown
// keys survive a save/load round trip via Extra.
type WidgetConfig struct {
	WidgetID       string `json:"widget_id"`
	OrgID          string `json:"org_id"`
	Prompt         string `json:"prompt,omitempty"`
	Color          string `json:"color,omitempty"`
	Title          string `json:"title,omitempty"`
	WelcomeMessage string `json:"welcome_message,omitempty"`

	// Extra holds unrecognized top-level keys. Never nil after a
	// successful UnmarshalJSON, may be nil on hand-built configs.
	Extra map[string]json.RawMessage `json:"-"`
}

// widgetConfigAlias avoids recursion in the custom JSON methods.
type widgetConfigAlias WidgetConfig

// knownConfigKeys are the keys bound to named struct fields.
var knownConfigKeys = map[string]bool{
	"widget_id":       true,
	"org_id":          true,
	"prompt":          true,
	"color":           true,
	"title":           true,
	"welcome_message": true,
}

// UnmarshalJSON decodes the named fields and collects every other
// top-level key into Extra.
func (c *WidgetConfig) UnmarshalJSON(data []byte) error {
	var alias widgetConfigAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	alias.Extra = make(map[string]json.RawMessage)
	for k, v := range raw {
		if !knownConfigKeys[k] {
			alias.Extra[k] = v
		}
	}

	*c = WidgetConfig(alias)
	return nil
}

// MarshalJSON emits the named fields plus every Extra key at the top level.
func (c WidgetConfig) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(widgetConfigAlias(c))
	if err != nil {
		return nil, err
	}

	if len(c.Extra) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range c.Extra {
		if !knownConfigKeys[k] {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}
