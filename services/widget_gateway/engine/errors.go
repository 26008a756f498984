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
	"errors"
	"fmt"
)

// Pipeline stage names, used in CapabilityError, span attributes, and logs.
const (
	StageConfigLoad  = "config_load"
	StageEmbedding   = "embedding"
	StageRetrieving  = "retrieving"
	StageHistoryLoad = "history_load"
	StagePromptBuild = "prompt_build"
	StageStreaming   = "streaming"
	StagePersisting  = "persisting"
)

// User-safe frame texts. These are the only failure strings that cross the
// websocket; internal error detail stays in logs and traces.
const (
	// takeoverUserMessage is sent when a user message arrives after a
	// human agent has taken the conversation over.
	takeoverUserMessage = "A human agent has taken over this conversation."

	// takeoverNotice is the complete-frame content announcing a takeover.
	takeoverNotice = "A human agent is now taking over this conversation."

	// pipelineErrorMessage is the generic failure text for any pipeline
	// error.
	pipelineErrorMessage = "Sorry, I encountered an error while processing your request. Please try again."
)

// CapabilityError marks a failure from an external capability or store at a
// named pipeline stage. The wrapped error carries the provider detail.
type CapabilityError struct {
	Stage string
	Err   error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("pipeline stage %s failed: %v", e.Stage, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// IsCapabilityError reports whether err is (or wraps) a CapabilityError.
func IsCapabilityError(err error) bool {
	var capErr *CapabilityError
	return errors.As(err, &capErr)
}

// stageOf returns the failing stage name, or "unknown" for errors that did
// not originate in a pipeline stage.
func stageOf(err error) string {
	var capErr *CapabilityError
	if errors.As(err, &capErr) {
		return capErr.Stage
	}
	return "unknown"
}
