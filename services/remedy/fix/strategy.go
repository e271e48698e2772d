// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fix holds the remediation strategies and the dispatcher that
// picks one per diagnostic.
//
// Every strategy is confined to the line the diagnostic points at: it may
// rewrite that one line, split it, or delete it, and nothing else. The
// dispatcher enforces this on every patch before it is handed on, so a
// strategy bug cannot turn into a file-wide rewrite.
package fix

import (
	"fmt"

	"github.com/AleutianAI/remedy/services/remedy/classify"
	"github.com/AleutianAI/remedy/services/remedy/diagnostic"
)

// Strategy is a stateless remediation for one category.
type Strategy struct {
	// ID is unique across the registry and stable across releases, since
	// learning data is keyed by it.
	ID string

	// Category is the only category this strategy is offered for.
	Category classify.Category

	// Description is shown by the CLI.
	Description string

	// Apply proposes new content for the file containing rec. It must not
	// touch the filesystem.
	Apply func(rec diagnostic.Record, content []byte) PatchResult
}

// PatchResult is a strategy's answer.
type PatchResult struct {
	// Success is true when NewContent holds a confident patch.
	Success bool

	// NewContent is the whole file after the patch.
	NewContent []byte

	// Reason explains a decline.
	Reason string

	// NotApplicable marks a decline where the diagnostic is not the kind
	// the strategy handles. Such declines say nothing about the strategy's
	// quality and are not recorded as failures.
	NotApplicable bool
}

// declined builds a failed PatchResult.
func declined(format string, args ...any) PatchResult {
	return PatchResult{Reason: fmt.Sprintf(format, args...)}
}

// notApplicable builds a PatchResult for a diagnostic outside the
// strategy's reach.
func notApplicable(format string, args ...any) PatchResult {
	return PatchResult{Reason: fmt.Sprintf(format, args...), NotApplicable: true}
}

// patched builds a successful PatchResult replacing rec's line.
func patched(content []byte, rec diagnostic.Record, replacement ...string) PatchResult {
	next, err := replaceLine(content, rec.Line, replacement...)
	if err != nil {
		return declined("%v", err)
	}
	return PatchResult{Success: true, NewContent: next}
}
