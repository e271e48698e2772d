// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package converge

import (
	"time"

	"github.com/AleutianAI/remedy/services/remedy/classify"
	"github.com/AleutianAI/remedy/services/remedy/diagnostic"
	"github.com/AleutianAI/remedy/services/remedy/learning"
	"github.com/AleutianAI/remedy/services/remedy/patch"
)

// Unresolved is a record the last fixing pass could not patch.
type Unresolved struct {
	Record   diagnostic.Record `json:"record"`
	Category classify.Category `json:"category"`
	Reason   string            `json:"reason"`
}

// Proposal is a patch computed in dry-run mode.
type Proposal struct {
	Record     diagnostic.Record `json:"record"`
	Category   classify.Category `json:"category"`
	StrategyID string            `json:"strategyId"`
}

// Result is the outcome of one Run.
type Result struct {
	FinalState        State `json:"finalState"`
	InitialErrorCount int   `json:"initialErrorCount"`

	// FinalErrorCount is the count from the last diagnostic run. After a
	// rollback the tree is back at InitialErrorCount but this still holds
	// the regressed count.
	FinalErrorCount int   `json:"finalErrorCount"`
	Iterations      int   `json:"iterations"`
	History         []int `json:"history"`

	// Attempts holds accepted patches with their verified outcome, at most
	// one per record per iteration.
	Attempts []learning.Attempt `json:"attempts"`

	// Proposed holds the patches a dry run would apply.
	Proposed []Proposal `json:"proposed,omitempty"`

	BackupID   string `json:"backupId,omitempty"`
	Resolved   int    `json:"resolved"`
	Regressed  int    `json:"regressed"`
	RolledBack bool   `json:"rolledBack"`
	DryRun     bool   `json:"dryRun"`

	// Remaining are the records reported by the last diagnostic run.
	Remaining []diagnostic.Record `json:"remaining"`

	// Unresolved explains why records of the last fixing pass stayed.
	Unresolved []Unresolved `json:"unresolved"`

	Changes      []patch.Change `json:"changes,omitempty"`
	SkippedLines int            `json:"skippedLines"`
	Duration     time.Duration  `json:"duration"`
}

// ExitCode is the process exit code for the result.
func (r *Result) ExitCode() int {
	return r.FinalState.ExitCode()
}
