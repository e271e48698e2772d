// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package learning records the outcome of every fix attempt and answers
// success-rate queries used to order fix strategies.
//
// The store is an aggregate table keyed "<category>:<strategyId>", loaded
// once at process start and written back with Flush. An optional journal
// keeps every individual attempt so the table can be rebuilt.
package learning

import (
	"time"

	"github.com/AleutianAI/remedy/services/remedy/classify"
	"github.com/AleutianAI/remedy/services/remedy/diagnostic"
)

// Outcome is the verified result of a fix attempt.
type Outcome string

const (
	// OutcomeSuccess means the targeted diagnostic was gone on the next run.
	OutcomeSuccess Outcome = "success"

	// OutcomeFailure means the strategy declined, the patch could not be
	// applied, or the diagnostic survived the next run.
	OutcomeFailure Outcome = "failure"
)

// Attempt is one strategy applied to one diagnostic record.
type Attempt struct {
	Record     diagnostic.Record `json:"record"`
	Category   classify.Category `json:"category"`
	StrategyID string            `json:"strategyId"`
	Outcome    Outcome           `json:"outcome"`
	Reason     string            `json:"reason,omitempty"`
	Iteration  int               `json:"iteration"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Entry aggregates attempts for one (category, strategy) pair.
type Entry struct {
	Attempts  int       `json:"attempts"`
	Successes int       `json:"successes"`
	Failures  int       `json:"failures"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Rate returns the smoothed success rate (s+1)/(a+2).
//
// An unseen pair rates 0.5, so a new strategy ranks between proven and
// consistently failing ones.
func (e Entry) Rate() float64 {
	return float64(e.Successes+1) / float64(e.Attempts+2)
}

// database is the on-disk JSON layout.
type database struct {
	Entries map[string]Entry `json:"entries"`
}

// Key returns the table key for a category and strategy.
func Key(category classify.Category, strategyID string) string {
	return category.String() + ":" + strategyID
}
