// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fix

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/remedy/services/remedy/classify"
	"github.com/AleutianAI/remedy/services/remedy/diagnostic"
	"github.com/AleutianAI/remedy/services/remedy/learning"
)

// Sentinel errors for strategy registration.
var (
	ErrDuplicateStrategy = errors.New("duplicate strategy id")
	ErrInvalidStrategy   = errors.New("invalid strategy")
)

// RateSource answers historical success-rate queries.
type RateSource interface {
	SuccessRate(category classify.Category, strategyID string) float64
}

// Recorder receives attempt outcomes.
type Recorder interface {
	RecordAttempt(a learning.Attempt)
}

// Decline is one strategy that produced no usable patch.
type Decline struct {
	StrategyID string `json:"strategyId"`
	Reason     string `json:"reason"`
}

// Proposal is the dispatcher's answer for one record.
type Proposal struct {
	// StrategyID of the strategy whose patch was accepted, empty if none.
	StrategyID string

	// NewContent is the patched file. Nil when no strategy succeeded.
	NewContent []byte

	// Edit is the verified single-line span the patch replaced.
	Edit Edit

	// Declined lists strategies tried before the accepted one (or all of
	// them when none succeeded), in order.
	Declined []Decline
}

// OK reports whether a strategy produced an accepted patch.
func (p Proposal) OK() bool {
	return p.StrategyID != ""
}

// Dispatcher selects and runs strategies for classified records.
//
// Description:
//
//	Strategies are registered once. For a category, candidates are ordered
//	by descending success rate from the RateSource, ties broken by
//	registration order. AttemptFix runs candidates until one returns a
//	patch that passes the scope check; every decline is reported to the
//	Recorder as a failed attempt.
//
// Thread Safety: Safe for concurrent use.
type Dispatcher struct {
	mu         sync.RWMutex
	strategies []Strategy
	ids        map[string]bool
	rates      RateSource
	recorder   Recorder
	logger     *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates an empty dispatcher. rates and recorder may be nil.
func NewDispatcher(rates RateSource, recorder Recorder, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		ids:      make(map[string]bool),
		rates:    rates,
		recorder: recorder,
		logger:   slog.Default().With("component", "fix.Dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewDefaultDispatcher creates a dispatcher with DefaultStrategies registered.
func NewDefaultDispatcher(rates RateSource, recorder Recorder, opts ...DispatcherOption) *Dispatcher {
	d := NewDispatcher(rates, recorder, opts...)
	for _, s := range DefaultStrategies() {
		if err := d.Register(s); err != nil {
			panic(err)
		}
	}
	return d
}

// Register adds a strategy.
//
// Outputs:
//
//	error - ErrDuplicateStrategy for a reused ID; ErrInvalidStrategy for a
//	missing ID or Apply, or an Unclassified category.
func (d *Dispatcher) Register(s Strategy) error {
	if s.ID == "" || s.Apply == nil {
		return fmt.Errorf("%w: id and apply are required", ErrInvalidStrategy)
	}
	if s.Category == classify.Unclassified {
		return fmt.Errorf("%w: %s: unclassified records have no strategies", ErrInvalidStrategy, s.ID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ids[s.ID] {
		return fmt.Errorf("%w: %s", ErrDuplicateStrategy, s.ID)
	}
	d.ids[s.ID] = true
	d.strategies = append(d.strategies, s)
	return nil
}

// Strategies returns all strategies in registration order.
func (d *Dispatcher) Strategies() []Strategy {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Strategy(nil), d.strategies...)
}

// StrategiesFor returns the candidates for a category, best first.
func (d *Dispatcher) StrategiesFor(category classify.Category) []Strategy {
	d.mu.RLock()
	var out []Strategy
	for _, s := range d.strategies {
		if s.Category == category {
			out = append(out, s)
		}
	}
	d.mu.RUnlock()

	if d.rates == nil || len(out) < 2 {
		return out
	}
	rates := make(map[string]float64, len(out))
	for _, s := range out {
		rates[s.ID] = d.rates.SuccessRate(category, s.ID)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return rates[out[i].ID] > rates[out[j].ID]
	})
	return out
}

// AttemptFix tries the category's strategies on a record.
//
// Description:
//
//	Runs candidates in StrategiesFor order against content, which must be
//	the file's current content. The first patch that changes the file and
//	stays within the record's line is accepted. Each decline, including a
//	scope violation, is recorded as a failed attempt, except declines that
//	mark the record as not applicable to the strategy. The accepted
//	strategy's outcome is left for the caller to record once the next
//	diagnostic run confirms or refutes it.
//
// Inputs:
//
//	rec - The record to fix.
//	category - Its classification.
//	content - Current file content.
//	iteration - Iteration number for attempt records.
//
// Outputs:
//
//	Proposal - Accepted patch or the list of declines.
func (d *Dispatcher) AttemptFix(rec diagnostic.Record, category classify.Category, content []byte, iteration int) Proposal {
	var proposal Proposal

	for _, s := range d.StrategiesFor(category) {
		result := s.Apply(rec, content)

		reason := result.Reason
		var edit Edit
		if result.Success {
			var err error
			switch {
			case bytes.Equal(result.NewContent, content):
				err = errors.New("patch does not change the file")
			default:
				edit, err = checkScope(content, result.NewContent, rec.Line)
			}
			if err == nil {
				proposal.StrategyID = s.ID
				proposal.NewContent = result.NewContent
				proposal.Edit = edit
				d.logger.Debug("strategy produced patch",
					slog.String("strategy", s.ID),
					slog.String("location", rec.Location()),
				)
				return proposal
			}
			reason = err.Error()
			d.logger.Warn("strategy patch rejected",
				slog.String("strategy", s.ID),
				slog.String("location", rec.Location()),
				slog.String("reason", reason),
			)
		}

		proposal.Declined = append(proposal.Declined, Decline{StrategyID: s.ID, Reason: reason})
		if d.recorder != nil && !result.NotApplicable {
			d.recorder.RecordAttempt(learning.Attempt{
				Record:     rec,
				Category:   category,
				StrategyID: s.ID,
				Outcome:    learning.OutcomeFailure,
				Reason:     reason,
				Iteration:  iteration,
				Timestamp:  time.Now().UTC(),
			})
		}
	}

	return proposal
}
