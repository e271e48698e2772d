// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/remedy/pkg/fsutil"
	"github.com/AleutianAI/remedy/services/remedy/classify"
)

// ErrCorrupt indicates the learning database file could not be decoded.
var ErrCorrupt = errors.New("learning database is corrupt")

// Journal is an append-only log of individual attempts.
type Journal interface {
	// Append persists attempts in order.
	Append(ctx context.Context, attempts []Attempt) error

	// Replay calls fn for every stored attempt in append order.
	Replay(ctx context.Context, fn func(Attempt) error) error
}

// Store is the learning database.
//
// Description:
//
//	Holds the aggregate table in memory. RecordAttempt and SuccessRate
//	never touch the disk; Load and Flush are the only I/O. A mutex makes
//	the store safe to share even though a run drives it from one goroutine.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
	pending []Attempt
	journal Journal
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithJournal sets the attempt journal written on Flush.
func WithJournal(j Journal) Option {
	return func(s *Store) {
		s.journal = j
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty store backed by the JSON file at path.
//
// An empty path gives a memory-only store whose Flush only writes the
// journal.
func NewStore(path string, opts ...Option) *Store {
	s := &Store{
		path:    path,
		entries: make(map[string]Entry),
		logger:  slog.Default().With("component", "learning.Store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the JSON file into memory.
//
// Description:
//
//	A missing file is not an error and leaves the store empty. Loaded
//	entries replace the in-memory table; pending attempts are kept.
//
// Outputs:
//
//	error - Wraps ErrCorrupt if the file cannot be decoded.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read learning database: %w", err)
	}

	var db database
	if err := json.Unmarshal(data, &db); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry, len(db.Entries))
	for k, v := range db.Entries {
		s.entries[k] = v
	}

	s.logger.Debug("learning database loaded",
		slog.String("path", s.path),
		slog.Int("entries", len(s.entries)),
	)
	return nil
}

// RecordAttempt folds an attempt into the table and queues it for the
// journal.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) RecordAttempt(a Attempt) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(a)
	s.pending = append(s.pending, a)
}

// apply updates the aggregate. Caller holds mu.
func (s *Store) apply(a Attempt) {
	key := Key(a.Category, a.StrategyID)
	e := s.entries[key]
	e.Attempts++
	if a.Outcome == OutcomeSuccess {
		e.Successes++
	} else {
		e.Failures++
	}
	if a.Timestamp.After(e.LastSeen) {
		e.LastSeen = a.Timestamp
	}
	s.entries[key] = e
}

// SuccessRate returns the smoothed success rate of a strategy for a
// category. Unseen pairs rate 0.5.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) SuccessRate(category classify.Category, strategyID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[Key(category, strategyID)].Rate()
}

// Entry returns the aggregate for a pair and whether it exists.
func (s *Store) Entry(category classify.Category, strategyID string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[Key(category, strategyID)]
	return e, ok
}

// Entries returns a copy of the table.
func (s *Store) Entries() map[string]Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Keys returns the table keys, sorted.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flush writes the table to disk and appends pending attempts to the journal.
//
// Description:
//
//	The JSON file is written atomically (temp file then rename) so a crash
//	leaves either the old or the new table. Pending attempts are cleared
//	only after the journal accepts them.
//
// Inputs:
//
//	ctx - Context for the journal write.
//
// Outputs:
//
//	error - Non-nil if either write fails.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	db := database{Entries: make(map[string]Entry, len(s.entries))}
	for k, v := range s.entries {
		db.Entries[k] = v
	}
	pending := append([]Attempt(nil), s.pending...)
	s.mu.Unlock()

	if s.path != "" {
		data, err := json.MarshalIndent(db, "", "  ")
		if err != nil {
			return fmt.Errorf("encode learning database: %w", err)
		}
		if err := fsutil.AtomicWriteFile(s.path, data, 0o644); err != nil {
			return fmt.Errorf("write learning database: %w", err)
		}
	}

	if s.journal != nil && len(pending) > 0 {
		if err := s.journal.Append(ctx, pending); err != nil {
			return fmt.Errorf("append learning journal: %w", err)
		}
	}

	s.mu.Lock()
	s.pending = s.pending[len(pending):]
	s.mu.Unlock()

	s.logger.Debug("learning database flushed",
		slog.String("path", s.path),
		slog.Int("entries", len(db.Entries)),
		slog.Int("journaled", len(pending)),
	)
	return nil
}

// Rebuild replaces the table with one replayed from the journal.
//
// Outputs:
//
//	int - Number of attempts replayed.
//	error - Non-nil if no journal is configured or replay fails.
func (s *Store) Rebuild(ctx context.Context) (int, error) {
	if s.journal == nil {
		return 0, errors.New("no journal configured")
	}

	rebuilt := &Store{entries: make(map[string]Entry)}
	count := 0
	err := s.journal.Replay(ctx, func(a Attempt) error {
		rebuilt.apply(a)
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("replay learning journal: %w", err)
	}

	s.mu.Lock()
	s.entries = rebuilt.entries
	s.mu.Unlock()
	return count, nil
}
