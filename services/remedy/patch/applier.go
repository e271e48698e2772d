// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package patch writes strategy output to disk.
//
// The Applier is the only component that mutates the working tree. It
// refuses a write when the file changed on disk since it was last read or
// written by the applier itself, refuses files the run's backup does not
// cover, and replaces files atomically so a crash never leaves a
// half-written source file. In dry-run mode it keeps the patched content
// in memory and only records diffs.
package patch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/AleutianAI/remedy/pkg/fsutil"
)

// Change is one applied (or, in dry-run, proposed) patch.
type Change struct {
	// Path is root-relative with forward slashes.
	Path string `json:"path"`

	// Diff is the unified diff of this patch alone.
	Diff string `json:"diff"`

	// RolledBack is set when a backup restore undid the patch.
	RolledBack bool `json:"rolledBack,omitempty"`
}

// fileState tracks one file during an iteration.
type fileState struct {
	// content is the applier's view: on-disk content, or the overlay in
	// dry-run.
	content []byte

	// diskHash is the hash the file must still have on disk for a write
	// to proceed.
	diskHash string

	mode os.FileMode
}

// Applier reads and patches files under a root directory.
//
// Thread Safety: Safe for concurrent use, though a run drives it from one
// goroutine.
type Applier struct {
	root   string
	dryRun bool
	guard  func(rel string) bool
	logger *slog.Logger

	mu      sync.Mutex
	files   map[string]*fileState
	changes []Change
}

// Option configures an Applier.
type Option func(*Applier)

// WithDryRun keeps patches in memory instead of writing them.
func WithDryRun(dryRun bool) Option {
	return func(a *Applier) {
		a.dryRun = dryRun
	}
}

// WithGuard sets the predicate that decides whether a root-relative path
// may be written. Typically Manifest.Contains of the run's backup.
func WithGuard(guard func(rel string) bool) Option {
	return func(a *Applier) {
		a.guard = guard
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Applier) {
		a.logger = logger
	}
}

// NewApplier creates an applier rooted at root.
func NewApplier(root string, opts ...Option) *Applier {
	a := &Applier{
		root:   root,
		files:  make(map[string]*fileState),
		logger: slog.Default().With("component", "patch.Applier"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetGuard replaces the write guard. Used once the backup manifest exists.
func (a *Applier) SetGuard(guard func(rel string) bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.guard = guard
}

// DryRun reports whether the applier writes to disk.
func (a *Applier) DryRun() bool {
	return a.dryRun
}

// Begin starts a new iteration.
//
// Description:
//
//	Forgets per-file state so the next Read of each file observes the disk
//	again. In dry-run mode the overlay is kept, since the disk never
//	reflects earlier proposals.
func (a *Applier) Begin() {
	if a.dryRun {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.files = make(map[string]*fileState)
}

// Reset starts a new run: per-file state, the dry-run overlay and the
// change log are all dropped.
func (a *Applier) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.files = make(map[string]*fileState)
	a.changes = nil
}

// Rel converts a tool-reported path to a root-relative slash path.
//
// Outputs:
//
//	string - Root-relative path.
//	error - ErrOutsideRoot if the path escapes the root.
func (a *Applier) Rel(path string) (string, error) {
	return RelPath(a.root, path)
}

// RelPath converts path (absolute or relative to root) to a clean
// root-relative slash path.
func RelPath(root, path string) (string, error) {
	return fsutil.RelPath(root, path)
}

// Read returns the current content of a file.
//
// Description:
//
//	The first Read of a file in an iteration loads it from disk and
//	records its hash. Later reads return the applier's tracked content,
//	which includes any patches applied since.
//
// Inputs:
//
//	path - Absolute or root-relative path.
//
// Outputs:
//
//	[]byte - A copy of the content.
//	error - ErrOutsideRoot or a read error.
func (a *Applier) Read(path string) ([]byte, error) {
	rel, err := a.Rel(path)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	st, err := a.load(rel)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), st.content...), nil
}

// load returns the tracked state of rel, reading it on first use.
// Caller holds mu.
func (a *Applier) load(rel string) (*fileState, error) {
	if st, ok := a.files[rel]; ok {
		return st, nil
	}
	abs := filepath.Join(a.root, filepath.FromSlash(rel))
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	st := &fileState{
		content:  content,
		diskHash: fsutil.HashBytes(content),
		mode:     fsutil.FileMode(abs, 0o644),
	}
	a.files[rel] = st
	return st, nil
}

// Apply writes new content for a file.
//
// Description:
//
//	Checks the guard, then that the on-disk hash still equals the hash
//	the applier last observed, then writes atomically. The file must have
//	been Read in the current iteration. In dry-run mode the disk check
//	still runs but nothing is written.
//
// Inputs:
//
//	path - Absolute or root-relative path.
//	next - Full new content.
//
// Outputs:
//
//	error - ErrNotBackedUp, ErrPatchConflict, ErrOutsideRoot or a write
//	error. On error the file and the tracked state are unchanged.
func (a *Applier) Apply(path string, next []byte) error {
	rel, err := a.Rel(path)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.guard != nil && !a.guard(rel) {
		return fmt.Errorf("%w: %s", ErrNotBackedUp, rel)
	}

	st, ok := a.files[rel]
	if !ok {
		return fmt.Errorf("%w: %s was not read in this iteration", ErrPatchConflict, rel)
	}

	abs := filepath.Join(a.root, filepath.FromSlash(rel))
	onDisk, err := fsutil.HashFile(abs)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPatchConflict, rel, err)
	}
	if onDisk != st.diskHash {
		a.logger.Warn("file changed on disk, skipping patch",
			slog.String("file", rel),
		)
		return fmt.Errorf("%w: %s", ErrPatchConflict, rel)
	}

	diffText, err := UnifiedDiff(rel, st.content, next)
	if err != nil {
		return fmt.Errorf("render diff for %s: %w", rel, err)
	}

	if !a.dryRun {
		if err := fsutil.AtomicWriteFile(abs, next, st.mode); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
		st.diskHash = fsutil.HashBytes(next)
	}
	st.content = append([]byte(nil), next...)
	a.changes = append(a.changes, Change{Path: rel, Diff: diffText})

	a.logger.Debug("patch applied",
		slog.String("file", rel),
		slog.Bool("dry_run", a.dryRun),
	)
	return nil
}

// Changes returns every patch applied so far, in order.
func (a *Applier) Changes() []Change {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Change(nil), a.changes...)
}

// TouchedFiles returns the sorted set of files patched so far.
func (a *Applier) TouchedFiles() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	seen := make(map[string]bool)
	for _, c := range a.changes {
		seen[c.Path] = true
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
