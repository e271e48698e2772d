// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package backup snapshots project files before any patch is applied and
// restores them when an iteration regresses.
//
// A snapshot lives under <state>/backups/<id>/: manifest.json plus one
// content-addressed blob per distinct file content in blobs/<sha256>.
// Manifests are never modified after they are written.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/remedy/pkg/fsutil"
)

const (
	// DefaultConcurrency bounds parallel hashing and copying.
	DefaultConcurrency = 8

	manifestFile = "manifest.json"
	blobDir      = "blobs"
)

// Manager creates, validates and restores snapshots.
//
// Thread Safety: Snapshot, Restore, Load and List may be called
// concurrently for different backup IDs.
type Manager struct {
	root        string
	dir         string
	git         GitClient
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithGit sets the git client used to capture the HEAD commit.
func WithGit(git GitClient) Option {
	return func(m *Manager) {
		m.git = git
	}
}

// WithConcurrency bounds parallel file work. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithClock overrides time.Now for manifest timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a manager for the project at root storing backups
// under <stateDir>/backups.
func NewManager(root, stateDir string, opts ...Option) *Manager {
	m := &Manager{
		root:        root,
		dir:         filepath.Join(stateDir, "backups"),
		concurrency: DefaultConcurrency,
		now:         time.Now,
		logger:      slog.Default().With("component", "backup.Manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dir returns the directory holding all backups.
func (m *Manager) Dir() string {
	return m.dir
}

// Snapshot copies files into a new backup and writes its manifest.
//
// # Description
//
// Each file is read, hashed and stored as a blob named by its hash. Files
// are processed in parallel up to the configured concurrency. When the
// root is a git work tree the HEAD commit is recorded as well; failure to
// read it is not an error.
//
// # Inputs
//
//   - ctx: Cancellation stops outstanding copies.
//   - files: Absolute or root-relative paths. Duplicates are collapsed.
//
// # Outputs
//
//   - *Manifest: The written manifest with files sorted by path.
//   - error: Wraps ErrBackupFailed. The partial backup is removed.
func (m *Manager) Snapshot(ctx context.Context, files []string) (manifest *Manifest, err error) {
	ctx, span := tracer.Start(ctx, "Manager.Snapshot",
		trace.WithAttributes(attribute.Int("backup.requested_files", len(files))),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		n := 0
		if manifest != nil {
			n = len(manifest.Files)
		}
		recordSnapshotMetrics(ctx, time.Since(start), n, err == nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	rels, err := m.normalize(files)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackupFailed, err)
	}

	id := uuid.NewString()
	dir := filepath.Join(m.dir, id)
	if err := os.MkdirAll(filepath.Join(dir, blobDir), 0o750); err != nil {
		return nil, fmt.Errorf("%w: creating backup directory: %w", ErrBackupFailed, err)
	}

	entries := make([]FileEntry, len(rels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, rel := range rels {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(filepath.Join(m.root, filepath.FromSlash(rel)))
			if err != nil {
				return fmt.Errorf("reading %s: %w", rel, err)
			}
			sum := fsutil.HashBytes(content)
			if err := m.writeBlob(dir, sum, content); err != nil {
				return fmt.Errorf("storing %s: %w", rel, err)
			}
			entries[i] = FileEntry{Path: rel, SHA256: sum}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.discard(dir)
		return nil, fmt.Errorf("%w: %w", ErrBackupFailed, err)
	}

	manifest = &Manifest{
		ID:        id,
		Timestamp: m.now().UTC(),
		Files:     entries,
	}
	if m.git != nil && m.git.IsGitRepository(ctx) {
		if commit, err := m.git.HeadCommit(ctx); err == nil {
			manifest.CommitHash = commit
		} else {
			m.logger.Debug("no commit recorded", slog.String("error", err.Error()))
		}
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		m.discard(dir)
		return nil, fmt.Errorf("%w: encoding manifest: %w", ErrBackupFailed, err)
	}
	if err := fsutil.AtomicWriteFile(filepath.Join(dir, manifestFile), data, 0o644); err != nil {
		m.discard(dir)
		return nil, fmt.Errorf("%w: writing manifest: %w", ErrBackupFailed, err)
	}

	span.SetAttributes(attribute.String("backup.id", id))
	m.logger.Info("backup created",
		slog.String("backup_id", id),
		slog.Int("files", len(entries)),
		slog.String("commit", manifest.CommitHash),
	)
	return manifest, nil
}

func (m *Manager) normalize(files []string) ([]string, error) {
	seen := make(map[string]bool, len(files))
	rels := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := fsutil.RelPath(m.root, f)
		if err != nil {
			return nil, err
		}
		if seen[rel] {
			continue
		}
		seen[rel] = true
		rels = append(rels, rel)
	}
	sort.Strings(rels)
	return rels, nil
}

func (m *Manager) writeBlob(dir, sum string, content []byte) error {
	path := filepath.Join(dir, blobDir, sum)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return fsutil.AtomicWriteFile(path, content, 0o600)
}

func (m *Manager) discard(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		m.logger.Warn("failed to remove partial backup",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)
	}
}

// Restore writes every file in the manifest back to its captured content.
//
// Blobs are verified against their hash before being written. A failure on
// one file does not stop the others; all failures are joined into an error
// wrapping ErrRestoreFailed.
func (m *Manager) Restore(ctx context.Context, manifest *Manifest) (err error) {
	ctx, span := tracer.Start(ctx, "Manager.Restore",
		trace.WithAttributes(attribute.String("backup.id", manifest.ID)),
	)
	defer span.End()
	defer func() {
		recordRestoreMetrics(ctx, err == nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	dir := filepath.Join(m.dir, manifest.ID)

	var (
		mu   sync.Mutex
		errs []error
	)
	// Restore runs after a regression and must finish even when the run
	// context is already cancelled.
	g := new(errgroup.Group)
	g.SetLimit(m.concurrency)
	for _, f := range manifest.Files {
		g.Go(func() error {
			if err := m.restoreFile(dir, f); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
		m.logger.Error("restore failed",
			slog.String("backup_id", manifest.ID),
			slog.Int("failed_files", len(errs)),
		)
		return fmt.Errorf("%w: backup %s: %w", ErrRestoreFailed, manifest.ID, errors.Join(errs...))
	}

	m.logger.Info("backup restored",
		slog.String("backup_id", manifest.ID),
		slog.Int("files", len(manifest.Files)),
	)
	return nil
}

func (m *Manager) restoreFile(dir string, f FileEntry) error {
	content, err := os.ReadFile(filepath.Join(dir, blobDir, f.SHA256))
	if err != nil {
		return fmt.Errorf("%s: reading blob: %w", f.Path, err)
	}
	if got := fsutil.HashBytes(content); got != f.SHA256 {
		return fmt.Errorf("%s: %w: blob hash %s, want %s", f.Path, ErrCorruptBackup, got, f.SHA256)
	}
	abs := filepath.Join(m.root, filepath.FromSlash(f.Path))
	if err := fsutil.AtomicWriteFile(abs, content, fsutil.FileMode(abs, 0o644)); err != nil {
		return fmt.Errorf("%s: %w", f.Path, err)
	}
	return nil
}

// Verify checks that every blob referenced by the manifest exists and
// matches its hash.
func (m *Manager) Verify(manifest *Manifest) error {
	if manifest == nil || manifest.ID == "" {
		return fmt.Errorf("%w: empty manifest", ErrCorruptBackup)
	}
	dir := filepath.Join(m.dir, manifest.ID)
	for _, f := range manifest.Files {
		sum, err := fsutil.HashFile(filepath.Join(dir, blobDir, f.SHA256))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCorruptBackup, f.Path, err)
		}
		if sum != f.SHA256 {
			return fmt.Errorf("%w: %s: blob hash mismatch", ErrCorruptBackup, f.Path)
		}
	}
	return nil
}

// CheckFiles checks that every file the manifest lists still exists in
// the project as a regular file and can be opened for reading.
func (m *Manager) CheckFiles(manifest *Manifest) error {
	if manifest == nil {
		return fmt.Errorf("%w: empty manifest", ErrCorruptBackup)
	}
	var errs []error
	for _, f := range manifest.Files {
		if err := checkReadable(filepath.Join(m.root, filepath.FromSlash(f.Path))); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrFileMissing, f.Path, err))
		}
	}
	return errors.Join(errs...)
}

func checkReadable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

// Validate reports whether the backup is intact and every file it lists
// is still present and readable in the project.
func (m *Manager) Validate(manifest *Manifest) bool {
	return m.Verify(manifest) == nil && m.CheckFiles(manifest) == nil
}

// Load reads the manifest of backup id.
func (m *Manager) Load(id string) (*Manifest, error) {
	if id == "" || filepath.Base(id) != id {
		return nil, fmt.Errorf("%w: %q", ErrManifestNotFound, id)
	}
	data, err := os.ReadFile(filepath.Join(m.dir, id, manifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, id)
		}
		return nil, fmt.Errorf("reading manifest %s: %w", id, err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%w: manifest %s: %v", ErrCorruptBackup, id, err)
	}
	if manifest.ID != id {
		return nil, fmt.Errorf("%w: manifest %s has id %q", ErrCorruptBackup, id, manifest.ID)
	}
	sort.Slice(manifest.Files, func(i, j int) bool { return manifest.Files[i].Path < manifest.Files[j].Path })
	return &manifest, nil
}

// List returns all readable manifests, newest first. Unreadable backups
// are logged and skipped.
func (m *Manager) List() ([]*Manifest, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	var out []*Manifest
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		manifest, err := m.Load(e.Name())
		if err != nil {
			m.logger.Warn("skipping unreadable backup",
				slog.String("backup_id", e.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, manifest)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}
