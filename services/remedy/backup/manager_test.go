// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGit struct {
	repo   bool
	commit string
	files  []string
}

func (g *fakeGit) IsGitRepository(context.Context) bool { return g.repo }

func (g *fakeGit) HeadCommit(context.Context) (string, error) {
	if g.commit == "" {
		return "", os.ErrNotExist
	}
	return g.commit, nil
}

func (g *fakeGit) ListFiles(context.Context) ([]string, error) { return g.files, nil }

func setupProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	root := setupProject(t, map[string]string{
		"src/a.ts": "export const a = 1;\n",
		"src/b.ts": "export const b = 2;\n",
		"c.ts":     "export const a = 1;\n",
	})
	m := NewManager(root, filepath.Join(root, ".remedy"), WithGit(&fakeGit{repo: true, commit: "abc123"}))
	ctx := context.Background()

	manifest, err := m.Snapshot(ctx, []string{"src/b.ts", filepath.Join(root, "src", "a.ts"), "c.ts", "src/a.ts"})
	require.NoError(t, err)
	require.Len(t, manifest.Files, 3)
	assert.Equal(t, []string{"c.ts", "src/a.ts", "src/b.ts"}, manifest.Paths())
	assert.Equal(t, "abc123", manifest.CommitHash)
	assert.Equal(t, manifest.Files[0].SHA256, manifest.Files[1].SHA256, "identical content shares a hash")
	assert.True(t, m.Validate(manifest))

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.ts"), []byte("broken"), 0o644))
	require.NoError(t, os.Remove(filepath.Join(root, "src", "b.ts")))

	require.NoError(t, m.Restore(ctx, manifest))

	a, err := os.ReadFile(filepath.Join(root, "src", "a.ts"))
	require.NoError(t, err)
	assert.Equal(t, "export const a = 1;\n", string(a))
	b, err := os.ReadFile(filepath.Join(root, "src", "b.ts"))
	require.NoError(t, err)
	assert.Equal(t, "export const b = 2;\n", string(b))
}

func TestSnapshotMissingFile(t *testing.T) {
	root := setupProject(t, map[string]string{"a.ts": "x"})
	m := NewManager(root, filepath.Join(root, ".remedy"))

	_, err := m.Snapshot(context.Background(), []string{"a.ts", "missing.ts"})
	require.ErrorIs(t, err, ErrBackupFailed)

	entries, err := os.ReadDir(m.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "partial backup must be removed")
}

func TestSnapshotOutsideRoot(t *testing.T) {
	root := setupProject(t, map[string]string{"a.ts": "x"})
	m := NewManager(root, filepath.Join(root, ".remedy"))

	_, err := m.Snapshot(context.Background(), []string{"../elsewhere.ts"})
	assert.ErrorIs(t, err, ErrBackupFailed)
}

func TestManifestJSON(t *testing.T) {
	root := setupProject(t, map[string]string{"a.ts": "x"})
	m := NewManager(root, filepath.Join(root, ".remedy"))

	manifest, err := m.Snapshot(context.Background(), []string{"a.ts"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(m.Dir(), manifest.ID, "manifest.json"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, manifest.ID, raw["id"])
	assert.Contains(t, raw, "timestamp")
	assert.NotContains(t, raw, "commitHash", "omitted outside git")
	files := raw["files"].([]any)
	require.Len(t, files, 1)
	entry := files[0].(map[string]any)
	assert.Equal(t, "a.ts", entry["path"])
	assert.Equal(t, manifest.Files[0].SHA256, entry["sha256"])
}

func TestValidateMissingProjectFile(t *testing.T) {
	root := setupProject(t, map[string]string{"a.ts": "one", "b.ts": "two"})
	m := NewManager(root, filepath.Join(root, ".remedy"))

	manifest, err := m.Snapshot(context.Background(), []string{"a.ts", "b.ts"})
	require.NoError(t, err)
	require.True(t, m.Validate(manifest))

	require.NoError(t, os.Remove(filepath.Join(root, "a.ts")))

	assert.False(t, m.Validate(manifest))
	assert.NoError(t, m.Verify(manifest), "blobs are still intact")
	err = m.CheckFiles(manifest)
	assert.ErrorIs(t, err, ErrFileMissing)
	assert.Contains(t, err.Error(), "a.ts")
	assert.NotContains(t, err.Error(), "b.ts")
}

func TestValidateListedPathIsDirectory(t *testing.T) {
	root := setupProject(t, map[string]string{"a.ts": "one"})
	m := NewManager(root, filepath.Join(root, ".remedy"))

	manifest, err := m.Snapshot(context.Background(), []string{"a.ts"})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "a.ts")))
	require.NoError(t, os.Mkdir(filepath.Join(root, "a.ts"), 0o755))

	assert.False(t, m.Validate(manifest))
	assert.ErrorIs(t, m.CheckFiles(manifest), ErrFileMissing)
}

func TestRestoreCorruptBlob(t *testing.T) {
	root := setupProject(t, map[string]string{"a.ts": "one", "b.ts": "two"})
	m := NewManager(root, filepath.Join(root, ".remedy"))
	ctx := context.Background()

	manifest, err := m.Snapshot(ctx, []string{"a.ts", "b.ts"})
	require.NoError(t, err)

	blob := filepath.Join(m.Dir(), manifest.ID, "blobs", manifest.Files[0].SHA256)
	require.NoError(t, os.WriteFile(blob, []byte("tampered"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.ts"), []byte("changed"), 0o644))

	assert.False(t, m.Validate(manifest))
	assert.ErrorIs(t, m.Verify(manifest), ErrCorruptBackup)

	err = m.Restore(ctx, manifest)
	require.ErrorIs(t, err, ErrRestoreFailed)
	assert.ErrorIs(t, err, ErrCorruptBackup)

	// The intact file is still restored.
	b, err := os.ReadFile(filepath.Join(root, "b.ts"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(b))
}

func TestLoadAndList(t *testing.T) {
	root := setupProject(t, map[string]string{"a.ts": "x"})
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(root, filepath.Join(root, ".remedy"), WithClock(func() time.Time {
		now = now.Add(time.Minute)
		return now
	}))
	ctx := context.Background()

	first, err := m.Snapshot(ctx, []string{"a.ts"})
	require.NoError(t, err)
	second, err := m.Snapshot(ctx, []string{"a.ts"})
	require.NoError(t, err)

	loaded, err := m.Load(first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Files, loaded.Files)
	assert.True(t, first.Timestamp.Equal(loaded.Timestamp))

	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	_, err = m.Load("does-not-exist")
	assert.ErrorIs(t, err, ErrManifestNotFound)
	_, err = m.Load("../escape")
	assert.ErrorIs(t, err, ErrManifestNotFound)
}

func TestListEmpty(t *testing.T) {
	m := NewManager(t.TempDir(), filepath.Join(t.TempDir(), "state"))
	list, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestManifestContains(t *testing.T) {
	m := &Manifest{Files: []FileEntry{{Path: "a.ts"}, {Path: "src/b.ts"}}}
	assert.True(t, m.Contains("a.ts"))
	assert.True(t, m.Contains("src/b.ts"))
	assert.False(t, m.Contains("src/c.ts"))

	var nilManifest *Manifest
	assert.False(t, nilManifest.Contains("a.ts"))
}
