// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestApplierReadApply(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "src/a.ts", "one\ntwo\n")
	a := NewApplier(root)

	content, err := a.Read("src/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(content))

	require.NoError(t, a.Apply("src/a.ts", []byte("one\nTWO\n")))
	assert.Equal(t, "one\nTWO\n", readFile(t, path))

	// A later read in the same iteration sees the patched content and a
	// second patch builds on it.
	content, err = a.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "one\nTWO\n", string(content))
	require.NoError(t, a.Apply(path, []byte("ONE\nTWO\n")))
	assert.Equal(t, "ONE\nTWO\n", readFile(t, path))

	changes := a.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, "src/a.ts", changes[0].Path)
	assert.Contains(t, changes[0].Diff, "-two\n")
	assert.Contains(t, changes[0].Diff, "+TWO\n")
	assert.Equal(t, []string{"src/a.ts"}, a.TouchedFiles())
}

func TestApplierConflict(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "a.ts", "original\n")
	a := NewApplier(root)

	_, err := a.Read("a.ts")
	require.NoError(t, err)

	// Someone else edits the file after it was read.
	require.NoError(t, os.WriteFile(path, []byte("edited elsewhere\n"), 0o644))

	err = a.Apply("a.ts", []byte("patched\n"))
	assert.ErrorIs(t, err, ErrPatchConflict)
	assert.Equal(t, "edited elsewhere\n", readFile(t, path))
	assert.Empty(t, a.Changes())
}

func TestApplierRequiresRead(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.ts", "x\n")
	a := NewApplier(root)

	assert.ErrorIs(t, a.Apply("a.ts", []byte("y\n")), ErrPatchConflict)
}

func TestApplierBeginRereadsDisk(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "a.ts", "v1\n")
	a := NewApplier(root)

	_, err := a.Read("a.ts")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("v2\n"), 0o644))

	a.Begin()
	content, err := a.Read("a.ts")
	require.NoError(t, err)
	assert.Equal(t, "v2\n", string(content))
	assert.NoError(t, a.Apply("a.ts", []byte("v3\n")))
}

func TestApplierGuard(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "b.ts", "x\n")
	a := NewApplier(root, WithGuard(func(rel string) bool { return rel == "a.ts" }))

	_, err := a.Read("b.ts")
	require.NoError(t, err)
	assert.ErrorIs(t, a.Apply("b.ts", []byte("y\n")), ErrNotBackedUp)
	assert.Equal(t, "x\n", readFile(t, path))
}

func TestApplierDryRun(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "a.ts", "one\ntwo\n")
	a := NewApplier(root, WithDryRun(true))
	require.True(t, a.DryRun())

	_, err := a.Read("a.ts")
	require.NoError(t, err)
	require.NoError(t, a.Apply("a.ts", []byte("one\nTWO\n")))

	assert.Equal(t, "one\ntwo\n", readFile(t, path), "dry run must not write")

	// The overlay survives Begin and feeds later strategies.
	a.Begin()
	content, err := a.Read("a.ts")
	require.NoError(t, err)
	assert.Equal(t, "one\nTWO\n", string(content))
	require.NoError(t, a.Apply("a.ts", []byte("ONE\nTWO\n")))
	assert.Equal(t, "one\ntwo\n", readFile(t, path))
	assert.Len(t, a.Changes(), 2)
}

func TestApplierResetDropsOverlayAndChanges(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.ts", "one\n")
	a := NewApplier(root, WithDryRun(true))

	_, err := a.Read("a.ts")
	require.NoError(t, err)
	require.NoError(t, a.Apply("a.ts", []byte("ONE\n")))
	require.Len(t, a.Changes(), 1)

	a.Reset()
	assert.Empty(t, a.Changes())
	assert.Empty(t, a.TouchedFiles())
	content, err := a.Read("a.ts")
	require.NoError(t, err)
	assert.Equal(t, "one\n", string(content))
}

func TestApplierPreservesMode(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "run.sh", "echo hi\n")
	require.NoError(t, os.Chmod(path, 0o755))
	a := NewApplier(root)

	_, err := a.Read("run.sh")
	require.NoError(t, err)
	require.NoError(t, a.Apply("run.sh", []byte("echo bye\n")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestRelPath(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"src/a.ts", "src/a.ts", false},
		{"./src/../a.ts", "a.ts", false},
		{filepath.Join(root, "x", "y.go"), "x/y.go", false},
		{"../escape.ts", "", true},
		{filepath.Join(filepath.Dir(root), "sibling.ts"), "", true},
	}
	for _, tt := range tests {
		got, err := RelPath(root, tt.path)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrOutsideRoot, tt.path)
			continue
		}
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got)
	}
}
