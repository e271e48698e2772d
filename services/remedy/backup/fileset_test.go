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
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverFilesWalk(t *testing.T) {
	root := setupProject(t, map[string]string{
		"src/a.ts":               "",
		"src/b.tsx":              "",
		"src/readme.md":          "",
		"node_modules/x/i.ts":    "",
		"vendor/v.ts":            "",
		".remedy/backups/old.ts": "",
		".hidden.ts":             "",
	})

	files, err := DiscoverFiles(context.Background(), root, nil, []string{".ts", "tsx"})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.ts", "src/b.tsx"}, files)

	all, err := DiscoverFiles(context.Background(), root, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.ts", "src/b.tsx", "src/readme.md"}, all)
}

func TestDiscoverFilesGit(t *testing.T) {
	root := setupProject(t, map[string]string{
		"a.go":      "",
		"b.go":      "",
		".remedy/x": "",
	})
	git := &fakeGit{repo: true, files: []string{"a.go", "b.go", "deleted.go", ".remedy/x", "a.go"}}

	files, err := DiscoverFiles(context.Background(), root, git, []string{".go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "b.go"}, files)
}

func TestGitClient(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	root := setupProject(t, map[string]string{"main.go": "package main\n"})

	_, err := NewGit("relative/path", 0)
	require.Error(t, err)

	g, err := NewGit(root, 0)
	require.NoError(t, err)
	ctx := context.Background()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = root
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-q")
	run("-c", "user.email=test@example.com", "-c", "user.name=test", "add", "main.go")
	run("-c", "user.email=test@example.com", "-c", "user.name=test", "commit", "-q", "-m", "init")

	assert.True(t, g.IsGitRepository(ctx))

	commit, err := g.HeadCommit(ctx)
	require.NoError(t, err)
	assert.Len(t, commit, 40)

	files, err := g.ListFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, files)

	assert.Equal(t, filepath.Clean(root), g.repoPath)
}
