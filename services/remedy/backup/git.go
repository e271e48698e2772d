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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// GitClient is the subset of git the backup manager needs.
type GitClient interface {
	// IsGitRepository reports whether the root is inside a work tree.
	IsGitRepository(ctx context.Context) bool

	// HeadCommit returns the full hash of HEAD.
	HeadCommit(ctx context.Context) (string, error)

	// ListFiles returns tracked and untracked, non-ignored files relative
	// to the root.
	ListFiles(ctx context.Context) ([]string, error)
}

// Git shells out to the git binary.
type Git struct {
	repoPath string
	timeout  time.Duration
}

// NewGit creates a git client rooted at repoPath.
//
// # Inputs
//
//   - repoPath: Absolute path of the project root.
//   - timeout: Per-command timeout. Zero means 30 seconds.
//
// # Outputs
//
//   - *Git: Ready client.
//   - error: Non-nil if repoPath is not absolute.
func NewGit(repoPath string, timeout time.Duration) (*Git, error) {
	if !filepath.IsAbs(repoPath) {
		return nil, fmt.Errorf("repoPath must be absolute: %s", repoPath)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Git{repoPath: repoPath, timeout: timeout}, nil
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.repoPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("git %s: timeout after %v", args[0], g.timeout)
		}
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// IsGitRepository implements GitClient.
func (g *Git) IsGitRepository(ctx context.Context) bool {
	out, err := g.run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// HeadCommit implements GitClient. Fails on a repository with no commits.
func (g *Git) HeadCommit(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("getting HEAD commit: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ListFiles implements GitClient.
func (g *Git) ListFiles(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "ls-files", "-z", "--cached", "--others", "--exclude-standard")
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	var files []string
	seen := make(map[string]bool)
	for _, f := range strings.Split(out, "\x00") {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		files = append(files, f)
	}
	return files, nil
}
