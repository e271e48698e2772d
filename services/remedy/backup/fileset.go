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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiscoverFiles returns the default backup file set for root: every file
// with one of the given extensions (all files when extensions is empty),
// root-relative with forward slashes, sorted.
//
// Inside a git work tree the candidates come from git (tracked plus
// untracked, honouring .gitignore). Otherwise the tree is walked, skipping
// hidden, vendor and node_modules directories. Paths with a hidden
// component are dropped in both cases, which keeps the state directory out
// of its own backups.
func DiscoverFiles(ctx context.Context, root string, git GitClient, extensions []string) ([]string, error) {
	var candidates []string
	if git != nil && git.IsGitRepository(ctx) {
		files, err := git.ListFiles(ctx)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			// ls-files --cached still lists files deleted from the work tree.
			info, err := os.Lstat(filepath.Join(root, filepath.FromSlash(f)))
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			candidates = append(candidates, f)
		}
	} else {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if path == root {
					return nil
				}
				if skipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			candidates = append(candidates, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking directory: %w", err)
		}
	}

	out := make([]string, 0, len(candidates))
	for _, f := range candidates {
		if hiddenPath(f) || !hasExtension(f, extensions) {
			continue
		}
		out = append(out, f)
	}
	sort.Strings(out)
	return out, nil
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "vendor" || name == "node_modules"
}

func hiddenPath(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func hasExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := filepath.Ext(path)
	for _, e := range extensions {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
