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
	"sort"
	"time"
)

// FileEntry is one file captured by a snapshot.
type FileEntry struct {
	// Path is root-relative with forward slashes.
	Path string `json:"path"`

	// SHA256 is the hex digest of the captured content. It is also the
	// blob name.
	SHA256 string `json:"sha256"`
}

// Manifest records one snapshot of the project. It is written once and
// never modified.
type Manifest struct {
	ID         string      `json:"id"`
	Timestamp  time.Time   `json:"timestamp"`
	CommitHash string      `json:"commitHash,omitempty"`
	Files      []FileEntry `json:"files"`
}

// Contains reports whether rel is covered by the manifest.
func (m *Manifest) Contains(rel string) bool {
	if m == nil {
		return false
	}
	i := sort.Search(len(m.Files), func(i int) bool { return m.Files[i].Path >= rel })
	return i < len(m.Files) && m.Files[i].Path == rel
}

// Paths returns the covered paths in manifest order.
func (m *Manifest) Paths() []string {
	out := make([]string, len(m.Files))
	for i, f := range m.Files {
		out[i] = f.Path
	}
	return out
}
