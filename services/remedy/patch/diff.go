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
	"bytes"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// contextLines is the number of unchanged lines shown around a change.
const contextLines = 3

// UnifiedDiff renders the change from prev to next as a unified diff.
//
// Description:
//
//	Patches touch one contiguous region, so the diff is a single hunk
//	spanning the lines between the common prefix and the common suffix,
//	with up to three lines of context on each side. Returns "" when the
//	contents are equal.
//
// Inputs:
//
//	path - Root-relative path used in the a/ and b/ headers.
//	prev - Content before the change.
//	next - Content after the change.
//
// Outputs:
//
//	string - The diff text.
//	error - Non-nil if rendering fails.
func UnifiedDiff(path string, prev, next []byte) (string, error) {
	if bytes.Equal(prev, next) {
		return "", nil
	}

	a := splitKeep(prev)
	b := splitKeep(next)

	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix && a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	lead := min(contextLines, prefix)
	trail := min(contextLines, suffix)

	start := prefix - lead
	aEnd := len(a) - suffix + trail
	bEnd := len(b) - suffix + trail

	var body bytes.Buffer
	writeLine := func(mark byte, line string) {
		body.WriteByte(mark)
		body.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			body.WriteString("\n\\ No newline at end of file\n")
		}
	}
	for _, l := range a[start:prefix] {
		writeLine(' ', l)
	}
	for _, l := range a[prefix : len(a)-suffix] {
		writeLine('-', l)
	}
	for _, l := range b[prefix : len(b)-suffix] {
		writeLine('+', l)
	}
	for _, l := range a[len(a)-suffix : aEnd] {
		writeLine(' ', l)
	}

	hunk := &diff.Hunk{
		OrigStartLine: hunkStart(start, aEnd),
		OrigLines:     int32(aEnd - start),
		NewStartLine:  hunkStart(start, bEnd),
		NewLines:      int32(bEnd - start),
		Body:          body.Bytes(),
	}
	fd := &diff.FileDiff{
		OrigName: "a/" + path,
		NewName:  "b/" + path,
		Hunks:    []*diff.Hunk{hunk},
	}

	out, err := diff.PrintFileDiff(fd)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// hunkStart returns the 1-based start line of a hunk, or 0 for an empty
// range at the top of the file.
func hunkStart(start, end int) int32 {
	if end == start && start == 0 {
		return 0
	}
	return int32(start + 1)
}

// splitKeep splits content into lines keeping terminators.
func splitKeep(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	parts := strings.SplitAfter(string(content), "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
