// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fix

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/AleutianAI/remedy/services/remedy/diagnostic"
)

// Edit describes a single-line replacement: line Line was replaced by
// Inserted lines (0 means the line was deleted).
type Edit struct {
	Line     int `json:"line"`
	Inserted int `json:"inserted"`
}

// Delta is the change in line count caused by the edit.
func (e Edit) Delta() int {
	return e.Inserted - 1
}

// splitLines splits content into lines, each keeping its terminator.
func splitLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	parts := strings.SplitAfter(string(content), "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// lineAt returns the text of a 1-based line without its terminator, and
// the terminator itself.
func lineAt(content []byte, line int) (text, eol string, ok bool) {
	lines := splitLines(content)
	if line < 1 || line > len(lines) {
		return "", "", false
	}
	raw := lines[line-1]
	switch {
	case strings.HasSuffix(raw, "\r\n"):
		return raw[:len(raw)-2], "\r\n", true
	case strings.HasSuffix(raw, "\n"):
		return raw[:len(raw)-1], "\n", true
	default:
		return raw, "", true
	}
}

// replaceLine replaces a 1-based line with zero or more lines, reusing the
// original line terminator.
func replaceLine(content []byte, line int, replacement ...string) ([]byte, error) {
	lines := splitLines(content)
	if line < 1 || line > len(lines) {
		return nil, fmt.Errorf("line %d out of range (file has %d lines)", line, len(lines))
	}
	_, eol, _ := lineAt(content, line)

	var buf bytes.Buffer
	for _, l := range lines[:line-1] {
		buf.WriteString(l)
	}
	for i, r := range replacement {
		buf.WriteString(r)
		// The last replacement line inherits the original terminator, which
		// is empty when the flagged line was the unterminated final line.
		if i < len(replacement)-1 && eol == "" {
			buf.WriteString("\n")
		} else {
			buf.WriteString(eol)
		}
	}
	for _, l := range lines[line:] {
		buf.WriteString(l)
	}
	return buf.Bytes(), nil
}

// checkScope verifies that next differs from prev only at the given line
// and returns the resulting Edit.
func checkScope(prev, next []byte, line int) (Edit, error) {
	before := splitLines(prev)
	after := splitLines(next)
	if line < 1 || line > len(before) {
		return Edit{}, fmt.Errorf("line %d out of range", line)
	}

	head := before[:line-1]
	tail := before[line:]
	if len(after) < len(head)+len(tail) {
		return Edit{}, fmt.Errorf("patch removes lines outside line %d", line)
	}
	for i, l := range head {
		if after[i] != l {
			return Edit{}, fmt.Errorf("patch modifies line %d, outside flagged line %d", i+1, line)
		}
	}
	offset := len(after) - len(tail)
	for i, l := range tail {
		if after[offset+i] != l {
			return Edit{}, fmt.Errorf("patch modifies line %d, outside flagged line %d", line+1+i, line)
		}
	}
	return Edit{Line: line, Inserted: len(after) - len(head) - len(tail)}, nil
}

// isIdentRune reports whether r can be part of an identifier.
func isIdentRune(r byte) bool {
	return r == '_' || r == '$' || r < 0x80 && (unicode.IsLetter(rune(r)) || unicode.IsDigit(rune(r)))
}

// wordOccurrences returns the byte offsets of whole-word occurrences of word.
func wordOccurrences(text, word string) []int {
	var out []int
	if word == "" {
		return out
	}
	for start := 0; start <= len(text)-len(word); {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			break
		}
		pos := start + idx
		end := pos + len(word)
		leftOK := pos == 0 || !isIdentRune(text[pos-1])
		rightOK := end == len(text) || !isIdentRune(text[end])
		if leftOK && rightOK {
			out = append(out, pos)
		}
		start = pos + 1
	}
	return out
}

// columnToByte converts a 1-based column counted in unit into a byte
// offset into text. The column just past the last character maps to
// len(text). It fails for columns beyond that and for columns that land
// inside a character.
func columnToByte(text string, column int, unit diagnostic.ColumnUnit) (int, bool) {
	if column < 1 {
		return 0, false
	}
	want := column - 1

	if unit == diagnostic.ColumnByte {
		if want > len(text) || want < len(text) && !utf8.RuneStart(text[want]) {
			return 0, false
		}
		return want, true
	}

	units := 0
	for i, r := range text {
		if units == want {
			return i, true
		}
		if units > want {
			return 0, false
		}
		if unit == diagnostic.ColumnUTF16 {
			units += utf16.RuneLen(r)
		} else {
			units++
		}
	}
	if units == want {
		return len(text), true
	}
	return 0, false
}

// recordOffset returns the byte offset rec's column points at on text, or
// -1 when the record has no column.
func recordOffset(rec diagnostic.Record, text string) (int, bool) {
	if rec.Column == 0 {
		return -1, true
	}
	return columnToByte(text, rec.Column, rec.ColumnUnit)
}

// pickOccurrence chooses the occurrence the diagnostic points at, given as
// a byte offset (negative when the tool reported no column).
//
// With an offset, the occurrence covering it wins, else the first one
// after it. Without one the occurrence must be unique.
func pickOccurrence(occurrences []int, width, at int) (int, bool) {
	if len(occurrences) == 0 {
		return 0, false
	}
	if at >= 0 {
		for _, pos := range occurrences {
			if pos <= at && at < pos+width {
				return pos, true
			}
		}
		for _, pos := range occurrences {
			if pos >= at {
				return pos, true
			}
		}
		if len(occurrences) == 1 {
			return occurrences[0], true
		}
		return 0, false
	}
	if len(occurrences) == 1 {
		return occurrences[0], true
	}
	return 0, false
}

// levenshtein returns the edit distance between a and b.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
