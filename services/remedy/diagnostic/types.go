// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagnostic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// SEVERITY
// =============================================================================

// Severity is the tool-reported severity of a record.
type Severity int

const (
	// SeverityError is the default when the tool does not report one.
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	*s = ParseSeverity(string(text))
	return nil
}

// ParseSeverity maps tool severity words to a Severity.
//
// Unknown or empty words map to SeverityError, since tools that omit a
// severity only report errors.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warning", "warn", "w":
		return SeverityWarning
	case "info", "note", "hint", "suggestion", "i":
		return SeverityInfo
	default:
		return SeverityError
	}
}

// =============================================================================
// COLUMN UNITS
// =============================================================================

// ColumnUnit names what a tool counts when it reports a column.
type ColumnUnit string

const (
	// ColumnRune counts Unicode code points. Python tools and most
	// checkers do this. It is the default.
	ColumnRune ColumnUnit = "rune"

	// ColumnUTF16 counts UTF-16 code units, as JavaScript tools do.
	ColumnUTF16 ColumnUnit = "utf16"

	// ColumnByte counts bytes, as the Go toolchain does.
	ColumnByte ColumnUnit = "byte"
)

// Valid reports whether u is empty or a known unit.
func (u ColumnUnit) Valid() bool {
	switch u {
	case "", ColumnRune, ColumnUTF16, ColumnByte:
		return true
	}
	return false
}

// =============================================================================
// RECORD
// =============================================================================

// Record is one structured diagnostic parsed from tool output.
//
// Records are immutable values. They are re-derived from a fresh tool run
// every iteration and never carried across runs.
type Record struct {
	// File is the path as reported by the tool, cleaned.
	File string `json:"file"`

	// Line is the 1-based line number.
	Line int `json:"line"`

	// Column is the 1-based column number, or 0 when not reported.
	Column int `json:"column,omitempty"`

	// ColumnUnit is what Column counts. Empty means ColumnRune.
	ColumnUnit ColumnUnit `json:"columnUnit,omitempty"`

	// Code is the tool-specific error code (e.g. "TS2304"), possibly empty.
	Code string `json:"code,omitempty"`

	// Message is the human-readable message. Continuation lines are
	// appended with a newline.
	Message string `json:"message"`

	// Severity is the tool-reported severity.
	Severity Severity `json:"severity"`

	// Raw is the original text the record was parsed from.
	Raw string `json:"raw"`
}

// Fingerprint identifies a diagnostic independent of its line position.
//
// Two records with the same fingerprint describe the same problem even if
// edits earlier in the file shifted it to another line.
func (r Record) Fingerprint() string {
	return r.File + "|" + r.Code + "|" + r.Message
}

// Location returns "file:line:column" for log output.
func (r Record) Location() string {
	if r.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", r.File, r.Line, r.Column)
	}
	return fmt.Sprintf("%s:%d", r.File, r.Line)
}

// =============================================================================
// RUN OUTPUT
// =============================================================================

// Output is the result of one diagnostic tool execution.
type Output struct {
	// Raw is the combined stdout and stderr text.
	Raw string `json:"raw"`

	// ExitCode is the process exit code, or -1 when the process was killed.
	ExitCode int `json:"exit_code"`

	// TimedOut is true when the run exceeded its timeout or was cancelled.
	TimedOut bool `json:"timed_out"`

	// Duration is the wall-clock time of the run.
	Duration time.Duration `json:"duration"`
}

// ParseResult is the output of Parse.
type ParseResult struct {
	// Records in the order they appeared in the tool output.
	Records []Record

	// SkippedLines counts non-blank lines that matched no pattern.
	SkippedLines int

	// FilteredLines counts matched lines dropped by the profile's
	// severity filter.
	FilteredLines int
}
