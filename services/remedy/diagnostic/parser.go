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
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Parse converts raw tool output into records using the profile's pattern.
//
// Description:
//
//	Splits raw on newlines and matches each line against the profile
//	pattern. Matching lines become Records in output order. Non-blank
//	lines that match nothing are skipped and counted. When the profile
//	sets Continuation, indented lines that directly follow a record are
//	appended to its message. When ErrorsOnly is set, warnings and infos
//	are dropped and counted as filtered.
//
// Inputs:
//
//	raw - Combined tool output.
//	profile - The tool profile. Compiled on demand if needed.
//
// Outputs:
//
//	ParseResult - Records plus skipped/filtered counts. A profile whose
//	pattern does not compile yields every non-blank line as skipped.
//
// Thread Safety: Pure function; safe for concurrent use.
func Parse(raw string, profile *ToolProfile) ParseResult {
	var result ParseResult

	re := profile.re
	if re == nil {
		compiled := profile.Clone()
		if err := compiled.Compile(); err == nil {
			re = compiled.re
		}
	}

	// open tracks whether the previous line belongs to a record that can
	// take continuation lines; filtered tracks continuation of a dropped one.
	open, filtered := false, false

	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			open, filtered = false, false
			continue
		}

		if profile.Continuation && (line[0] == ' ' || line[0] == '\t') {
			if open {
				last := &result.Records[len(result.Records)-1]
				last.Message += "\n" + strings.TrimSpace(line)
				last.Raw += "\n" + line
				continue
			}
			if filtered {
				continue
			}
		}

		rec, ok := matchLine(re, line)
		if !ok {
			result.SkippedLines++
			open, filtered = false, false
			continue
		}

		if rec.Column > 0 {
			rec.ColumnUnit = profile.ColumnUnit
		}

		if profile.ErrorsOnly && rec.Severity != SeverityError {
			result.FilteredLines++
			open, filtered = false, true
			continue
		}

		result.Records = append(result.Records, rec)
		open, filtered = true, false
	}

	return result
}

// matchLine extracts a record from one line.
func matchLine(re *regexp.Regexp, line string) (Record, bool) {
	if re == nil {
		return Record{}, false
	}
	m := re.FindStringSubmatch(line)
	if m == nil {
		return Record{}, false
	}

	group := func(name string) string {
		idx := re.SubexpIndex(name)
		if idx < 0 || idx >= len(m) {
			return ""
		}
		return strings.TrimSpace(m[idx])
	}

	lineNo, err := strconv.Atoi(group("line"))
	if err != nil || lineNo < 1 {
		return Record{}, false
	}
	file := group("file")
	if file == "" {
		return Record{}, false
	}

	col := 0
	if c := group("column"); c != "" {
		if n, err := strconv.Atoi(c); err == nil && n > 0 {
			col = n
		}
	}

	return Record{
		File:     filepath.ToSlash(filepath.Clean(file)),
		Line:     lineNo,
		Column:   col,
		Code:     group("code"),
		Message:  group("message"),
		Severity: ParseSeverity(group("severity")),
		Raw:      line,
	}, true
}
