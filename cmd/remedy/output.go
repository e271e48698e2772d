// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/remedy/pkg/ux"
	"github.com/AleutianAI/remedy/services/remedy/converge"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emitResult writes the run report: the raw result with --json, otherwise
// a terminal summary.
func (c *cli) emitResult(env *environment, res *converge.Result) error {
	if c.opts.jsonOut {
		return writeJSON(c.stdout, res)
	}
	renderResult(env.out, res)
	return nil
}

func renderResult(p *ux.Printer, res *converge.Result) {
	title := "remedy: " + res.FinalState.String()
	if res.DryRun {
		title += " (dry run)"
	}
	p.Title(title)

	p.KeyValue("Final state", res.FinalState)
	p.KeyValue("Errors", fmt.Sprintf("%d -> %d", res.InitialErrorCount, res.FinalErrorCount))
	p.KeyValue("Iterations", res.Iterations)
	p.KeyValue("History", joinInts(res.History))
	if res.BackupID != "" {
		p.KeyValue("Backup", res.BackupID)
	}
	if res.SkippedLines > 0 {
		p.KeyValue("Unparsed lines", res.SkippedLines)
	}
	p.KeyValue("Duration", res.Duration.Round(time.Millisecond))

	if res.RolledBack {
		p.WarningBox("Regression", fmt.Sprintf(
			"The last pass raised the error count. All files were restored from backup %s.", res.BackupID))
	}

	if res.DryRun {
		for _, change := range res.Changes {
			p.Plain(strings.TrimRight(change.Diff, "\n"))
		}
	} else if !res.RolledBack {
		counts := make(map[string]int)
		for _, change := range res.Changes {
			counts[change.Path]++
		}
		paths := make([]string, 0, len(counts))
		for path := range counts {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			p.FileStatus(path, ux.IconSuccess, plural(counts[path], "patch", "patches"))
		}
	}

	for _, u := range res.Unresolved {
		p.FileStatus(u.Record.Location(), ux.IconWarning, u.Category.String()+": "+u.Reason)
	}

	p.Summary(res.Resolved, len(res.Unresolved), res.FinalErrorCount)

	switch res.FinalState {
	case converge.StateConverged:
		p.Success("checker reports no errors")
	case converge.StateRegressed:
		p.Error("run regressed and was rolled back")
	case converge.StateDiagnosticTimeout:
		p.Warning("checker timed out; patches applied so far were kept")
	case converge.StateCancelled:
		p.Warning("run interrupted; patches applied so far were kept")
	case converge.StateBudgetExhausted:
		if !res.DryRun {
			p.Warning("stopped with errors remaining")
		}
	}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " -> ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
