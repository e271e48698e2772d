// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package converge

import "fmt"

// State is a controller state. The last five are terminal.
type State int

const (
	StateInit State = iota
	StateDiagnosing
	StateClassifying
	StateFixing
	StateReverifying
	StateConverged
	StateRegressed
	StateBudgetExhausted
	StateDiagnosticTimeout
	StateCancelled
)

var stateNames = [...]string{
	StateInit:              "init",
	StateDiagnosing:        "diagnosing",
	StateClassifying:       "classifying",
	StateFixing:            "fixing",
	StateReverifying:       "reverifying",
	StateConverged:         "converged",
	StateRegressed:         "regressed",
	StateBudgetExhausted:   "budget_exhausted",
	StateDiagnosticTimeout: "diagnostic_timeout",
	StateCancelled:         "cancelled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s >= StateConverged && int(s) < len(stateNames)
}

// ExitCode maps a final state to the process exit code: 0 converged,
// 1 regressed (or not terminal, which means the run failed), 2 stopped
// with errors remaining.
func (s State) ExitCode() int {
	switch s {
	case StateConverged:
		return 0
	case StateBudgetExhausted, StateDiagnosticTimeout, StateCancelled:
		return 2
	default:
		return 1
	}
}
