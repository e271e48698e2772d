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

import (
	"encoding/json"
	"testing"
)

func TestStateExitCodes(t *testing.T) {
	tests := []struct {
		state    State
		exit     int
		terminal bool
	}{
		{StateConverged, 0, true},
		{StateRegressed, 1, true},
		{StateBudgetExhausted, 2, true},
		{StateDiagnosticTimeout, 2, true},
		{StateCancelled, 2, true},
		{StateInit, 1, false},
		{StateFixing, 1, false},
	}
	for _, tt := range tests {
		if got := tt.state.ExitCode(); got != tt.exit {
			t.Errorf("%s.ExitCode() = %d, want %d", tt.state, got, tt.exit)
		}
		if got := tt.state.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.state, got, tt.terminal)
		}
	}
}

func TestStateText(t *testing.T) {
	data, err := json.Marshal(StateBudgetExhausted)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"budget_exhausted"` {
		t.Errorf("marshal = %s", data)
	}

	var s State
	if err := json.Unmarshal([]byte(`"diagnostic_timeout"`), &s); err != nil {
		t.Fatal(err)
	}
	if s != StateDiagnosticTimeout {
		t.Errorf("unmarshal = %v", s)
	}
	if err := json.Unmarshal([]byte(`"bogus"`), &s); err == nil {
		t.Error("expected error for unknown state")
	}
	if got := State(99).String(); got != "state(99)" {
		t.Errorf("String() = %q", got)
	}
}

func TestSessionObserve(t *testing.T) {
	s := newSession(3)
	s.observe(5)
	s.observe(3)
	if s.InitialErrorCount != 5 || s.CurrentErrorCount != 3 || s.previous() != 5 {
		t.Errorf("session = %+v", s)
	}
	s.Iteration = 3
	if !s.budgetSpent() {
		t.Error("budget should be spent")
	}
}
