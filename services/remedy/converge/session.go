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

// Session tracks error counts across iterations. It is owned by a single
// Run call.
type Session struct {
	InitialErrorCount int   `json:"initialErrorCount"`
	CurrentErrorCount int   `json:"currentErrorCount"`
	Iteration         int   `json:"iteration"`
	MaxIterations     int   `json:"maxIterations"`
	History           []int `json:"history"`
}

func newSession(maxIterations int) *Session {
	return &Session{MaxIterations: maxIterations}
}

// observe records the count from a fresh diagnostic run.
func (s *Session) observe(count int) {
	if len(s.History) == 0 {
		s.InitialErrorCount = count
	}
	s.CurrentErrorCount = count
	s.History = append(s.History, count)
}

// previous returns the count observed before the latest one.
func (s *Session) previous() int {
	if len(s.History) < 2 {
		return s.InitialErrorCount
	}
	return s.History[len(s.History)-2]
}

// budgetSpent reports whether the iteration budget is used up.
func (s *Session) budgetSpent() bool {
	return s.Iteration >= s.MaxIterations
}
