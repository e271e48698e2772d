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
	"errors"
	"fmt"
)

// Sentinel errors for the diagnostic package.
var (
	// ErrLaunchFailed indicates the tool binary could not be started.
	ErrLaunchFailed = errors.New("diagnostic tool launch failed")

	// ErrInvalidInput indicates a nil context, empty argv or similar.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownProfile indicates a tool profile name is not registered.
	ErrUnknownProfile = errors.New("unknown tool profile")

	// ErrInvalidProfile indicates a tool profile failed validation.
	ErrInvalidProfile = errors.New("invalid tool profile")
)

// RunnerError describes a failure to launch the diagnostic tool.
type RunnerError struct {
	// Command is argv[0].
	Command string

	// Err is the underlying error. Always wraps ErrLaunchFailed.
	Err error
}

// NewRunnerError creates a RunnerError for command wrapping cause.
func NewRunnerError(command string, cause error) *RunnerError {
	return &RunnerError{
		Command: command,
		Err:     fmt.Errorf("%w: %w", ErrLaunchFailed, cause),
	}
}

// Error implements the error interface.
func (e *RunnerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

// Unwrap returns the underlying error.
func (e *RunnerError) Unwrap() error {
	return e.Err
}
