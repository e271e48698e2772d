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
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// waitDelay bounds how long Run waits for grandchildren holding the output
// pipe after the tool itself has been killed.
const waitDelay = 5 * time.Second

// =============================================================================
// RUNNER
// =============================================================================

// Runner executes a diagnostic tool as a subprocess.
//
// Description:
//
//	Runs argv in the working directory with a timeout, capturing stdout and
//	stderr into a single buffer. The only error Run returns is a launch
//	failure; a non-zero exit code or a timeout is reported in Output.
//
// Thread Safety: Safe for concurrent use.
type Runner struct {
	workingDir string
	env        []string
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures the Runner.
type Option func(*Runner)

// WithWorkingDir sets the directory the tool runs in.
func WithWorkingDir(dir string) Option {
	return func(r *Runner) {
		r.workingDir = dir
	}
}

// WithEnv appends KEY=VALUE entries to the tool's environment.
func WithEnv(env ...string) Option {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

// WithDefaultTimeout sets the timeout used when Run receives zero.
func WithDefaultTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		timeout: DefaultTimeout,
		logger:  slog.Default().With("component", "diagnostic.Runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes argv and returns its combined output.
//
// Description:
//
//	Starts argv[0] with the remaining arguments and blocks until it exits,
//	the timeout elapses, or ctx is cancelled. On timeout or cancellation
//	the process is killed and Output.TimedOut is set; whatever output was
//	produced up to that point is returned.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	argv - Command and arguments. Must not be empty.
//	timeout - Maximum run time. Zero uses the runner default.
//
// Outputs:
//
//	*Output - Raw text, exit code, timeout flag and duration.
//	error - *RunnerError (wrapping ErrLaunchFailed) if the process could
//	not be started; ErrInvalidInput for bad arguments.
//
// Thread Safety: Safe for concurrent use.
func (r *Runner) Run(ctx context.Context, argv []string, timeout time.Duration) (*Output, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if len(argv) == 0 || argv[0] == "" {
		return nil, fmt.Errorf("%w: argv must not be empty", ErrInvalidInput)
	}
	if timeout <= 0 {
		timeout = r.timeout
	}

	ctx, span := startRunSpan(ctx, argv[0])
	defer span.End()
	start := time.Now()

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, argv[0], argv[1:]...)
	cmd.Dir = r.workingDir
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}
	cmd.WaitDelay = waitDelay

	// Same writer for both streams keeps the tool's interleaving.
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	out := &Output{
		Raw:      buf.String(),
		Duration: time.Since(start),
	}

	// A context that ends before or during the run is reported as a timeout.
	if cmdCtx.Err() != nil {
		out.TimedOut = true
		out.ExitCode = -1
		setRunSpanResult(span, out)
		recordRunMetrics(ctx, argv[0], out.Duration, true, true)
		r.logger.Warn("diagnostic tool timed out",
			slog.String("command", argv[0]),
			slog.Duration("timeout", timeout),
			slog.Bool("cancelled", ctx.Err() != nil),
		)
		return out, nil
	}

	if cmd.ProcessState == nil {
		launchErr := NewRunnerError(argv[0], err)
		span.RecordError(launchErr)
		recordRunMetrics(ctx, argv[0], out.Duration, false, false)
		r.logger.Error("diagnostic tool failed to launch",
			slog.String("command", argv[0]),
			slog.String("error", err.Error()),
		)
		return nil, launchErr
	}

	out.ExitCode = cmd.ProcessState.ExitCode()
	setRunSpanResult(span, out)
	recordRunMetrics(ctx, argv[0], out.Duration, false, true)

	r.logger.Debug("diagnostic tool finished",
		slog.String("command", argv[0]),
		slog.Int("exit_code", out.ExitCode),
		slog.Duration("duration", out.Duration),
		slog.Int("output_bytes", len(out.Raw)),
	)

	return out, nil
}
