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
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for diagnostic runs.
var (
	tracer = otel.Tracer("remedy.diagnostic")
	meter  = otel.Meter("remedy.diagnostic")
)

var (
	runLatency metric.Float64Histogram
	runTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"diagnostic_run_duration_seconds",
			metric.WithDescription("Duration of diagnostic tool runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runTotal, err = meter.Int64Counter(
			"diagnostic_runs_total",
			metric.WithDescription("Total number of diagnostic tool runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startRunSpan creates a span for a tool run.
func startRunSpan(ctx context.Context, command string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Runner.Run",
		trace.WithAttributes(
			attribute.String("diagnostic.command", command),
		),
	)
}

// setRunSpanResult sets the result attributes on a run span.
func setRunSpanResult(span trace.Span, out *Output) {
	span.SetAttributes(
		attribute.Int("diagnostic.exit_code", out.ExitCode),
		attribute.Bool("diagnostic.timed_out", out.TimedOut),
		attribute.Int("diagnostic.output_bytes", len(out.Raw)),
	)
}

// recordRunMetrics records metrics for a tool run.
func recordRunMetrics(ctx context.Context, command string, duration time.Duration, timedOut, launched bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("command", command),
		attribute.Bool("timed_out", timedOut),
		attribute.Bool("launched", launched),
	)

	runLatency.Record(ctx, duration.Seconds(), attrs)
	runTotal.Add(ctx, 1, attrs)
}
