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
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/remedy/services/remedy/learning"
)

var (
	tracer = otel.Tracer("remedy.converge")
	meter  = otel.Meter("remedy.converge")
)

var (
	runTotal       metric.Int64Counter
	runDuration    metric.Float64Histogram
	iterationCount metric.Int64Histogram
	fixTotal       metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runTotal, err = meter.Int64Counter(
			"converge_runs_total",
			metric.WithDescription("Total number of convergence runs by final state"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runDuration, err = meter.Float64Histogram(
			"converge_run_duration_seconds",
			metric.WithDescription("Duration of convergence runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		iterationCount, err = meter.Int64Histogram(
			"converge_iterations",
			metric.WithDescription("Fixing iterations per run"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fixTotal, err = meter.Int64Counter(
			"converge_fix_attempts_total",
			metric.WithDescription("Verified fix attempts by strategy and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startRunSpan(ctx context.Context, cfg Config) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Controller.Run",
		trace.WithAttributes(
			attribute.String("converge.profile", cfg.Profile.Name),
			attribute.Int("converge.max_iterations", cfg.MaxIterations),
			attribute.Bool("converge.dry_run", cfg.DryRun),
		),
	)
}

func setRunSpanResult(span trace.Span, res *Result, err error) {
	span.SetAttributes(
		attribute.String("converge.final_state", res.FinalState.String()),
		attribute.Int("converge.initial_errors", res.InitialErrorCount),
		attribute.Int("converge.final_errors", res.FinalErrorCount),
		attribute.Int("converge.iterations", res.Iterations),
		attribute.Bool("converge.rolled_back", res.RolledBack),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func recordRunMetrics(ctx context.Context, res *Result, duration time.Duration, failed bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("final_state", res.FinalState.String()),
		attribute.Bool("failed", failed),
		attribute.Bool("dry_run", res.DryRun),
	)
	runTotal.Add(ctx, 1, attrs)
	runDuration.Record(ctx, duration.Seconds(), attrs)
	iterationCount.Record(ctx, int64(res.Iterations), attrs)
}

func recordFixMetric(ctx context.Context, a learning.Attempt) {
	if err := initMetrics(); err != nil {
		return
	}
	fixTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", a.Category.String()),
		attribute.String("strategy", a.StrategyID),
		attribute.String("outcome", string(a.Outcome)),
	))
}
