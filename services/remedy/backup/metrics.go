// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backup

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("remedy.backup")
	meter  = otel.Meter("remedy.backup")
)

var (
	snapshotLatency metric.Float64Histogram
	snapshotFiles   metric.Int64Counter
	restoreTotal    metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		snapshotLatency, err = meter.Float64Histogram(
			"backup_snapshot_duration_seconds",
			metric.WithDescription("Duration of backup snapshots"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		snapshotFiles, err = meter.Int64Counter(
			"backup_files_total",
			metric.WithDescription("Total number of files captured by snapshots"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		restoreTotal, err = meter.Int64Counter(
			"backup_restores_total",
			metric.WithDescription("Total number of restores by result"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordSnapshotMetrics(ctx context.Context, duration time.Duration, files int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	snapshotLatency.Record(ctx, duration.Seconds(), attrs)
	snapshotFiles.Add(ctx, int64(files), attrs)
}

func recordRestoreMetrics(ctx context.Context, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	restoreTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}
