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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/remedy/pkg/ux"
	"github.com/AleutianAI/remedy/services/remedy/backup"
	"github.com/AleutianAI/remedy/services/remedy/converge"
	"github.com/AleutianAI/remedy/services/remedy/diagnostic"
	"github.com/AleutianAI/remedy/services/remedy/fix"
	"github.com/AleutianAI/remedy/services/remedy/learning"
	"github.com/AleutianAI/remedy/services/remedy/lock"
	"github.com/AleutianAI/remedy/services/remedy/patch"
	"github.com/AleutianAI/remedy/services/remedy/telemetry"
)

type runOptions struct {
	maxIterations  int
	timeoutSeconds int
	toolProfile    string
	dryRun         bool
	files          []string
	metricsAddr    string
}

func (c *cli) newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Diagnose and fix until the checker is clean or progress stops",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runRemedy(cmd, opts)
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&opts.maxIterations, "max-iterations", 5, "Maximum fixing passes")
	flags.IntVar(&opts.timeoutSeconds, "timeout", 0, "Per-run checker timeout in seconds (default: the profile's)")
	flags.StringVar(&opts.toolProfile, "tool-profile", "", "Checker profile (see 'remedy profiles')")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Compute fixes without writing files")
	flags.StringSliceVar(&opts.files, "files", nil, "Root-relative files to back up (default: discovered from the profile's extensions)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	return cmd
}

func (c *cli) runRemedy(cmd *cobra.Command, opts *runOptions) error {
	ctx := cmd.Context()
	env, err := c.setup()
	if err != nil {
		return err
	}
	defer env.close()

	cfg := env.cfg
	if cmd.Flags().Changed("max-iterations") {
		cfg.MaxIterations = opts.maxIterations
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout = time.Duration(opts.timeoutSeconds) * time.Second
	}
	if opts.toolProfile != "" {
		cfg.ToolProfile = opts.toolProfile
	}
	if len(opts.files) > 0 {
		cfg.Files = opts.files
	}
	if cfg.MaxIterations < 0 {
		return fmt.Errorf("--max-iterations must not be negative")
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("--timeout must not be negative")
	}

	registry, err := cfg.Registry()
	if err != nil {
		return err
	}
	profile, err := registry.Lookup(cfg.ToolProfile)
	if err != nil {
		return err
	}
	classifier, err := cfg.Classifier()
	if err != nil {
		return err
	}

	stopTelemetry, err := c.startTelemetry(ctx, env, opts.metricsAddr)
	if err != nil {
		return err
	}
	defer stopTelemetry()

	var backups converge.BackupManager
	if !opts.dryRun {
		runLock, err := lock.Acquire(env.stateDir)
		if err != nil {
			return err
		}
		defer func() {
			if err := runLock.Release(); err != nil {
				slog.Warn("releasing run lock", "error", err)
			}
		}()

		git, err := backup.NewGit(env.root, cfg.Backup.GitTimeout)
		if err != nil {
			return err
		}
		if len(cfg.Files) == 0 {
			if cfg.Files, err = backup.DiscoverFiles(ctx, env.root, git, profile.Extensions); err != nil {
				return err
			}
		}
		backups = backup.NewManager(env.root, env.stateDir,
			backup.WithGit(git),
			backup.WithConcurrency(cfg.Backup.Concurrency),
		)
	}

	store, closeStore, err := openLearning(env, !opts.dryRun)
	if err != nil {
		return err
	}
	defer closeStore()

	var spinner *ux.Spinner
	observer := func(converge.Progress) {}
	if env.progress.Level() != ux.PersonalityMachine {
		spinner = env.progress.NewSpinner("starting " + profile.Name)
		spinner.Start()
		defer spinner.Stop()
		observer = func(p converge.Progress) {
			spinner.Update(progressMessage(p))
		}
	}

	controllerOpts := []converge.Option{
		converge.WithLearning(store),
		converge.WithObserver(observer),
	}
	if backups != nil {
		controllerOpts = append(controllerOpts, converge.WithBackups(backups))
	}
	controller := converge.NewController(
		diagnostic.NewRunner(diagnostic.WithWorkingDir(env.root)),
		classifier,
		fix.NewDefaultDispatcher(store, store),
		patch.NewApplier(env.root, patch.WithDryRun(opts.dryRun)),
		controllerOpts...,
	)

	result, runErr := controller.Run(ctx, converge.Config{
		Root:          env.root,
		Profile:       profile,
		MaxIterations: cfg.MaxIterations,
		Timeout:       cfg.Timeout,
		DryRun:        opts.dryRun,
		Files:         cfg.Files,
	})
	if spinner != nil {
		spinner.Stop()
	}
	if result == nil {
		return runErr
	}

	if err := c.emitResult(env, result); err != nil {
		return errors.Join(runErr, err)
	}
	if runErr != nil {
		return &ExitError{Code: exitFailure, Err: runErr}
	}
	if code := result.ExitCode(); code != exitOK {
		return &ExitError{Code: code}
	}
	return nil
}

func progressMessage(p converge.Progress) string {
	if p.Iteration == 0 {
		return fmt.Sprintf("%s (%d errors)", p.State, p.ErrorCount)
	}
	return fmt.Sprintf("%s, iteration %d (%d errors)", p.State, p.Iteration, p.ErrorCount)
}

// startTelemetry installs providers from the config. A metrics address on
// the command line switches the metric exporter to prometheus.
func (c *cli) startTelemetry(ctx context.Context, env *environment, metricsAddr string) (func(), error) {
	tcfg := env.cfg.Telemetry
	tcfg.Output = c.stderr
	if metricsAddr != "" {
		tcfg.MetricsAddr = metricsAddr
		tcfg.MetricExporter = "prometheus"
	}

	shutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return nil, err
	}

	var stopServer func(context.Context) error
	if tcfg.MetricExporter == "prometheus" && tcfg.MetricsAddr != "" {
		if stopServer, err = telemetry.Serve(tcfg.MetricsAddr); err != nil {
			_ = shutdown(context.WithoutCancel(ctx))
			return nil, err
		}
	}

	return func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if stopServer != nil {
			if err := stopServer(stopCtx); err != nil {
				slog.Warn("stopping metrics server", "error", err)
			}
		}
		if err := shutdown(stopCtx); err != nil {
			slog.Warn("flushing telemetry", "error", err)
		}
	}, nil
}

// openLearning loads the learning store. The journal is opened only when
// enabled and the run may write.
func openLearning(env *environment, writable bool) (*learning.Store, func(), error) {
	var opts []learning.Option
	closeFn := func() {}

	if dir := env.cfg.JournalDir(env.stateDir); dir != "" && writable {
		journal, err := learning.OpenBadgerJournal(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening learning journal: %w", err)
		}
		opts = append(opts, learning.WithJournal(journal))
		closeFn = func() {
			if err := journal.Close(); err != nil {
				slog.Warn("closing learning journal", "error", err)
			}
		}
	}

	store := learning.NewStore(env.cfg.LearningPath(env.stateDir), opts...)
	if err := store.Load(); err != nil {
		closeFn()
		return nil, nil, err
	}
	return store, closeFn, nil
}
