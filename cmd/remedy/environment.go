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
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/AleutianAI/remedy/cmd/remedy/config"
	"github.com/AleutianAI/remedy/pkg/logging"
	"github.com/AleutianAI/remedy/pkg/ux"
)

// environment is the resolved setup shared by commands.
type environment struct {
	root       string
	stateDir   string
	cfg        config.Config
	configPath string
	logger     *logging.Logger
	out        *ux.Printer
	progress   *ux.Printer
}

// setup resolves the root, loads configuration and installs the process
// logger. Callers must call close.
func (c *cli) setup() (*environment, error) {
	root, err := filepath.Abs(c.opts.root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	cfg, path, err := config.Load(root, c.opts.configPath)
	if err != nil {
		return nil, err
	}

	stateDir := cfg.ResolveStateDir(root)
	if c.opts.stateDir != "" {
		if stateDir, err = filepath.Abs(c.opts.stateDir); err != nil {
			return nil, fmt.Errorf("resolving state dir: %w", err)
		}
	}

	level := cfg.Logging.Level
	if c.opts.logLevel != "" {
		if level, err = logging.ParseLevel(c.opts.logLevel); err != nil {
			return nil, err
		}
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.LogDir(stateDir),
		Service: "remedy",
		JSON:    cfg.Logging.JSON,
		Writer:  c.stderr,
	})
	slog.SetDefault(logger.Slog())
	if path != "" {
		slog.Debug("loaded config", "path", path)
	}

	return &environment{
		root:       root,
		stateDir:   stateDir,
		cfg:        cfg,
		configPath: path,
		logger:     logger,
		out:        ux.NewPrinter(c.stdout, c.personality(c.stdout)),
		progress:   ux.NewPrinter(c.stderr, c.personality(c.stderr)),
	}, nil
}

// personality picks the output style for w. JSON mode and anything that
// is not a terminal file get machine output.
func (c *cli) personality(w io.Writer) ux.PersonalityLevel {
	if c.opts.jsonOut {
		return ux.PersonalityMachine
	}
	f, ok := w.(*os.File)
	if !ok {
		return ux.PersonalityMachine
	}
	return ux.DetectPersonality(f)
}

func (e *environment) close() {
	if err := e.logger.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "closing log file: %v\n", err)
	}
}
