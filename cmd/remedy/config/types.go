// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the remedy project configuration.
//
// The file is YAML, read from .remedy.yaml in the project root unless a
// path is given. Every field has a default, so the file is optional;
// command-line flags override what it sets.
package config

import (
	"time"

	"github.com/AleutianAI/remedy/pkg/logging"
	"github.com/AleutianAI/remedy/services/remedy/classify"
	"github.com/AleutianAI/remedy/services/remedy/diagnostic"
	"github.com/AleutianAI/remedy/services/remedy/telemetry"
)

// FileName is the configuration file looked up in the project root.
const FileName = ".remedy.yaml"

// StateDirName is the default state directory under the project root.
const StateDirName = ".remedy"

// Config is the project configuration.
type Config struct {
	// ToolProfile selects the checker by name.
	ToolProfile string `yaml:"tool_profile" validate:"required"`

	// MaxIterations bounds fixing passes.
	MaxIterations int `yaml:"max_iterations" validate:"gte=0"`

	// Timeout per diagnostic run. Zero uses the profile's timeout.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// StateDir holds backups, the learning database and the run lock.
	// Relative paths are resolved against the project root.
	StateDir string `yaml:"state_dir" validate:"required"`

	// Files overrides file discovery for the backup set.
	Files []string `yaml:"files"`

	// Profiles adds or replaces tool profiles by name.
	Profiles []diagnostic.ToolProfile `yaml:"profiles" validate:"dive"`

	Classification ClassificationConfig `yaml:"classification"`
	Learning       LearningConfig       `yaml:"learning"`
	Backup         BackupConfig         `yaml:"backup"`
	Logging        LoggingConfig        `yaml:"logging"`
	Telemetry      telemetry.Config     `yaml:"telemetry"`
}

// ClassificationConfig holds custom classification rules.
type ClassificationConfig struct {
	// Rules are tried before the built-in rules.
	Rules []classify.Rule `yaml:"rules"`

	// ReplaceDefaults drops the built-in rules.
	ReplaceDefaults bool `yaml:"replace_defaults"`
}

// LearningConfig locates the learning database.
type LearningConfig struct {
	// Path of the JSON database. Relative to the state directory.
	Path string `yaml:"path" validate:"required"`

	// Journal enables the badger attempt journal.
	Journal bool `yaml:"journal"`

	// JournalDir is the badger directory. Relative to the state directory.
	JournalDir string `yaml:"journal_dir" validate:"required_if=Journal true"`
}

// BackupConfig tunes snapshots.
type BackupConfig struct {
	// Concurrency bounds parallel file hashing.
	Concurrency int `yaml:"concurrency" validate:"gte=1,lte=256"`

	// GitTimeout bounds each git invocation.
	GitTimeout time.Duration `yaml:"git_timeout" validate:"gte=0"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level logging.Level `yaml:"level"`

	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`

	// Dir adds a JSON log file. Relative to the state directory.
	Dir string `yaml:"dir"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		ToolProfile:   diagnostic.TSCProfile.Name,
		MaxIterations: 5,
		StateDir:      StateDirName,
		Learning: LearningConfig{
			Path:       "learning.json",
			JournalDir: "journal",
		},
		Backup: BackupConfig{
			Concurrency: 8,
			GitTimeout:  30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: logging.LevelInfo,
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}
