// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/remedy/services/remedy/classify"
	"github.com/AleutianAI/remedy/services/remedy/diagnostic"
)

// ErrInvalidConfig wraps every decoding and validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

// Load reads the configuration for a project.
//
// With an explicit path the file must exist. Otherwise FileName in root is
// used if present and DefaultConfig if not.
func Load(root, path string) (Config, string, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			cfg := DefaultConfig()
			return cfg, "", cfg.Validate()
		}
		return Config{}, "", fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, "", fmt.Errorf("%s: %w", path, err)
	}
	return cfg, path, nil
}

// Parse decodes YAML over DefaultConfig and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct constraints, then compiles custom profiles and
// rules so pattern errors surface at load time.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for i := range c.Profiles {
		p := c.Profiles[i].Clone()
		if err := p.Compile(); err != nil {
			return fmt.Errorf("%w: profiles[%d]: %v", ErrInvalidConfig, i, err)
		}
	}
	if c.Classification.ReplaceDefaults && len(c.Classification.Rules) == 0 {
		return fmt.Errorf("%w: classification.replace_defaults needs at least one rule", ErrInvalidConfig)
	}
	if _, err := classify.NewClassifier(c.Classification.Rules); err != nil {
		return fmt.Errorf("%w: classification: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Registry returns the built-in profiles plus the configured ones.
func (c Config) Registry() (*diagnostic.ProfileRegistry, error) {
	registry := diagnostic.NewProfileRegistry()
	for i := range c.Profiles {
		if err := registry.Register(&c.Profiles[i]); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Classifier builds the classifier from the configured rules.
func (c Config) Classifier() (*classify.Classifier, error) {
	return classify.NewClassifier(classify.WithOverrides(c.Classification.Rules, c.Classification.ReplaceDefaults))
}

// ResolveStateDir returns the absolute state directory for root.
func (c Config) ResolveStateDir(root string) string {
	return resolve(root, c.StateDir)
}

// LearningPath returns the absolute learning database path.
func (c Config) LearningPath(stateDir string) string {
	return resolve(stateDir, c.Learning.Path)
}

// JournalDir returns the absolute journal directory, or "" when the
// journal is disabled.
func (c Config) JournalDir(stateDir string) string {
	if !c.Learning.Journal {
		return ""
	}
	return resolve(stateDir, c.Learning.JournalDir)
}

// LogDir returns the absolute log directory, or "" when file logging is
// off.
func (c Config) LogDir(stateDir string) string {
	if c.Logging.Dir == "" {
		return ""
	}
	return resolve(stateDir, c.Logging.Dir)
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

// Write encodes cfg as YAML to path.
func Write(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
