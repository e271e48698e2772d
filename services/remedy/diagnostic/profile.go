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
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout is used when neither the caller nor the profile set one.
const DefaultTimeout = 5 * time.Minute

// RootPlaceholder in a profile command is replaced with the project root.
const RootPlaceholder = "{root}"

// =============================================================================
// TOOL PROFILE
// =============================================================================

// ToolProfile describes how to run one diagnostic tool and read its output.
//
// Description:
//
//	A profile pairs a command line with a line-oriented regular expression.
//	Profiles are plain data so new checkers can be added from configuration
//	without code changes. Call Compile (or register the profile) before
//	passing it to Parse.
//
// Thread Safety: Treat as immutable after Compile.
type ToolProfile struct {
	// Name identifies the profile (e.g. "tsc").
	Name string `yaml:"name" json:"name" validate:"required"`

	// Command is the argv template. RootPlaceholder is substituted.
	Command []string `yaml:"command" json:"command" validate:"required,min=1"`

	// Pattern is the per-line regular expression with named groups.
	Pattern string `yaml:"pattern" json:"pattern" validate:"required"`

	// Extensions lists the source file extensions the tool checks.
	// Used to discover the file set to back up.
	Extensions []string `yaml:"extensions" json:"extensions"`

	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// Continuation appends indented lines following a record to its message.
	Continuation bool `yaml:"continuation" json:"continuation"`

	// ErrorsOnly drops records whose severity is not error.
	ErrorsOnly bool `yaml:"errors_only" json:"errors_only"`

	// ColumnUnit is what the tool's column numbers count. Empty means runes.
	ColumnUnit ColumnUnit `yaml:"column_unit" json:"column_unit,omitempty" validate:"omitempty,oneof=rune utf16 byte"`

	re *regexp.Regexp
}

// Compile validates the profile and compiles its pattern.
//
// Description:
//
//	Checks that the profile has a name and command, that the pattern
//	compiles, and that the file, line and message groups are present.
//
// Outputs:
//
//	error - Wraps ErrInvalidProfile on any problem.
func (p *ToolProfile) Compile() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if len(p.Command) == 0 || p.Command[0] == "" {
		return fmt.Errorf("%w: %s: command is required", ErrInvalidProfile, p.Name)
	}
	if !p.ColumnUnit.Valid() {
		return fmt.Errorf("%w: %s: unknown column unit %q", ErrInvalidProfile, p.Name, p.ColumnUnit)
	}
	re, err := regexp.Compile(p.Pattern)
	if err != nil {
		return fmt.Errorf("%w: %s: pattern: %v", ErrInvalidProfile, p.Name, err)
	}
	for _, group := range []string{"file", "line", "message"} {
		if re.SubexpIndex(group) < 0 {
			return fmt.Errorf("%w: %s: pattern is missing the %q group", ErrInvalidProfile, p.Name, group)
		}
	}
	p.re = re
	return nil
}

// Argv returns the command with RootPlaceholder replaced by root.
func (p *ToolProfile) Argv(root string) []string {
	argv := make([]string, len(p.Command))
	for i, arg := range p.Command {
		argv[i] = strings.ReplaceAll(arg, RootPlaceholder, root)
	}
	return argv
}

// EffectiveTimeout returns the profile timeout or DefaultTimeout.
func (p *ToolProfile) EffectiveTimeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultTimeout
}

// Clone returns a deep copy of the profile, including the compiled pattern.
func (p *ToolProfile) Clone() *ToolProfile {
	clone := *p
	clone.Command = append([]string(nil), p.Command...)
	clone.Extensions = append([]string(nil), p.Extensions...)
	return &clone
}

// =============================================================================
// BUILT-IN PROFILES
// =============================================================================

// TSCProfile reads `tsc --pretty false` output:
//
//	src/app.ts(12,5): error TS2304: Cannot find name 'foo'.
var TSCProfile = ToolProfile{
	Name:         "tsc",
	Command:      []string{"npx", "tsc", "--noEmit", "--pretty", "false"},
	Pattern:      `^(?P<file>[^\s(][^(]*)\((?P<line>\d+),(?P<column>\d+)\): (?P<severity>error|warning|message) (?P<code>TS\d+): (?P<message>.*)$`,
	Extensions:   []string{".ts", ".tsx", ".mts", ".cts"},
	Continuation: true,
	ErrorsOnly:   true,
	ColumnUnit:   ColumnUTF16,
}

// ESLintProfile reads the eslint unix formatter.
var ESLintProfile = ToolProfile{
	Name:       "eslint",
	Command:    []string{"npx", "eslint", "--format", "unix", "."},
	Pattern:    `^(?P<file>[^:\s][^:]*):(?P<line>\d+):(?P<column>\d+): (?P<message>.+?) \[(?P<severity>Error|Warning)(?:/(?P<code>[^\]]+))?\]$`,
	Extensions: []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"},
	ErrorsOnly: true,
	ColumnUnit: ColumnUTF16,
}

// GoVetProfile reads `go vet` output. Package header lines ("# pkg") are
// skipped.
var GoVetProfile = ToolProfile{
	Name:       "go-vet",
	Command:    []string{"go", "vet", "./..."},
	Pattern:    `^(?:vet: )?(?P<file>[^\s:#][^:]*\.go):(?P<line>\d+)(?::(?P<column>\d+))?: (?P<message>.+)$`,
	Extensions: []string{".go"},
	ColumnUnit: ColumnByte,
}

// GoBuildProfile reads `go build` compiler output.
var GoBuildProfile = ToolProfile{
	Name:       "go-build",
	Command:    []string{"go", "build", "./..."},
	Pattern:    `^(?P<file>[^\s:#][^:]*\.go):(?P<line>\d+)(?::(?P<column>\d+))?: (?P<message>.+)$`,
	Extensions: []string{".go"},
	ColumnUnit: ColumnByte,
}

// RuffProfile reads `ruff check --output-format concise`.
var RuffProfile = ToolProfile{
	Name:       "ruff",
	Command:    []string{"ruff", "check", "--output-format", "concise", "--no-fix", "."},
	Pattern:    `^(?P<file>[^:\s][^:]*):(?P<line>\d+):(?P<column>\d+): (?P<code>[A-Z]+[0-9]+) (?:\[\*\] )?(?P<message>.+)$`,
	Extensions: []string{".py", ".pyi"},
}

// MypyProfile reads mypy output with column numbers. Notes are dropped.
var MypyProfile = ToolProfile{
	Name:       "mypy",
	Command:    []string{"mypy", "--show-column-numbers", "--no-error-summary", "--no-color-output", "."},
	Pattern:    `^(?P<file>[^:\s][^:]*):(?P<line>\d+):(?:(?P<column>\d+):)? (?P<severity>error|warning|note): (?P<message>.+?)(?:  \[(?P<code>[a-z][a-z-]*)\])?$`,
	Extensions: []string{".py", ".pyi"},
	ErrorsOnly: true,
}

// =============================================================================
// PROFILE REGISTRY
// =============================================================================

// ProfileRegistry holds the known tool profiles by name.
//
// Thread Safety: Safe for concurrent use.
type ProfileRegistry struct {
	mu       sync.RWMutex
	profiles map[string]*ToolProfile
}

// NewProfileRegistry creates a registry populated with the built-in profiles.
func NewProfileRegistry() *ProfileRegistry {
	r := &ProfileRegistry{
		profiles: make(map[string]*ToolProfile),
	}
	for _, p := range []ToolProfile{TSCProfile, ESLintProfile, GoVetProfile, GoBuildProfile, RuffProfile, MypyProfile} {
		p := p
		if err := r.Register(&p); err != nil {
			// Built-in patterns are constants; failure here is a programming error.
			panic(err)
		}
	}
	return r
}

// Register validates and adds or replaces a profile.
//
// Inputs:
//
//	profile - The profile. A compiled clone is stored.
//
// Outputs:
//
//	error - Wraps ErrInvalidProfile if validation fails.
//
// Thread Safety: Safe for concurrent use.
func (r *ProfileRegistry) Register(profile *ToolProfile) error {
	clone := profile.Clone()
	if err := clone.Compile(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[clone.Name] = clone
	return nil
}

// Get returns a clone of the named profile, or nil if unknown.
//
// Thread Safety: Safe for concurrent use.
func (r *ProfileRegistry) Get(name string) *ToolProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[name]
	if !ok {
		return nil
	}
	return p.Clone()
}

// Lookup is like Get but returns ErrUnknownProfile for unknown names.
func (r *ProfileRegistry) Lookup(name string) (*ToolProfile, error) {
	p := r.Get(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownProfile, name, strings.Join(r.Names(), ", "))
	}
	return p, nil
}

// Names returns the registered profile names, sorted.
//
// Thread Safety: Safe for concurrent use.
func (r *ProfileRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
