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
	"reflect"
	"testing"
	"time"
)

func TestToolProfileCompile(t *testing.T) {
	tests := []struct {
		name    string
		profile ToolProfile
		wantErr bool
	}{
		{
			name: "valid",
			profile: ToolProfile{
				Name: "x", Command: []string{"x"},
				Pattern: `(?P<file>\S+):(?P<line>\d+): (?P<message>.*)`,
			},
		},
		{
			name:    "missing name",
			profile: ToolProfile{Command: []string{"x"}, Pattern: `(?P<file>a)(?P<line>1)(?P<message>m)`},
			wantErr: true,
		},
		{
			name:    "missing command",
			profile: ToolProfile{Name: "x", Pattern: `(?P<file>a)(?P<line>1)(?P<message>m)`},
			wantErr: true,
		},
		{
			name:    "bad regex",
			profile: ToolProfile{Name: "x", Command: []string{"x"}, Pattern: `(`},
			wantErr: true,
		},
		{
			name: "unknown column unit",
			profile: ToolProfile{
				Name: "x", Command: []string{"x"}, ColumnUnit: "cells",
				Pattern: `(?P<file>\S+):(?P<line>\d+): (?P<message>.*)`,
			},
			wantErr: true,
		},
		{
			name:    "missing message group",
			profile: ToolProfile{Name: "x", Command: []string{"x"}, Pattern: `(?P<file>a)(?P<line>1)`},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Compile()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidProfile) {
					t.Errorf("Compile() = %v, want ErrInvalidProfile", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Compile() = %v, want nil", err)
			}
		})
	}
}

func TestToolProfileArgv(t *testing.T) {
	p := ToolProfile{Command: []string{"tsc", "-p", "{root}/tsconfig.json"}}
	got := p.Argv("/work")
	want := []string{"tsc", "-p", "/work/tsconfig.json"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Argv() = %v, want %v", got, want)
	}
	if p.Command[2] != "{root}/tsconfig.json" {
		t.Error("Argv must not modify the template")
	}
}

func TestToolProfileEffectiveTimeout(t *testing.T) {
	if got := (&ToolProfile{}).EffectiveTimeout(); got != DefaultTimeout {
		t.Errorf("EffectiveTimeout() = %v, want %v", got, DefaultTimeout)
	}
	if got := (&ToolProfile{Timeout: time.Second}).EffectiveTimeout(); got != time.Second {
		t.Errorf("EffectiveTimeout() = %v, want 1s", got)
	}
}

func TestProfileRegistry(t *testing.T) {
	r := NewProfileRegistry()

	want := []string{"eslint", "go-build", "go-vet", "mypy", "ruff", "tsc"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	t.Run("get returns a clone", func(t *testing.T) {
		p := r.Get("tsc")
		p.Command[0] = "changed"
		if r.Get("tsc").Command[0] != "npx" {
			t.Error("registry profile was mutated through Get")
		}
	})

	t.Run("unknown profile", func(t *testing.T) {
		if r.Get("nope") != nil {
			t.Error("Get(nope) should be nil")
		}
		if _, err := r.Lookup("nope"); !errors.Is(err, ErrUnknownProfile) {
			t.Errorf("Lookup(nope) = %v, want ErrUnknownProfile", err)
		}
	})

	t.Run("register custom", func(t *testing.T) {
		err := r.Register(&ToolProfile{
			Name:    "pyright",
			Command: []string{"pyright"},
			Pattern: `^\s*(?P<file>[^:]+):(?P<line>\d+):(?P<column>\d+) - error: (?P<message>.+)$`,
		})
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		if r.Get("pyright") == nil {
			t.Error("custom profile not registered")
		}
	})

	t.Run("register invalid", func(t *testing.T) {
		if err := r.Register(&ToolProfile{Name: "bad"}); err == nil {
			t.Error("expected error for invalid profile")
		}
	})
}
