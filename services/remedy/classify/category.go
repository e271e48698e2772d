// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

import (
	"fmt"
	"strings"
)

// Category is the closed set of error kinds the engine knows how to reason
// about. Every switch over Category must be exhaustive.
type Category int

const (
	Unclassified Category = iota
	SyntaxError
	ImportResolution
	DuplicateDeclaration
	MissingSymbol
	MissingMember
	TypeMismatch
	UnusedDeclaration
)

// Categories lists every category except Unclassified, highest severity first.
var Categories = []Category{
	SyntaxError,
	ImportResolution,
	DuplicateDeclaration,
	MissingSymbol,
	MissingMember,
	TypeMismatch,
	UnusedDeclaration,
}

// String returns the snake_case name used in configuration and learning keys.
func (c Category) String() string {
	switch c {
	case Unclassified:
		return "unclassified"
	case SyntaxError:
		return "syntax_error"
	case ImportResolution:
		return "import_resolution"
	case DuplicateDeclaration:
		return "duplicate_declaration"
	case MissingSymbol:
		return "missing_symbol"
	case MissingMember:
		return "missing_member"
	case TypeMismatch:
		return "type_mismatch"
	case UnusedDeclaration:
		return "unused_declaration"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Severity returns the fixed rank used to order fixing. Higher ranks are
// fixed first: syntax errors can mask everything else in the file.
func (c Category) Severity() int {
	switch c {
	case SyntaxError:
		return 100
	case ImportResolution:
		return 80
	case DuplicateDeclaration:
		return 70
	case MissingSymbol:
		return 60
	case MissingMember:
		return 50
	case TypeMismatch:
		return 40
	case UnusedDeclaration:
		return 20
	case Unclassified:
		return 0
	default:
		return 0
	}
}

// ParseCategory parses the String form of a category.
func ParseCategory(s string) (Category, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == Unclassified.String() {
		return Unclassified, nil
	}
	for _, c := range Categories {
		if c.String() == name {
			return c, nil
		}
	}
	return Unclassified, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so YAML and JSON rules
// can name categories directly.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
