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
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnknownCategory indicates a category name that is not in the closed set.
var ErrUnknownCategory = errors.New("unknown category")

// ErrInvalidRule indicates a rule that can never match or does not compile.
var ErrInvalidRule = errors.New("invalid classification rule")

// =============================================================================
// RULE
// =============================================================================

// Rule maps diagnostics to a category.
//
// Description:
//
//	A rule matches when every condition it sets holds: the code matches one
//	of Codes (when Codes is non-empty) and the message matches Pattern (when
//	Pattern is non-empty). A rule must set at least one condition.
//
//	Codes use hierarchical prefix matching: "TS2304" matches exactly,
//	"TS23" matches "TS2304" because a digit follows the prefix, and
//	"typescript" matches "typescript/no-unused-vars".
//
// Thread Safety: Treat as immutable after Compile.
type Rule struct {
	// Name identifies the rule in logs.
	Name string `yaml:"name" json:"name"`

	// Category assigned on match.
	Category Category `yaml:"category" json:"category"`

	// Codes are matched case-insensitively against Record.Code.
	Codes []string `yaml:"codes" json:"codes,omitempty"`

	// Pattern is a regular expression matched against Record.Message.
	Pattern string `yaml:"pattern" json:"pattern,omitempty"`

	re *regexp.Regexp
}

// Compile validates the rule and compiles its pattern.
func (r *Rule) Compile() error {
	if len(r.Codes) == 0 && r.Pattern == "" {
		return fmt.Errorf("%w: %s: needs codes or a pattern", ErrInvalidRule, r.Name)
	}
	if r.Category == Unclassified {
		return fmt.Errorf("%w: %s: category is required", ErrInvalidRule, r.Name)
	}
	if r.Pattern != "" {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidRule, r.Name, err)
		}
		r.re = re
	}
	return nil
}

// Matches reports whether the rule applies to a code and message.
func (r *Rule) Matches(code, message string) bool {
	if len(r.Codes) > 0 {
		code = strings.ToLower(code)
		matched := false
		for _, pattern := range r.Codes {
			if matchesCode(code, strings.ToLower(pattern)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if r.re != nil && !r.re.MatchString(message) {
		return false
	}
	return true
}

// matchesCode checks if a code matches a pattern.
func matchesCode(code, pattern string) bool {
	if code == "" || pattern == "" {
		return false
	}
	if code == pattern {
		return true
	}
	// Hierarchy match (e.g., "typescript/no-unused-vars" matches "typescript")
	if strings.HasPrefix(code, pattern+"/") {
		return true
	}
	// Prefix match for families like TS23 matching TS2304.
	// The pattern must be followed by a digit for this to match.
	if strings.HasPrefix(code, pattern) && len(code) > len(pattern) {
		next := code[len(pattern)]
		if next >= '0' && next <= '9' {
			return true
		}
	}
	return false
}

// =============================================================================
// DEFAULT RULES
// =============================================================================

// DefaultRules is the built-in ordered rule table.
//
// Description:
//
//	Covers TypeScript compiler codes, Go compiler and vet messages, and
//	ruff/mypy codes. Order matters: the first matching rule wins, so
//	narrow message patterns come before broad code families.
func DefaultRules() []Rule {
	return []Rule{
		// TypeScript
		{Name: "ts-nullability", Category: TypeMismatch, Codes: []string{"TS18047", "TS18048", "TS2531", "TS2532"}},
		{Name: "ts-syntax", Category: SyntaxError, Codes: []string{"TS1"}},
		{Name: "ts-module-not-found", Category: ImportResolution, Codes: []string{"TS2307", "TS2792", "TS2834", "TS2835"}},
		{Name: "ts-duplicate", Category: DuplicateDeclaration, Codes: []string{"TS2300", "TS2393", "TS2451"}},
		{Name: "ts-missing-name", Category: MissingSymbol, Codes: []string{"TS2304", "TS2552", "TS2580", "TS2582"}},
		{Name: "ts-missing-property", Category: MissingMember, Codes: []string{"TS2339", "TS2551", "TS2741", "TS2739"}},
		{Name: "ts-assignability", Category: TypeMismatch, Codes: []string{"TS2322", "TS2345", "TS2367", "TS2769"}},
		{Name: "ts-unused", Category: UnusedDeclaration, Codes: []string{"TS6133", "TS6192", "TS6196"}},

		// Go
		{Name: "go-syntax", Category: SyntaxError, Pattern: `^syntax error:|expected '[^']+'|unexpected newline`},
		{Name: "go-import", Category: ImportResolution, Pattern: `^(could not import|cannot find package|package .+ is not in (GOROOT|std))`},
		{Name: "go-unused-import", Category: UnusedDeclaration, Pattern: `imported and not used`},
		{Name: "go-unused-var", Category: UnusedDeclaration, Pattern: `declared and not used`},
		{Name: "go-redeclared", Category: DuplicateDeclaration, Pattern: `redeclared in this block|already declared`},
		{Name: "go-member", Category: MissingMember, Pattern: `has no field or method`},
		{Name: "go-undefined", Category: MissingSymbol, Pattern: `^undefined: `},
		{Name: "go-type", Category: TypeMismatch, Pattern: `^cannot use .+ as .+ value|mismatched types`},

		// Python (ruff, mypy)
		{Name: "py-syntax", Category: SyntaxError, Codes: []string{"E999", "syntax"}},
		{Name: "py-import", Category: ImportResolution, Codes: []string{"import", "import-not-found", "import-untyped"}},
		{Name: "py-unused-import", Category: UnusedDeclaration, Codes: []string{"F401", "F841"}},
		{Name: "py-redefined", Category: DuplicateDeclaration, Codes: []string{"F811", "no-redef"}},
		{Name: "py-undefined", Category: MissingSymbol, Codes: []string{"F821", "name-defined"}},
		{Name: "py-attr", Category: MissingMember, Codes: []string{"attr-defined", "union-attr"}},
		{Name: "py-type", Category: TypeMismatch, Codes: []string{"assignment", "arg-type", "return-value"}},

		// Message fallbacks for tools without codes
		{Name: "msg-semicolon", Category: SyntaxError, Pattern: `'[;,)\]}]' expected|[Mm]issing semicolon|[Uu]nexpected token`},
		{Name: "msg-cannot-find-name", Category: MissingSymbol, Pattern: `[Cc]annot find name '`},
		{Name: "msg-cannot-find-module", Category: ImportResolution, Pattern: `[Cc]annot find module '`},
		{Name: "msg-property", Category: MissingMember, Pattern: `[Pp]roperty '[^']+' does not exist`},
		{Name: "msg-not-assignable", Category: TypeMismatch, Pattern: `is not assignable to`},
		{Name: "msg-unused", Category: UnusedDeclaration, Pattern: `is declared but (its value is )?never (read|used)`},
	}
}
