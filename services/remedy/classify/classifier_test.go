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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/remedy/services/remedy/diagnostic"
)

func TestDefaultClassifier(t *testing.T) {
	c := NewDefaultClassifier()

	tests := []struct {
		name    string
		code    string
		message string
		want    Category
	}{
		{"ts semicolon", "TS1005", "';' expected.", SyntaxError},
		{"ts cannot find name", "TS2304", "Cannot find name 'foo'.", MissingSymbol},
		{"ts did you mean name", "TS2552", "Cannot find name 'lenght'. Did you mean 'length'?", MissingSymbol},
		{"ts property", "TS2339", "Property 'x' does not exist on type 'Y'.", MissingMember},
		{"ts assignability", "TS2322", "Type '\"complete\"' is not assignable to type 'Status'.", TypeMismatch},
		{"ts nullability is not syntax", "TS18048", "'x' is possibly 'undefined'.", TypeMismatch},
		{"ts module", "TS2307", "Cannot find module './foo' or its corresponding type declarations.", ImportResolution},
		{"ts duplicate", "TS2300", "Duplicate identifier 'A'.", DuplicateDeclaration},
		{"ts unused", "TS6133", "'x' is declared but its value is never read.", UnusedDeclaration},
		{"go undefined", "", "undefined: foo", MissingSymbol},
		{"go unused import", "", "\"fmt\" imported and not used", UnusedDeclaration},
		{"go unused var", "", "declared and not used: x", UnusedDeclaration},
		{"go member", "", "s.Nmae undefined (type S has no field or method Nmae, but does have field Name)", MissingMember},
		{"go redeclared", "", "x redeclared in this block", DuplicateDeclaration},
		{"go syntax", "", "syntax error: unexpected newline, expected comma or }", SyntaxError},
		{"ruff unused import", "F401", "`os` imported but unused", UnusedDeclaration},
		{"ruff undefined", "F821", "Undefined name `bar`", MissingSymbol},
		{"mypy attr", "attr-defined", "\"Foo\" has no attribute \"baz\"", MissingMember},
		{"eslint parsing", "", "Parsing error: Unexpected token", SyntaxError},
		{"nothing matches", "X999", "the moon is in the wrong phase", Unclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := diagnostic.Record{File: "f", Line: 1, Code: tt.code, Message: tt.message}
			assert.Equal(t, tt.want, c.Classify(rec))
		})
	}
}

func TestClassifierFirstMatchWins(t *testing.T) {
	rules := []Rule{
		{Name: "broad", Category: TypeMismatch, Codes: []string{"TS2"}},
		{Name: "narrow", Category: MissingSymbol, Codes: []string{"TS2304"}},
	}
	c, err := NewClassifier(rules)
	require.NoError(t, err)

	category, rule := c.Match(diagnostic.Record{Code: "TS2304"})
	assert.Equal(t, TypeMismatch, category)
	assert.Equal(t, "broad", rule)
}

func TestClassifierCodeAndPatternBothRequired(t *testing.T) {
	c, err := NewClassifier([]Rule{
		{Name: "both", Category: MissingMember, Codes: []string{"TS2551"}, Pattern: `Did you mean`},
	})
	require.NoError(t, err)

	assert.Equal(t, MissingMember, c.Classify(diagnostic.Record{Code: "TS2551", Message: "Property 'a' does not exist. Did you mean 'b'?"}))
	assert.Equal(t, Unclassified, c.Classify(diagnostic.Record{Code: "TS2551", Message: "Property 'a' does not exist."}))
	assert.Equal(t, Unclassified, c.Classify(diagnostic.Record{Code: "TS2339", Message: "Did you mean 'b'?"}))
}

func TestClassifierDeterministic(t *testing.T) {
	c := NewDefaultClassifier()
	rec := diagnostic.Record{File: "a.ts", Line: 3, Code: "TS2322", Message: "Type 'number' is not assignable to type 'string'."}

	first := c.Classify(rec)
	for i := 0; i < 100; i++ {
		moved := rec
		moved.Line = i + 1
		moved.File = "other.ts"
		require.Equal(t, first, c.Classify(moved), "classification must depend only on code and message")
	}
}

func TestNewClassifierInvalidRules(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{"no conditions", Rule{Name: "empty", Category: SyntaxError}},
		{"no category", Rule{Name: "cat", Codes: []string{"X1"}}},
		{"bad pattern", Rule{Name: "re", Category: SyntaxError, Pattern: "("}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClassifier([]Rule{tt.rule})
			assert.True(t, errors.Is(err, ErrInvalidRule), "got %v", err)
		})
	}
}

func TestWithOverrides(t *testing.T) {
	custom := []Rule{{Name: "custom", Category: SyntaxError, Codes: []string{"TS2304"}}}

	merged := WithOverrides(custom, false)
	require.Len(t, merged, len(DefaultRules())+1)
	assert.Equal(t, "custom", merged[0].Name)

	c, err := NewClassifier(merged)
	require.NoError(t, err)
	assert.Equal(t, SyntaxError, c.Classify(diagnostic.Record{Code: "TS2304"}))

	replaced := WithOverrides(custom, true)
	assert.Len(t, replaced, 1)
}

func TestMatchesCode(t *testing.T) {
	tests := []struct {
		code, pattern string
		want          bool
	}{
		{"ts2304", "ts2304", true},
		{"ts2304", "ts23", true},
		{"ts2304", "ts", true},
		{"tsx", "ts", false},
		{"typescript/no-unused-vars", "typescript", true},
		{"", "ts", false},
		{"f401", "f4", true},
		{"f401", "f40", true},
		{"name-defined", "name", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesCode(tt.code, tt.pattern), "matchesCode(%q, %q)", tt.code, tt.pattern)
	}
}
