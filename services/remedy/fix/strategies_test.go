// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fix

import (
	"testing"

	"github.com/AleutianAI/remedy/services/remedy/classify"
	"github.com/AleutianAI/remedy/services/remedy/diagnostic"
)

func strategyByID(t *testing.T, id string) Strategy {
	t.Helper()
	for _, s := range DefaultStrategies() {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("no strategy %q", id)
	return Strategy{}
}

func TestDefaultStrategies(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		content  string
		line     int
		column   int
		message  string
		want     string
		decline  bool
	}{
		{
			name: "semicolon between statements", strategy: "insert-missing-semicolon",
			content: "let a = 1 let b = 2\n", line: 1, column: 11,
			message: "';' expected.",
			want:    "let a = 1; let b = 2\n",
		},
		{
			name: "semicolon at line start declines", strategy: "insert-missing-semicolon",
			content: "let a = 1\nlet b = 2\n", line: 2, column: 1,
			message: "';' expected.",
			decline: true,
		},
		{
			name: "semicolon wrong message declines", strategy: "insert-missing-semicolon",
			content: "foo(a b)\n", line: 1, column: 7,
			message: "',' expected.",
			decline: true,
		},
		{
			name: "comma between arguments", strategy: "insert-missing-comma",
			content: "foo(a b)\nnext()\n", line: 1, column: 7,
			message: "',' expected.",
			want:    "foo(a, b)\nnext()\n",
		},
		{
			name: "member suggestion from tsc", strategy: "apply-member-suggestion",
			content: "const n = s.lenght;\n", line: 1, column: 13,
			message: "Property 'lenght' does not exist on type 'string'. Did you mean 'length'?",
			want:    "const n = s.length;\n",
		},
		{
			name: "member suggestion from go", strategy: "apply-member-suggestion",
			content: "\tfmt.Println(s.Nmae)\n", line: 1, column: 14,
			message: "s.Nmae undefined (type S has no field or method Nmae, but does have field Name)",
			want:    "\tfmt.Println(s.Name)\n",
		},
		{
			name: "member without suggestion declines", strategy: "apply-member-suggestion",
			content: "x.foo()\n", line: 1, column: 3,
			message: "Property 'foo' does not exist on type 'X'.",
			decline: true,
		},
		{
			name: "symbol suggestion", strategy: "apply-symbol-suggestion",
			content: "console.log(cnt);\n", line: 1, column: 13,
			message: "Cannot find name 'cnt'. Did you mean 'count'?",
			want:    "console.log(count);\n",
		},
		{
			name: "symbol instance member suggestion", strategy: "apply-symbol-suggestion",
			content: "    return x;\n", line: 1, column: 12,
			message: "Cannot find name 'x'. Did you mean the instance member 'this.x'?",
			want:    "    return this.x;\n",
		},
		{
			name: "symbol only the pointed occurrence", strategy: "apply-symbol-suggestion",
			content: "f(cnt, g(cnt))\n", line: 1, column: 10,
			message: "Cannot find name 'cnt'. Did you mean 'count'?",
			want:    "f(cnt, g(count))\n",
		},
		{
			name: "symbol without suggestion declines", strategy: "apply-symbol-suggestion",
			content: "foo()\n", line: 1, column: 1,
			message: "Cannot find name 'foo'.",
			decline: true,
		},
		{
			name: "literal alias", strategy: "align-string-literal",
			content: "task.status = \"complete\";\n", line: 1, column: 1,
			message: `Type '"complete"' is not assignable to type '"pending" | "completed" | "failed"'.`,
			want:    "task.status = \"completed\";\n",
		},
		{
			name: "literal alias in argument", strategy: "align-string-literal",
			content: "setStatus('error');\n", line: 1, column: 11,
			message: `Argument of type '"error"' is not assignable to parameter of type '"pending" | "completed" | "failed"'.`,
			want:    "setStatus('failed');\n",
		},
		{
			name: "literal by edit distance", strategy: "align-string-literal",
			content: "mode = \"dark-mod\"\n", line: 1, column: 8,
			message: `Type '"dark-mod"' is not assignable to type '"dark-mode" | "light-mode"'.`,
			want:    "mode = \"dark-mode\"\n",
		},
		{
			name: "literal tie declines", strategy: "align-string-literal",
			content: "x = \"bat\"\n", line: 1, column: 5,
			message: `Type '"bat"' is not assignable to type '"cat" | "hat"'.`,
			decline: true,
		},
		{
			name: "literal too far declines", strategy: "align-string-literal",
			content: "x = \"xyzzy\"\n", line: 1, column: 5,
			message: `Type '"xyzzy"' is not assignable to type '"pending" | "completed"'.`,
			decline: true,
		},
		{
			name: "duplicate ts import", strategy: "remove-duplicate-import",
			content: "import { a } from './a';\nimport { b } from './b';\nimport { a } from './a';\n", line: 3,
			message: "Duplicate identifier 'a'.",
			want:    "import { a } from './a';\nimport { b } from './b';\n",
		},
		{
			name: "duplicate go import", strategy: "remove-duplicate-import",
			content: "import (\n\t\"fmt\"\n\t\"fmt\"\n)\n", line: 3,
			message: "fmt redeclared in this block",
			want:    "import (\n\t\"fmt\"\n)\n",
		},
		{
			name: "first import is not a duplicate", strategy: "remove-duplicate-import",
			content: "import { a } from './a';\nimport { a } from './a';\n", line: 1,
			message: "Duplicate identifier 'a'.",
			decline: true,
		},
		{
			name: "non-import duplicate declines", strategy: "remove-duplicate-import",
			content: "let a = 1;\nlet a = 1;\n", line: 2,
			message: "Cannot redeclare block-scoped variable 'a'.",
			decline: true,
		},
		{
			name: "import extension suggestion", strategy: "apply-import-suggestion",
			content: "import { x } from './util';\n", line: 1, column: 19,
			message: "Relative import paths need explicit file extensions in ECMAScript imports when '--moduleResolution' is 'node16' or 'nodenext'. Did you mean './util.js'?",
			want:    "import { x } from './util.js';\n",
		},
		{
			name: "import without suggestion declines", strategy: "apply-import-suggestion",
			content: "import { x } from './nope';\n", line: 1, column: 19,
			message: "Cannot find module './nope' or its corresponding type declarations.",
			decline: true,
		},
		{
			name: "unused ts import", strategy: "remove-unused-import",
			content: "import { unused } from './lib';\nuse();\n", line: 1, column: 10,
			message: "'unused' is declared but its value is never read.",
			want:    "use();\n",
		},
		{
			name: "unused ts import with alias", strategy: "remove-unused-import",
			content: "import { a as b } from './lib';\n", line: 1, column: 15,
			message: "'b' is declared but its value is never read.",
			want:    "",
		},
		{
			name: "unused ts multi-name import declines", strategy: "remove-unused-import",
			content: "import { a, b } from './lib';\n", line: 1, column: 13,
			message: "'b' is declared but its value is never read.",
			decline: true,
		},
		{
			name: "unused go import", strategy: "remove-unused-import",
			content: "import (\n\t\"os\"\n\t\"fmt\"\n)\n", line: 2, column: 2,
			message: "\"os\" imported and not used",
			want:    "import (\n\t\"fmt\"\n)\n",
		},
		{
			name: "unused python import", strategy: "remove-unused-import",
			content: "import os\nimport sys\n", line: 1, column: 8,
			message: "`os` imported but unused",
			want:    "import sys\n",
		},
		{
			name: "unused python from import", strategy: "remove-unused-import",
			content: "from typing import List\nx = 1\n", line: 1, column: 20,
			message: "`typing.List` imported but unused",
			want:    "x = 1\n",
		},
		{
			name: "unused variable is not an import", strategy: "remove-unused-import",
			content: "const x = compute();\n", line: 1, column: 7,
			message: "'x' is declared but its value is never read.",
			decline: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := strategyByID(t, tt.strategy)
			rec := diagnostic.Record{File: "f", Line: tt.line, Column: tt.column, Message: tt.message}
			result := s.Apply(rec, []byte(tt.content))

			if tt.decline {
				if result.Success {
					t.Fatalf("expected decline, got patch %q", result.NewContent)
				}
				if result.Reason == "" {
					t.Error("decline must carry a reason")
				}
				return
			}
			if !result.Success {
				t.Fatalf("expected patch, got decline: %s", result.Reason)
			}
			if got := string(result.NewContent); got != tt.want {
				t.Errorf("NewContent = %q, want %q", got, tt.want)
			}
			if _, err := checkScope([]byte(tt.content), result.NewContent, tt.line); err != nil {
				t.Errorf("patch escapes flagged line: %v", err)
			}
		})
	}
}

func TestStrategiesCountColumnsInToolUnits(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		content  string
		column   int
		unit     diagnostic.ColumnUnit
		message  string
		want     string
	}{
		{
			name: "semicolon after accented literal", strategy: "insert-missing-semicolon",
			content: "const s = \"éé\" const t = 1\n", column: 16, unit: diagnostic.ColumnRune,
			message: "';' expected.",
			want:    "const s = \"éé\"; const t = 1\n",
		},
		{
			name: "semicolon after astral literal", strategy: "insert-missing-semicolon",
			content: "let a = \"😀\" let b = 2\n", column: 14, unit: diagnostic.ColumnUTF16,
			message: "';' expected.",
			want:    "let a = \"😀\"; let b = 2\n",
		},
		{
			name: "rename picks the reported occurrence", strategy: "apply-symbol-suggestion",
			content: "const s = \"éééééé\" + nmae + nmae;\n", column: 29, unit: diagnostic.ColumnUTF16,
			message: "Cannot find name 'nmae'. Did you mean 'name'?",
			want:    "const s = \"éééééé\" + nmae + name;\n",
		},
		{
			name: "byte columns from the go toolchain", strategy: "apply-member-suggestion",
			content: "\tfmt.Println(\"ü\", u.Nmae, u.Nmae)\n", column: 30, unit: diagnostic.ColumnByte,
			message: "u.Nmae undefined (type User has no field or method Nmae, but does have field Name)",
			want:    "\tfmt.Println(\"ü\", u.Nmae, u.Name)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := strategyByID(t, tt.strategy)
			rec := diagnostic.Record{File: "f", Line: 1, Column: tt.column, ColumnUnit: tt.unit, Message: tt.message}
			result := s.Apply(rec, []byte(tt.content))
			if !result.Success {
				t.Fatalf("expected patch, got decline: %s", result.Reason)
			}
			if got := string(result.NewContent); got != tt.want {
				t.Errorf("NewContent = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStrategiesDeclineColumnInsideCharacter(t *testing.T) {
	s := strategyByID(t, "insert-missing-semicolon")
	rec := diagnostic.Record{
		File: "f", Line: 1, Column: 8, ColumnUnit: diagnostic.ColumnByte,
		Message: "';' expected.",
	}
	result := s.Apply(rec, []byte("x := \"éé\" y\n"))
	if result.Success {
		t.Fatalf("expected decline, got patch %q", result.NewContent)
	}
}

func TestDefaultStrategiesCoverEveryCategory(t *testing.T) {
	covered := make(map[classify.Category]bool)
	for _, s := range DefaultStrategies() {
		covered[s.Category] = true
	}
	for _, c := range classify.Categories {
		if !covered[c] {
			t.Errorf("no built-in strategy for %s", c)
		}
	}
}

func TestClosestLiteral(t *testing.T) {
	tests := []struct {
		wrong   string
		allowed []string
		want    string
		ok      bool
	}{
		{"Success", []string{"completed", "failed"}, "completed", true},
		{"done", []string{"pending", "done2"}, "done2", true},
		{"error", []string{"ok", "bad"}, "", false},
		{"hat", []string{"cat", "bat"}, "", false},
		{"pendin", []string{"pending", "completed"}, "pending", true},
	}
	for _, tt := range tests {
		got, ok := closestLiteral(tt.wrong, tt.allowed)
		if got != tt.want || ok != tt.ok {
			t.Errorf("closestLiteral(%q, %v) = %q, %v; want %q, %v", tt.wrong, tt.allowed, got, ok, tt.want, tt.ok)
		}
	}
}
