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
	"regexp"
	"sort"
	"strings"

	"github.com/AleutianAI/remedy/services/remedy/classify"
	"github.com/AleutianAI/remedy/services/remedy/diagnostic"
)

// DefaultStrategies returns the built-in strategies in registration order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		InsertPunctuation("insert-missing-semicolon", ";", semicolonExpected),
		InsertPunctuation("insert-missing-comma", ",", commaExpected),
		{
			ID:          "apply-member-suggestion",
			Category:    classify.MissingMember,
			Description: "Rename a misspelled member to the tool's suggestion",
			Apply:       applyMemberSuggestion,
		},
		{
			ID:          "apply-symbol-suggestion",
			Category:    classify.MissingSymbol,
			Description: "Rename a misspelled identifier to the tool's suggestion",
			Apply:       applySymbolSuggestion,
		},
		{
			ID:          "align-string-literal",
			Category:    classify.TypeMismatch,
			Description: "Replace a string literal with the closest literal the type allows",
			Apply:       alignStringLiteral,
		},
		{
			ID:          "remove-duplicate-import",
			Category:    classify.DuplicateDeclaration,
			Description: "Delete an import line that repeats an earlier one",
			Apply:       removeDuplicateImport,
		},
		{
			ID:          "apply-import-suggestion",
			Category:    classify.ImportResolution,
			Description: "Replace an unresolved module specifier with the tool's suggestion",
			Apply:       applyImportSuggestion,
		},
		{
			ID:          "remove-unused-import",
			Category:    classify.UnusedDeclaration,
			Description: "Delete a single-name import that is never used",
			Apply:       removeUnusedImport,
		},
	}
}

// =============================================================================
// SYNTAX: MISSING PUNCTUATION
// =============================================================================

var (
	semicolonExpected = regexp.MustCompile(`';' expected|expected ';'|[Mm]issing semicolon`)
	commaExpected     = regexp.MustCompile(`',' expected|expected ','|[Mm]issing comma`)
)

// InsertPunctuation builds a SyntaxError strategy that inserts punct where
// the tool says it is expected.
//
// The mark goes right after the last non-blank character before the
// reported column. A column at the start of the line means the mark
// belongs on the previous line, which is out of scope, so it declines.
func InsertPunctuation(id, punct string, when *regexp.Regexp) Strategy {
	return Strategy{
		ID:          id,
		Category:    classify.SyntaxError,
		Description: "Insert a missing '" + punct + "' at the reported column",
		Apply: func(rec diagnostic.Record, content []byte) PatchResult {
			if !when.MatchString(rec.Message) {
				return notApplicable("message does not ask for %q", punct)
			}
			text, _, ok := lineAt(content, rec.Line)
			if !ok {
				return declined("line %d not in file", rec.Line)
			}
			col, ok := recordOffset(rec, text)
			if !ok {
				return declined("column %d outside line", rec.Column)
			}
			if col < 0 {
				col = len(strings.TrimRight(text, " \t"))
			}
			pos := len(strings.TrimRight(text[:col], " \t"))
			if pos == 0 {
				return declined("no token before column %d on this line", rec.Column)
			}
			if strings.HasSuffix(text[:pos], punct) {
				return declined("%q already present", punct)
			}
			return patched(content, rec, text[:pos]+punct+text[pos:])
		},
	}
}

// =============================================================================
// SUGGESTION-DRIVEN RENAMES
// =============================================================================

var (
	// didYouMean captures the quoted suggestion tsc appends to many messages.
	didYouMean = regexp.MustCompile(`Did you mean (?:the (?:instance|static) member )?'([\w.$]+)'\?`)

	tsProperty   = regexp.MustCompile(`Property '([\w$]+)' does not exist on type`)
	tsMissing    = regexp.MustCompile(`Cannot find name '([\w$]+)'`)
	goMember     = regexp.MustCompile(`\.(\w+) undefined \(type .+ has no field or method \w+, but does have (?:field|method) (\w+)\)`)
	mypyMaybe    = regexp.MustCompile(`has no attribute "(\w+)"; maybe "(\w+)"\?`)
	pyUndefined  = regexp.MustCompile(`[Nn]ame "(\w+)" is not defined`)
	quotedString = regexp.MustCompile(`'([^'\n]*)'|"([^"\n]*)"`)
)

// suggestion extracts the wrong name and its replacement from a message.
func suggestion(message string, subject *regexp.Regexp) (wrong, right string, ok bool) {
	s := didYouMean.FindStringSubmatch(message)
	m := subject.FindStringSubmatch(message)
	if s == nil || m == nil {
		return "", "", false
	}
	return m[1], s[1], true
}

// renameAt rewrites the occurrence of wrong the record points at.
func renameAt(rec diagnostic.Record, content []byte, wrong, right string) PatchResult {
	if wrong == right {
		return declined("suggestion equals the current name")
	}
	text, _, ok := lineAt(content, rec.Line)
	if !ok {
		return declined("line %d not in file", rec.Line)
	}
	at, ok := recordOffset(rec, text)
	if !ok {
		return declined("column %d outside line %d", rec.Column, rec.Line)
	}
	pos, ok := pickOccurrence(wordOccurrences(text, wrong), len(wrong), at)
	if !ok {
		return declined("cannot locate %q on line %d", wrong, rec.Line)
	}
	return patched(content, rec, text[:pos]+right+text[pos+len(wrong):])
}

func applyMemberSuggestion(rec diagnostic.Record, content []byte) PatchResult {
	if wrong, right, ok := suggestion(rec.Message, tsProperty); ok {
		return renameAt(rec, content, wrong, right)
	}
	if m := goMember.FindStringSubmatch(rec.Message); m != nil {
		return renameAt(rec, content, m[1], m[2])
	}
	if m := mypyMaybe.FindStringSubmatch(rec.Message); m != nil {
		return renameAt(rec, content, m[1], m[2])
	}
	return notApplicable("no member suggestion in message")
}

func applySymbolSuggestion(rec diagnostic.Record, content []byte) PatchResult {
	if wrong, right, ok := suggestion(rec.Message, tsMissing); ok {
		return renameAt(rec, content, wrong, right)
	}
	if wrong, right, ok := suggestion(rec.Message, pyUndefined); ok {
		return renameAt(rec, content, wrong, right)
	}
	return notApplicable("no symbol suggestion in message")
}

// =============================================================================
// TYPE MISMATCH: STRING LITERAL UNIONS
// =============================================================================

var literalMismatch = regexp.MustCompile(`type '"([^"]*)"' is not assignable to (?:type|parameter of type) '("[^']*")'`)

var literalInUnion = regexp.MustCompile(`"([^"]*)"`)

// literalAliases maps common status words to their canonical forms. An
// alias applies only when its target is one of the allowed literals.
var literalAliases = map[string]string{
	"complete": "completed",
	"done":     "completed",
	"success":  "completed",
	"finished": "completed",
	"error":    "failed",
	"failure":  "failed",
	"fail":     "failed",
	"cancel":   "cancelled",
	"canceled": "cancelled",
	"running":  "in_progress",
	"active":   "in_progress",
}

// maxLiteralDistance bounds how far a literal may be from its replacement.
const maxLiteralDistance = 3

// closestLiteral picks the allowed literal nearest to wrong, or false when
// there is no unique close candidate.
func closestLiteral(wrong string, allowed []string) (string, bool) {
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}
	if target, ok := literalAliases[strings.ToLower(wrong)]; ok && set[target] {
		return target, true
	}

	type candidate struct {
		value string
		dist  int
	}
	var cands []candidate
	for _, a := range allowed {
		d := levenshtein(strings.ToLower(wrong), strings.ToLower(a))
		if d <= maxLiteralDistance {
			cands = append(cands, candidate{a, d})
		}
	}
	if len(cands) == 0 {
		return "", false
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	if len(cands) > 1 && cands[0].dist == cands[1].dist {
		return "", false
	}
	return cands[0].value, true
}

func alignStringLiteral(rec diagnostic.Record, content []byte) PatchResult {
	m := literalMismatch.FindStringSubmatch(rec.Message)
	if m == nil {
		return notApplicable("not a string literal mismatch")
	}
	wrong := m[1]
	var allowed []string
	for _, lit := range literalInUnion.FindAllStringSubmatch(m[2], -1) {
		allowed = append(allowed, lit[1])
	}
	right, ok := closestLiteral(wrong, allowed)
	if !ok {
		return declined("no unique allowed literal close to %q", wrong)
	}

	text, _, ok := lineAt(content, rec.Line)
	if !ok {
		return declined("line %d not in file", rec.Line)
	}

	var positions []int
	for _, loc := range quotedString.FindAllStringSubmatchIndex(text, -1) {
		for g := 2; g <= 4; g += 2 {
			if loc[g] >= 0 && text[loc[g]:loc[g+1]] == wrong {
				positions = append(positions, loc[g])
			}
		}
	}
	at, ok := recordOffset(rec, text)
	if !ok {
		return declined("column %d outside line %d", rec.Column, rec.Line)
	}
	pos, ok := pickOccurrence(positions, len(wrong), at)
	if !ok {
		return declined("cannot locate literal %q on line %d", wrong, rec.Line)
	}
	return patched(content, rec, text[:pos]+right+text[pos+len(wrong):])
}

// =============================================================================
// IMPORTS
// =============================================================================

var (
	tsImportLine   = regexp.MustCompile(`^import\s.*['"][^'"]+['"];?$|^import\s+['"][^'"]+['"];?$`)
	goImportLine   = regexp.MustCompile(`^(?:import\s+)?(?:[\w.]+\s+)?"[^"]+"$`)
	pyImportLine   = regexp.MustCompile(`^(?:from\s+[\w.]+\s+)?import\s+[\w.]+(?:\s+as\s+\w+)?$`)
	moduleNotFound = regexp.MustCompile(`[Cc]annot find module '([^']+)'`)

	// specifierSuggestion allows path characters the identifier form excludes.
	specifierSuggestion = regexp.MustCompile(`Did you mean '([^']+)'\?`)

	tsSingleImport = regexp.MustCompile(`^import\s+(?:type\s+)?(?:\{\s*(?:type\s+)?([\w$]+)(?:\s+as\s+([\w$]+))?\s*,?\s*\}|\*\s+as\s+([\w$]+)|([\w$]+))\s+from\s+['"][^'"]+['"];?$`)
	tsUnusedName   = regexp.MustCompile(`'([\w$]+)' is declared but its value is never read|All imports in import declaration are unused`)
	goUnusedImport = regexp.MustCompile(`"([^"]+)" imported (?:as (\w+) )?and not used`)
	pyUnusedImport = regexp.MustCompile("`([\\w.]+)` imported but unused")
)

// isImportLine reports whether a trimmed line is a single import statement
// in one of the supported languages.
func isImportLine(trimmed string) bool {
	return tsImportLine.MatchString(trimmed) || goImportLine.MatchString(trimmed) || pyImportLine.MatchString(trimmed)
}

func removeDuplicateImport(rec diagnostic.Record, content []byte) PatchResult {
	text, _, ok := lineAt(content, rec.Line)
	if !ok {
		return declined("line %d not in file", rec.Line)
	}
	trimmed := strings.TrimSpace(text)
	if !isImportLine(trimmed) {
		return notApplicable("line %d is not an import", rec.Line)
	}
	for i := 1; i < rec.Line; i++ {
		earlier, _, _ := lineAt(content, i)
		if strings.TrimSpace(earlier) == trimmed {
			return patched(content, rec)
		}
	}
	return declined("no earlier identical import")
}

func applyImportSuggestion(rec diagnostic.Record, content []byte) PatchResult {
	s := specifierSuggestion.FindStringSubmatch(rec.Message)
	if s == nil {
		return notApplicable("no import suggestion in message")
	}
	right := s[1]

	text, _, ok := lineAt(content, rec.Line)
	if !ok {
		return declined("line %d not in file", rec.Line)
	}

	named := ""
	if m := moduleNotFound.FindStringSubmatch(rec.Message); m != nil {
		named = m[1]
	}

	var positions []int
	var wrong string
	for _, loc := range quotedString.FindAllStringSubmatchIndex(text, -1) {
		for g := 2; g <= 4; g += 2 {
			if loc[g] < 0 {
				continue
			}
			spec := text[loc[g]:loc[g+1]]
			if spec == "" || spec == right {
				continue
			}
			if spec == named || strings.HasPrefix(right, spec) {
				if wrong != "" && spec != wrong {
					return declined("ambiguous specifier on line %d", rec.Line)
				}
				wrong = spec
				positions = append(positions, loc[g])
			}
		}
	}
	at, ok := recordOffset(rec, text)
	if !ok {
		return declined("column %d outside line %d", rec.Column, rec.Line)
	}
	pos, ok := pickOccurrence(positions, len(wrong), at)
	if !ok {
		return declined("cannot locate specifier on line %d", rec.Line)
	}
	return patched(content, rec, text[:pos]+right+text[pos+len(wrong):])
}

func removeUnusedImport(rec diagnostic.Record, content []byte) PatchResult {
	text, _, ok := lineAt(content, rec.Line)
	if !ok {
		return declined("line %d not in file", rec.Line)
	}
	trimmed := strings.TrimSpace(text)

	switch {
	case tsUnusedName.MatchString(rec.Message):
		m := tsSingleImport.FindStringSubmatch(trimmed)
		if m == nil {
			return declined("line %d is not a single-name import", rec.Line)
		}
		if name := tsUnusedName.FindStringSubmatch(rec.Message)[1]; name != "" {
			bound := firstNonEmpty(m[2], m[1], m[3], m[4])
			if bound != name {
				return declined("import binds %q, not %q", bound, name)
			}
		}
		return patched(content, rec)

	case goUnusedImport.MatchString(rec.Message):
		m := goUnusedImport.FindStringSubmatch(rec.Message)
		if !goImportLine.MatchString(trimmed) || !strings.Contains(trimmed, `"`+m[1]+`"`) {
			return declined("line %d is not the import of %q", rec.Line, m[1])
		}
		return patched(content, rec)

	case pyUnusedImport.MatchString(rec.Message):
		m := pyUnusedImport.FindStringSubmatch(rec.Message)
		if !pyImportLine.MatchString(trimmed) {
			return declined("line %d is not a single-name import", rec.Line)
		}
		name := m[1]
		if i := strings.LastIndex(name, "."); i >= 0 && strings.HasPrefix(trimmed, "from ") {
			name = name[i+1:]
		}
		if len(wordOccurrences(trimmed, name)) == 0 && !strings.Contains(trimmed, m[1]) {
			return declined("line %d does not import %q", rec.Line, m[1])
		}
		return patched(content, rec)
	}
	return notApplicable("message is not an unused import")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
