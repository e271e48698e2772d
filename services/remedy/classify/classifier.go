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

	"github.com/AleutianAI/remedy/services/remedy/diagnostic"
)

// Classifier assigns a Category to each diagnostic record.
//
// Description:
//
//	Evaluates an ordered rule list; the first matching rule wins and a
//	record matching nothing is Unclassified. Classification depends only
//	on the record's code and message, so the same record always gets the
//	same category.
//
// Thread Safety: Safe for concurrent use; rules are fixed at construction.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier over the given rules, in order.
//
// Inputs:
//
//	rules - Ordered rules. Copied and compiled.
//
// Outputs:
//
//	*Classifier - Ready to use.
//	error - Wraps ErrInvalidRule naming the first bad rule.
func NewClassifier(rules []Rule) (*Classifier, error) {
	compiled := make([]Rule, len(rules))
	for i := range rules {
		compiled[i] = rules[i]
		compiled[i].Codes = append([]string(nil), rules[i].Codes...)
		if err := compiled[i].Compile(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return &Classifier{rules: compiled}, nil
}

// NewDefaultClassifier creates a classifier over DefaultRules.
func NewDefaultClassifier() *Classifier {
	c, err := NewClassifier(DefaultRules())
	if err != nil {
		// Built-in rules are constants; failure here is a programming error.
		panic(err)
	}
	return c
}

// WithOverrides returns rules with custom rules placed before the defaults,
// or replacing them entirely when replaceDefaults is set.
func WithOverrides(custom []Rule, replaceDefaults bool) []Rule {
	if replaceDefaults {
		return append([]Rule(nil), custom...)
	}
	return append(append([]Rule(nil), custom...), DefaultRules()...)
}

// Classify returns the category of a record.
func (c *Classifier) Classify(rec diagnostic.Record) Category {
	category, _ := c.Match(rec)
	return category
}

// Match returns the category and the name of the rule that matched, or
// Unclassified and "" when nothing matched.
func (c *Classifier) Match(rec diagnostic.Record) (Category, string) {
	for i := range c.rules {
		if c.rules[i].Matches(rec.Code, rec.Message) {
			return c.rules[i].Category, c.rules[i].Name
		}
	}
	return Unclassified, ""
}

// Severity returns the severity rank of a record's category.
func (c *Classifier) Severity(rec diagnostic.Record) int {
	return c.Classify(rec).Severity()
}

// Rules returns a copy of the rule list.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}
