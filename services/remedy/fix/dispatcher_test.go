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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/remedy/services/remedy/classify"
	"github.com/AleutianAI/remedy/services/remedy/diagnostic"
	"github.com/AleutianAI/remedy/services/remedy/learning"
)

type fakeRates map[string]float64

func (f fakeRates) SuccessRate(category classify.Category, id string) float64 {
	if r, ok := f[id]; ok {
		return r
	}
	return 0.5
}

type fakeRecorder struct {
	attempts []learning.Attempt
}

func (f *fakeRecorder) RecordAttempt(a learning.Attempt) {
	f.attempts = append(f.attempts, a)
}

func constStrategy(id string, result func(rec diagnostic.Record, content []byte) PatchResult) Strategy {
	return Strategy{ID: id, Category: classify.SyntaxError, Apply: result}
}

func declineAll(diagnostic.Record, []byte) PatchResult { return declined("nope") }

func TestDispatcherStrategiesForOrdering(t *testing.T) {
	rates := fakeRates{"b": 0.9, "c": 0.9, "a": 0.1}
	d := NewDispatcher(rates, nil)
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, d.Register(constStrategy(id, declineAll)))
	}
	require.NoError(t, d.Register(Strategy{ID: "other", Category: classify.TypeMismatch, Apply: declineAll}))

	var ids []string
	for _, s := range d.StrategiesFor(classify.SyntaxError) {
		ids = append(ids, s.ID)
	}
	// b and c tie; registration order keeps b first. d is unseen (0.5).
	assert.Equal(t, []string{"b", "c", "d", "a"}, ids)

	assert.Empty(t, d.StrategiesFor(classify.UnusedDeclaration))
}

func TestDispatcherRegisterValidation(t *testing.T) {
	d := NewDispatcher(nil, nil)
	require.NoError(t, d.Register(constStrategy("x", declineAll)))

	assert.ErrorIs(t, d.Register(constStrategy("x", declineAll)), ErrDuplicateStrategy)
	assert.ErrorIs(t, d.Register(Strategy{ID: "", Category: classify.SyntaxError, Apply: declineAll}), ErrInvalidStrategy)
	assert.ErrorIs(t, d.Register(Strategy{ID: "y", Category: classify.SyntaxError}), ErrInvalidStrategy)
	assert.ErrorIs(t, d.Register(Strategy{ID: "z", Category: classify.Unclassified, Apply: declineAll}), ErrInvalidStrategy)
}

func TestDispatcherAttemptFix(t *testing.T) {
	content := []byte("one\ntwo\nthree\n")
	rec := diagnostic.Record{File: "f", Line: 2, Message: "m"}

	t.Run("first success wins and declines are recorded", func(t *testing.T) {
		rec := rec
		recorder := &fakeRecorder{}
		d := NewDispatcher(nil, recorder)
		require.NoError(t, d.Register(constStrategy("declines", declineAll)))
		require.NoError(t, d.Register(constStrategy("works", func(r diagnostic.Record, c []byte) PatchResult {
			return patched(c, r, "TWO")
		})))
		require.NoError(t, d.Register(constStrategy("never-reached", func(r diagnostic.Record, c []byte) PatchResult {
			t.Fatal("strategy after a success must not run")
			return PatchResult{}
		})))

		p := d.AttemptFix(rec, classify.SyntaxError, content, 3)

		require.True(t, p.OK())
		assert.Equal(t, "works", p.StrategyID)
		assert.Equal(t, "one\nTWO\nthree\n", string(p.NewContent))
		assert.Equal(t, Edit{Line: 2, Inserted: 1}, p.Edit)
		require.Len(t, p.Declined, 1)
		assert.Equal(t, "declines", p.Declined[0].StrategyID)

		require.Len(t, recorder.attempts, 1)
		a := recorder.attempts[0]
		assert.Equal(t, "declines", a.StrategyID)
		assert.Equal(t, learning.OutcomeFailure, a.Outcome)
		assert.Equal(t, 3, a.Iteration)
		assert.Equal(t, classify.SyntaxError, a.Category)
	})

	t.Run("scope violation is rejected", func(t *testing.T) {
		recorder := &fakeRecorder{}
		d := NewDispatcher(nil, recorder)
		require.NoError(t, d.Register(constStrategy("blanket", func(r diagnostic.Record, c []byte) PatchResult {
			return PatchResult{Success: true, NewContent: []byte("ONE\nTWO\nTHREE\n")}
		})))

		p := d.AttemptFix(rec, classify.SyntaxError, content, 0)

		assert.False(t, p.OK())
		assert.Nil(t, p.NewContent)
		require.Len(t, p.Declined, 1)
		assert.Contains(t, p.Declined[0].Reason, "outside flagged line")
		require.Len(t, recorder.attempts, 1)
	})

	t.Run("not applicable declines are reported but not recorded", func(t *testing.T) {
		recorder := &fakeRecorder{}
		d := NewDispatcher(nil, recorder)
		require.NoError(t, d.Register(constStrategy("other-kind", func(diagnostic.Record, []byte) PatchResult {
			return notApplicable("message is about something else")
		})))
		require.NoError(t, d.Register(constStrategy("tried", declineAll)))

		p := d.AttemptFix(rec, classify.SyntaxError, content, 0)

		assert.False(t, p.OK())
		require.Len(t, p.Declined, 2)
		assert.Equal(t, "other-kind", p.Declined[0].StrategyID)
		require.Len(t, recorder.attempts, 1)
		assert.Equal(t, "tried", recorder.attempts[0].StrategyID)
	})

	t.Run("no-op patch is rejected", func(t *testing.T) {
		d := NewDispatcher(nil, nil)
		require.NoError(t, d.Register(constStrategy("noop", func(r diagnostic.Record, c []byte) PatchResult {
			return PatchResult{Success: true, NewContent: c}
		})))

		p := d.AttemptFix(rec, classify.SyntaxError, content, 0)
		assert.False(t, p.OK())
		require.Len(t, p.Declined, 1)
	})

	t.Run("unclassified has no candidates", func(t *testing.T) {
		d := NewDefaultDispatcher(nil, nil)
		p := d.AttemptFix(rec, classify.Unclassified, content, 0)
		assert.False(t, p.OK())
		assert.Empty(t, p.Declined)
	})
}

func TestDefaultDispatcherWithLearningStore(t *testing.T) {
	store := learning.NewStore("")
	d := NewDefaultDispatcher(store, store)

	comma := diagnostic.Record{File: "a.ts", Line: 1, Column: 7, Code: "TS1005", Message: "',' expected."}
	p := d.AttemptFix(comma, classify.SyntaxError, []byte("foo(a b)\n"), 0)

	require.True(t, p.OK())
	assert.Equal(t, "insert-missing-comma", p.StrategyID)

	// The semicolon strategy runs first but the message is not for it, so
	// its record stays clean.
	_, ok := store.Entry(classify.SyntaxError, "insert-missing-semicolon")
	assert.False(t, ok)

	// Here it applies and fails, which does count against it.
	semicolon := diagnostic.Record{File: "a.ts", Line: 1, Column: 12, Code: "TS1005", Message: "';' expected."}
	p = d.AttemptFix(semicolon, classify.SyntaxError, []byte("let a = 1; let b\n"), 0)
	assert.False(t, p.OK())

	e, ok := store.Entry(classify.SyntaxError, "insert-missing-semicolon")
	require.True(t, ok)
	assert.Equal(t, 1, e.Failures)
	_, ok = store.Entry(classify.SyntaxError, "insert-missing-comma")
	assert.False(t, ok)

	// Its lower rate now puts the comma strategy first.
	first := d.StrategiesFor(classify.SyntaxError)[0]
	assert.Equal(t, "insert-missing-comma", first.ID)
}
