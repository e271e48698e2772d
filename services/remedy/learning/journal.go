// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	remedybadger "github.com/AleutianAI/remedy/services/remedy/storage/badger"
)

// attemptPrefix namespaces attempt keys in the journal database.
const attemptPrefix = "attempt/"

// BadgerJournal stores attempts in BadgerDB under time-ordered keys.
//
// Keys are "attempt/<unix nanos>/<sequence>" with zero padding so that
// lexical key order is append order.
//
// Thread Safety: Safe for concurrent use.
type BadgerJournal struct {
	db  *remedybadger.DB
	mu  sync.Mutex
	seq uint64
}

// NewBadgerJournal wraps an open database. The caller owns db.
func NewBadgerJournal(db *remedybadger.DB) *BadgerJournal {
	return &BadgerJournal{db: db}
}

// OpenBadgerJournal opens (or creates) a journal database at dir.
func OpenBadgerJournal(dir string) (*BadgerJournal, error) {
	db, err := remedybadger.Open(remedybadger.DefaultConfig(dir))
	if err != nil {
		return nil, err
	}
	return NewBadgerJournal(db), nil
}

// Append writes attempts in a single transaction.
func (j *BadgerJournal) Append(ctx context.Context, attempts []Attempt) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.db.WithTxn(ctx, func(txn *badger.Txn) error {
		for _, a := range attempts {
			value, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("encode attempt: %w", err)
			}
			j.seq++
			key := fmt.Sprintf("%s%020d/%010d", attemptPrefix, a.Timestamp.UnixNano(), j.seq)
			if err := txn.Set([]byte(key), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Replay calls fn for every attempt in key order.
func (j *BadgerJournal) Replay(ctx context.Context, fn func(Attempt) error) error {
	return j.db.ScanPrefix(ctx, []byte(attemptPrefix), func(key, value []byte) error {
		var a Attempt
		if err := json.Unmarshal(value, &a); err != nil {
			return fmt.Errorf("decode attempt %s: %w", key, err)
		}
		return fn(a)
	})
}

// Close closes the underlying database.
func (j *BadgerJournal) Close() error {
	return j.db.Close()
}
