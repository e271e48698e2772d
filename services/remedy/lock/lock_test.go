// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lock

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
)

func TestAcquireRelease(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")

	l, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if runtime.GOOS != "windows" {
		data, err := os.ReadFile(l.Path())
		if err != nil {
			t.Fatalf("reading lock file: %v", err)
		}
		if got := strings.TrimSpace(string(data)); got != strconv.Itoa(os.Getpid()) {
			t.Errorf("lock file pid = %q, want %d", got, os.Getpid())
		}
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}

	again, err := Acquire(dir)
	if err != nil {
		t.Fatalf("re-Acquire after release: %v", err)
	}
	defer again.Release()
}

func TestAcquireContended(t *testing.T) {
	dir := t.TempDir()

	held, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer held.Release()

	// flock locks belong to the open file description, so a second open in
	// the same process contends.
	_, err = Acquire(dir)
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("second Acquire error = %v, want ErrLocked", err)
	}
	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("error %T is not *LockedError", err)
	}
	// Windows byte-range locks keep the holder's PID unreadable.
	if runtime.GOOS != "windows" && locked.PID != os.Getpid() {
		t.Errorf("holder pid = %d, want %d", locked.PID, os.Getpid())
	}
}
