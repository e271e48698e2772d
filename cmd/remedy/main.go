// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command remedy repairs static-analysis errors in a source tree.
//
// It runs a checker, classifies what it reports, applies line-level fixes
// and runs the checker again until the error count stops improving:
//
//	remedy run --tool-profile tsc --max-iterations 5
//	remedy run --dry-run --json
//	remedy backups list
//	remedy learning show
//
// Exit codes: 0 converged, 1 regressed or failed, 2 stopped early
// (iteration budget, checker timeout or interrupt).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
