// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diagnostic runs an external static-analysis tool and turns its
// text output into structured records.
//
// The package has two halves:
//
//   - Runner executes the tool as a subprocess with a timeout and returns
//     the combined stdout/stderr text and exit code. A non-zero exit code is
//     normal (the tool found errors) and is never reported as a failure.
//   - Parse applies a ToolProfile's line pattern to that text and produces
//     Records. Lines that do not match are skipped and counted.
//
// # Tool Profiles
//
// A ToolProfile is data, not code. Adding support for a new checker means
// registering a new profile with a command and a regular expression using
// named groups:
//
//	| Group    | Required | Meaning                         |
//	|----------|----------|---------------------------------|
//	| file     | yes      | Path of the offending file      |
//	| line     | yes      | 1-based line number             |
//	| column   | no       | 1-based column number           |
//	| code     | no       | Tool-specific error code        |
//	| severity | no       | error / warning / info          |
//	| message  | yes      | Human-readable message          |
//
// Built-in profiles: tsc, eslint, go-vet, go-build, ruff, mypy.
//
// # Usage
//
//	runner := diagnostic.NewRunner(diagnostic.WithWorkingDir(root))
//	profile := diagnostic.NewProfileRegistry().Get("tsc")
//	out, err := runner.Run(ctx, profile.Argv(root), profile.Timeout)
//	if err != nil {
//	    // tool could not be launched
//	}
//	result := diagnostic.Parse(out.Raw, profile)
//
// # Thread Safety
//
// Runner and ProfileRegistry are safe for concurrent use. Parse is pure.
package diagnostic
