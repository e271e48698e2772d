// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patch

import (
	"errors"

	"github.com/AleutianAI/remedy/pkg/fsutil"
)

var (
	// ErrPatchConflict indicates the file on disk changed since it was read.
	ErrPatchConflict = errors.New("patch conflict: file changed on disk")

	// ErrNotBackedUp indicates a write to a file the backup does not cover.
	ErrNotBackedUp = errors.New("file is not covered by the backup")

	// ErrOutsideRoot indicates a path that resolves outside the project root.
	ErrOutsideRoot = fsutil.ErrOutsideRoot
)
