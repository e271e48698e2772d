// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backup

import "errors"

var (
	// ErrBackupFailed indicates a snapshot could not be completed. No file in
	// the project has been touched when this is returned.
	ErrBackupFailed = errors.New("backup failed")

	// ErrRestoreFailed indicates one or more files could not be restored.
	// Manual intervention is required.
	ErrRestoreFailed = errors.New("restore failed: manual intervention required")

	// ErrManifestNotFound indicates no backup exists with the given ID.
	ErrManifestNotFound = errors.New("backup manifest not found")

	// ErrCorruptBackup indicates a manifest or blob failed validation.
	ErrCorruptBackup = errors.New("backup is corrupt")

	// ErrFileMissing indicates a file listed in a manifest is gone from the
	// project or cannot be read.
	ErrFileMissing = errors.New("backed-up file missing or unreadable")
)
