// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/remedy/pkg/ux"
	"github.com/AleutianAI/remedy/services/remedy/backup"
	"github.com/AleutianAI/remedy/services/remedy/lock"
)

func (c *cli) newBackupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "Inspect and restore run backups",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return c.listBackups()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <id>",
		Short: "Check that every file in a backup is intact",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return c.validateBackup(args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "restore <id>",
		Short: "Restore every file in a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.restoreBackup(cmd, args[0])
		},
	})
	return cmd
}

type backupSummary struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	CommitHash string    `json:"commitHash,omitempty"`
	Files      int       `json:"files"`
}

func (c *cli) listBackups() error {
	env, err := c.setup()
	if err != nil {
		return err
	}
	defer env.close()

	manifests, err := backup.NewManager(env.root, env.stateDir).List()
	if err != nil {
		return err
	}

	if c.opts.jsonOut {
		out := make([]backupSummary, 0, len(manifests))
		for _, m := range manifests {
			out = append(out, backupSummary{ID: m.ID, Timestamp: m.Timestamp, CommitHash: m.CommitHash, Files: len(m.Files)})
		}
		return writeJSON(c.stdout, out)
	}

	if len(manifests) == 0 {
		env.out.Info("no backups in " + env.stateDir)
		return nil
	}
	env.out.Title(fmt.Sprintf("%d backups", len(manifests)))
	for _, m := range manifests {
		detail := m.Timestamp.Local().Format(time.DateTime) + ", " + plural(len(m.Files), "file", "files")
		if m.CommitHash != "" {
			detail += ", commit " + shortHash(m.CommitHash)
		}
		env.out.FileStatus(m.ID, ux.IconBullet, detail)
	}
	return nil
}

func (c *cli) validateBackup(id string) error {
	env, err := c.setup()
	if err != nil {
		return err
	}
	defer env.close()

	manager := backup.NewManager(env.root, env.stateDir)
	manifest, err := manager.Load(id)
	if err != nil {
		return err
	}
	verifyErr := errors.Join(manager.Verify(manifest), manager.CheckFiles(manifest))

	if c.opts.jsonOut {
		out := struct {
			ID    string `json:"id"`
			Valid bool   `json:"valid"`
			Error string `json:"error,omitempty"`
		}{ID: id, Valid: verifyErr == nil}
		if verifyErr != nil {
			out.Error = verifyErr.Error()
		}
		if err := writeJSON(c.stdout, out); err != nil {
			return err
		}
		if verifyErr != nil {
			return &ExitError{Code: exitFailure}
		}
		return nil
	}

	if verifyErr != nil {
		env.out.Error(fmt.Sprintf("backup %s is not valid", id))
		return &ExitError{Code: exitFailure, Err: verifyErr}
	}
	env.out.Success(fmt.Sprintf("backup %s is intact (%s)", id, plural(len(manifest.Files), "file", "files")))
	return nil
}

func (c *cli) restoreBackup(cmd *cobra.Command, id string) error {
	env, err := c.setup()
	if err != nil {
		return err
	}
	defer env.close()

	runLock, err := lock.Acquire(env.stateDir)
	if err != nil {
		return err
	}
	defer runLock.Release()

	manager := backup.NewManager(env.root, env.stateDir)
	manifest, err := manager.Load(id)
	if err != nil {
		return err
	}
	if err := manager.Verify(manifest); err != nil {
		return fmt.Errorf("refusing to restore: %w", err)
	}
	if err := manager.Restore(cmd.Context(), manifest); err != nil {
		return err
	}
	env.out.Success(fmt.Sprintf("restored %s from backup %s", plural(len(manifest.Files), "file", "files"), id))
	return nil
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
