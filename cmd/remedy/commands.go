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
	"context"
	"io"

	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	root       string
	configPath string
	stateDir   string
	logLevel   string
	jsonOut    bool
}

// cli holds the output streams and parsed global flags for one invocation.
type cli struct {
	opts   globalOptions
	stdout io.Writer
	stderr io.Writer
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr}
	root := c.newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return exitCode(root.ExecuteContext(ctx), stderr)
}

func (c *cli) newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "remedy",
		Short: "Iteratively repair static-analysis errors in a source tree",
		Long: `remedy runs a checker over a project, classifies each reported error,
applies line-level fixes and re-runs the checker until the error count
stops improving. Every run is backed up first and rolled back if it makes
things worse.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.opts.root, "root", ".", "Project root directory")
	flags.StringVar(&c.opts.configPath, "config", "", "Config file (default <root>/.remedy.yaml)")
	flags.StringVar(&c.opts.stateDir, "state-dir", "", "State directory for backups and learning data (default <root>/.remedy)")
	flags.StringVar(&c.opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&c.opts.jsonOut, "json", false, "Write machine-readable JSON to stdout")

	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newBackupsCmd())
	rootCmd.AddCommand(c.newLearningCmd())
	rootCmd.AddCommand(c.newProfilesCmd())
	rootCmd.AddCommand(c.newInitCmd())
	return rootCmd
}
