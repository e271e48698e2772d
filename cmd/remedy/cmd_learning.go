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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/remedy/cmd/remedy/config"
	"github.com/AleutianAI/remedy/services/remedy/learning"
	"github.com/AleutianAI/remedy/services/remedy/lock"
)

func (c *cli) newLearningCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learning",
		Short: "Inspect the strategy success history",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show success rates per category and strategy",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return c.showLearning()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the success table from the attempt journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.rebuildLearning(cmd)
		},
	})
	return cmd
}

type learningRow struct {
	Key  string  `json:"key"`
	Rate float64 `json:"rate"`
	learning.Entry
}

func (c *cli) showLearning() error {
	env, err := c.setup()
	if err != nil {
		return err
	}
	defer env.close()

	store, closeStore, err := openLearning(env, false)
	if err != nil {
		return err
	}
	defer closeStore()

	entries := store.Entries()
	rows := make([]learningRow, 0, len(entries))
	for _, key := range store.Keys() {
		e := entries[key]
		rows = append(rows, learningRow{Key: key, Rate: e.Rate(), Entry: e})
	}

	if c.opts.jsonOut {
		return writeJSON(c.stdout, rows)
	}
	if len(rows) == 0 {
		env.out.Info("no attempts recorded yet")
		return nil
	}
	env.out.Title("Strategy success rates")
	for _, row := range rows {
		env.out.KeyValue(row.Key, fmt.Sprintf("%s  %d/%d succeeded, last %s",
			env.out.ProgressBar(row.Successes, row.Attempts, 10),
			row.Successes, row.Attempts, row.LastSeen.Local().Format(time.DateOnly)))
	}
	return nil
}

func (c *cli) rebuildLearning(cmd *cobra.Command) error {
	env, err := c.setup()
	if err != nil {
		return err
	}
	defer env.close()

	if env.cfg.JournalDir(env.stateDir) == "" {
		return fmt.Errorf("the learning journal is disabled; set learning.journal: true in %s", configName(env))
	}

	runLock, err := lock.Acquire(env.stateDir)
	if err != nil {
		return err
	}
	defer runLock.Release()

	store, closeStore, err := openLearning(env, true)
	if err != nil {
		return err
	}
	defer closeStore()

	count, err := store.Rebuild(cmd.Context())
	if err != nil {
		return err
	}
	if err := store.Flush(cmd.Context()); err != nil {
		return err
	}

	if c.opts.jsonOut {
		return writeJSON(c.stdout, map[string]int{"replayed": count, "entries": len(store.Keys())})
	}
	env.out.Success(fmt.Sprintf("rebuilt %s from %s",
		plural(len(store.Keys()), "entry", "entries"), plural(count, "attempt", "attempts")))
	return nil
}

func configName(env *environment) string {
	if env.configPath != "" {
		return env.configPath
	}
	return config.FileName
}
