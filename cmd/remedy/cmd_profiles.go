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
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/remedy/pkg/ux"
	"github.com/AleutianAI/remedy/services/remedy/diagnostic"
)

func (c *cli) newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the available checker profiles",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return c.listProfiles()
		},
	}
}

func (c *cli) listProfiles() error {
	env, err := c.setup()
	if err != nil {
		return err
	}
	defer env.close()

	registry, err := env.cfg.Registry()
	if err != nil {
		return err
	}
	names := registry.Names()

	if c.opts.jsonOut {
		profiles := make([]*diagnostic.ToolProfile, 0, len(names))
		for _, name := range names {
			profiles = append(profiles, registry.Get(name))
		}
		return writeJSON(c.stdout, profiles)
	}

	env.out.Title("Checker profiles")
	for _, name := range names {
		p := registry.Get(name)
		icon := ux.IconBullet
		if name == env.cfg.ToolProfile {
			icon = ux.IconArrow
		}
		env.out.FileStatus(name, icon, strings.Join(p.Argv("{root}"), " "))
	}
	return nil
}
