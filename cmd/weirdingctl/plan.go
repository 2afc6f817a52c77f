// This file is part of Weirding Host Utility
// Copyright (c) 2025 Weirding Host contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/weirdinghost/weirdingctl/pkg/consts"
	"github.com/weirdinghost/weirdingctl/pkg/device"
	"github.com/weirdinghost/weirdingctl/pkg/plan"
)

var planCmd = &cobra.Command{
	Use:           "plan DRIVE",
	Short:         "Show the partition layout a conversion would apply, without touching the drive",
	SilenceUsage:  true,
	SilenceErrors: true,
	Example: strings.ReplaceAll(
		`1. Plan a full-wipe conversion of /dev/sdd
   $ {PLUGIN_NAME} plan /dev/sdd

2. Plan a dual-use conversion keeping existing partitions
   $ {PLUGIN_NAME} plan --mode dual_use /dev/sdd

3. Plan with a custom module name
   $ {PLUGIN_NAME} plan --name sietch /dev/sdd`,
		`{PLUGIN_NAME}`,
		consts.AppName,
	),
	Args: cobra.ExactArgs(1),
	Run: func(c *cobra.Command, args []string) {
		planMain(c.Context(), args[0])
	},
}

func init() {
	addModeFlag(planCmd)
	addNameFlag(planCmd)
}

func planMain(ctx context.Context, devPath string) {
	dev, err := device.ProbeByPath(devPath)
	if err != nil {
		eprintf(true, "%v\n", err)
		os.Exit(1)
	}

	p, err := plan.New(dev, plan.Mode(modeFlag), nameFlag)
	if err != nil {
		eprintf(true, "%v\n", err)
		os.Exit(1)
	}

	if printer != nil {
		if err := printer(p); err != nil {
			eprintf(true, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	eprintf(false, "Partition plan for %v (%v, %v):\n",
		dev.Path(), dev.Make(), printableBytes(dev.Size))
	renderPlan(p)
}

// renderPlan prints the plan's partitions as a table, preserved ones
// included.
func renderPlan(p *plan.Plan) {
	writer := newTableWriter(
		table.Row{"#", "ROLE", "SIZE", "FILESYSTEM", "LABEL", "MOUNTPOINT", "ACTION"},
		[]table.SortBy{
			{Name: "#", Mode: table.AscNumeric},
		},
		noHeaders,
	)
	for _, spec := range p.Partitions {
		writer.AppendRow([]interface{}{
			fmt.Sprintf("%v", spec.Index),
			printableString(string(spec.Role)),
			printableBytes(spec.Size),
			printableString(string(spec.Filesystem)),
			printableString(spec.Label),
			printableString(spec.MountPoint),
			string(spec.Action),
		})
	}
	writer.Render()
}
