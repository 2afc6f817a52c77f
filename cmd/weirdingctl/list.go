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

var listCmd = &cobra.Command{
	Use:           "list",
	Aliases:       []string{"ls"},
	Short:         "List drives that can become " + consts.AppPrettyName + " modules",
	SilenceUsage:  true,
	SilenceErrors: true,
	Example: strings.ReplaceAll(
		`1. List external drives
   $ {PLUGIN_NAME} list

2. List all drives, internal ones included
   $ {PLUGIN_NAME} list --all

3. List drives as YAML
   $ {PLUGIN_NAME} list --output yaml`,
		`{PLUGIN_NAME}`,
		consts.AppName,
	),
	Run: func(c *cobra.Command, args []string) {
		listMain(c.Context())
	},
}

func init() {
	addAllFlag(listCmd, "If present, list internal drives too")
}

// driveStatus summarizes why a drive can or cannot be converted.
func driveStatus(dev device.Device) string {
	switch {
	case !dev.IsExternal():
		return "internal"
	case dev.ReadOnly:
		return "read-only"
	case dev.Hidden:
		return "hidden"
	}
	if _, err := plan.New(dev, plan.ModeFullWipe, ""); err != nil {
		return "too small"
	}
	return "ready"
}

func listMain(ctx context.Context) {
	devices, err := device.Probe()
	if err != nil {
		eprintf(true, "%v\n", err)
		os.Exit(1)
	}

	var drives []device.Device
	for _, dev := range devices {
		if dev.Hidden && !allFlag {
			continue
		}
		if !allFlag && !dev.IsExternal() {
			continue
		}
		drives = append(drives, dev)
	}

	if printer != nil {
		if err := printer(drives); err != nil {
			eprintf(true, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	writer := newTableWriter(
		table.Row{"NAME", "MAKE", "SIZE", "CONNECTION", "PARTITIONS", "MOUNTED", "STATUS"},
		[]table.SortBy{
			{Name: "STATUS", Mode: table.Asc},
			{Name: "NAME", Mode: table.Asc},
		},
		noHeaders,
	)
	for _, dev := range drives {
		mounted := "no"
		if dev.Mounted() {
			mounted = "yes"
		}
		writer.AppendRow([]interface{}{
			dev.Path(),
			dev.Make(),
			printableBytes(dev.Size),
			printableString(dev.Connection),
			fmt.Sprintf("%v", len(dev.Partitions)),
			mounted,
			driveStatus(dev),
		})
	}

	if writer.Length() != 0 {
		writer.Render()
		return
	}

	if allFlag {
		eprintf(false, "No drives found\n")
	} else {
		eprintf(false, "No external drives found\n")
	}
	os.Exit(1)
}
