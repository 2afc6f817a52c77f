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
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/weirdinghost/weirdingctl/pkg/consts"
	"github.com/weirdinghost/weirdingctl/pkg/device"
	"github.com/weirdinghost/weirdingctl/pkg/sys"
)

var restoreCmd = &cobra.Command{
	Use:           "restore DRIVE [BACKUP-FILE]",
	Short:         "Restore a drive's partition table from a saved backup",
	SilenceUsage:  true,
	SilenceErrors: true,
	Example: strings.ReplaceAll(
		`1. Restore /dev/sdd from its most recent backup
   $ {PLUGIN_NAME} restore /dev/sdd

2. Restore /dev/sdd from a specific backup
   $ {PLUGIN_NAME} restore /dev/sdd sdd_partition_backup_1700000000_abcd1234.sgdisk`,
		`{PLUGIN_NAME}`,
		consts.AppName,
	),
	Args: cobra.RangeArgs(1, 2),
	Run: func(c *cobra.Command, args []string) {
		backupArg := ""
		if len(args) == 2 {
			backupArg = args[1]
		}
		restoreMain(c.Context(), args[0], backupArg)
	},
}

func init() {
	addYesFlag(restoreCmd)
}

func restoreMain(ctx context.Context, devPath, backupArg string) {
	dev, err := device.ProbeByPath(devPath)
	if err != nil {
		eprintf(true, "%v\n", err)
		os.Exit(1)
	}

	runner := sys.NewRunner()
	store, err := openBackupStore(runner)
	if err != nil {
		eprintf(true, "%v\n", err)
		os.Exit(1)
	}

	backupPath := backupArg
	switch {
	case backupPath == "":
		backups, err := store.List(dev.Name)
		if err != nil {
			eprintf(true, "%v\n", err)
			os.Exit(1)
		}
		if len(backups) == 0 {
			eprintf(true, "no backups found for %v in %v\n", dev.Path(), store.Dir())
			os.Exit(1)
		}
		backupPath = backups[0]
	case !filepath.IsAbs(backupPath):
		backupPath = filepath.Join(store.Dir(), backupPath)
	}

	if !yesFlag {
		input := getInput(color.HiRedString(
			"Restoring overwrites the current partition table of drive " + dev.Path() + ". Type 'Yes' to continue"))
		if input != "Yes" {
			eprintf(false, "restore canceled\n")
			os.Exit(1)
		}
	}

	if err := store.Restore(ctx, dev, backupPath); err != nil {
		eprintf(true, "%v\n", err)
		os.Exit(1)
	}

	eprintf(false, "Partition table of %v restored from %v\n", dev.Path(), filepath.Base(backupPath))
}
