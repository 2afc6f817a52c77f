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

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/weirdinghost/weirdingctl/pkg/consts"
	"github.com/weirdinghost/weirdingctl/pkg/sys"
)

var backupsCmd = &cobra.Command{
	Use:           "backups [DRIVE]",
	Short:         "List saved partition table backups",
	SilenceUsage:  true,
	SilenceErrors: true,
	Example: strings.ReplaceAll(
		`1. List all partition table backups
   $ {PLUGIN_NAME} backups

2. List backups of /dev/sdd
   $ {PLUGIN_NAME} backups /dev/sdd`,
		`{PLUGIN_NAME}`,
		consts.AppName,
	),
	Args: cobra.MaximumNArgs(1),
	Run: func(c *cobra.Command, args []string) {
		name := ""
		if len(args) == 1 {
			name = strings.TrimPrefix(args[0], "/dev/")
		}
		backupsMain(c.Context(), name)
	},
}

func backupsMain(ctx context.Context, name string) {
	store, err := openBackupStore(sys.NewRunner())
	if err != nil {
		eprintf(true, "%v\n", err)
		os.Exit(1)
	}

	backups, err := store.List(name)
	if err != nil {
		eprintf(true, "%v\n", err)
		os.Exit(1)
	}

	if printer != nil {
		if err := printer(backups); err != nil {
			eprintf(true, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	if len(backups) == 0 {
		if name == "" {
			eprintf(false, "No backups found in %v\n", store.Dir())
		} else {
			eprintf(false, "No backups found for %v in %v\n", name, store.Dir())
		}
		os.Exit(1)
	}

	// List returns newest first; keep that order.
	writer := newTableWriter(
		table.Row{"BACKUP", "SIZE", "CREATED"},
		nil,
		noHeaders,
	)
	for _, backupPath := range backups {
		size, created := "-", "-"
		if stat, err := os.Stat(backupPath); err == nil {
			size = printableBytes(uint64(stat.Size()))
			created = humanize.Time(stat.ModTime())
		}
		writer.AppendRow([]interface{}{
			filepath.Base(backupPath),
			size,
			created,
		})
	}
	writer.Render()

	eprintf(false, "\nBackup directory: %v\n", store.Dir())
}
