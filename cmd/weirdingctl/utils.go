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
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/manifoldco/promptui"
	"github.com/weirdinghost/weirdingctl/pkg/backup"
	"github.com/weirdinghost/weirdingctl/pkg/sys"
	"github.com/weirdinghost/weirdingctl/pkg/utils"
)

func eprintf(isErr bool, format string, args ...interface{}) {
	utils.Eprintf(quietFlag, isErr, format, args...)
}

func printYAML(obj interface{}) error {
	y, err := utils.ToYAML(obj)
	if err != nil {
		return err
	}
	fmt.Println(y)
	return nil
}

func printJSON(obj interface{}) error {
	j, err := utils.ToJSON(obj)
	if err != nil {
		return err
	}
	fmt.Println(j)
	return nil
}

func newTableWriter(header table.Row, sortBy []table.SortBy, noHeader bool) table.Writer {
	writer := table.NewWriter()
	writer.SetOutputMirror(os.Stdout)
	writer.AppendHeader(header)
	writer.SortBy(sortBy)
	writer.SetStyle(table.StyleLight)
	if noHeader {
		writer.ResetHeaders()
	}
	return writer
}

func printableString(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printableBytes(value uint64) string {
	if value == 0 {
		return "-"
	}
	return humanize.IBytes(value)
}

func getInput(msg string) string {
	prompt := promptui.Prompt{
		Label:    msg,
		Validate: func(input string) error { return nil },
	}
	result, err := prompt.Run()
	if err == promptui.ErrInterrupt {
		os.Exit(1)
	}
	return result
}

// openBackupStore opens the snapshot store at --backup-dir or the
// per-user default.
func openBackupStore(runner sys.Runner) (*backup.Store, error) {
	dir := backupDir
	if dir == "" {
		defaultDir, err := backup.DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = defaultDir
	}
	return backup.New(dir, runner)
}
