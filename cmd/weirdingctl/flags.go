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
	"github.com/spf13/cobra"
	"github.com/weirdinghost/weirdingctl/pkg/plan"
)

// flags
var (
	quietFlag    = false
	outputFormat = ""
	noHeaders    = false
	backupDir    = ""

	allFlag    = false
	yesFlag    = false
	modeFlag   = string(plan.ModeFullWipe)
	nameFlag   = ""
	imageFlag  = ""
	noStack    = false
	skipOSFlag = false
)

var printer func(interface{}) error

func addAllFlag(cmd *cobra.Command, usage string) {
	cmd.PersistentFlags().BoolVarP(&allFlag, "all", "", allFlag, usage)
}

func addYesFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", yesFlag,
		"Assume 'Yes' to all confirmations")
}

func addModeFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&modeFlag, "mode", "m", modeFlag,
		"Provisioning mode; one of full_wipe|dual_use")
}

func addNameFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&nameFlag, "name", "n", nameFlag,
		"Module name used for filesystem labels and the hostname")
}
