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
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/weirdinghost/weirdingctl/pkg/consts"
	"github.com/weirdinghost/weirdingctl/pkg/device"
	"github.com/weirdinghost/weirdingctl/pkg/images"
	"github.com/weirdinghost/weirdingctl/pkg/installer"
	"github.com/weirdinghost/weirdingctl/pkg/partition"
	"github.com/weirdinghost/weirdingctl/pkg/plan"
	"github.com/weirdinghost/weirdingctl/pkg/sys"
)

var convertCmd = &cobra.Command{
	Use:           "convert DRIVE",
	Short:         "Convert a drive into a bootable " + consts.AppPrettyName + " module",
	SilenceUsage:  true,
	SilenceErrors: true,
	Example: strings.ReplaceAll(
		`1. Convert /dev/sdd, wiping everything on it
   $ {PLUGIN_NAME} convert /dev/sdd

2. Convert without wiping existing partitions
   $ {PLUGIN_NAME} convert --mode dual_use /dev/sdd

3. Convert using a cached Ubuntu desktop image
   $ {PLUGIN_NAME} convert --image ubuntu-2404-desktop /dev/sdd

4. Partition only; install the operating system later
   $ {PLUGIN_NAME} convert --skip-os /dev/sdd`,
		`{PLUGIN_NAME}`,
		consts.AppName,
	),
	Args: cobra.ExactArgs(1),
	Run: func(c *cobra.Command, args []string) {
		convertMain(c.Context(), args[0])
	},
}

func init() {
	addModeFlag(convertCmd)
	addNameFlag(convertCmd)
	addYesFlag(convertCmd)
	convertCmd.PersistentFlags().StringVarP(&imageFlag, "image", "i", imageFlag,
		"Base operating system image ID; see '"+consts.AppName+" images'")
	convertCmd.PersistentFlags().BoolVarP(&noStack, "no-stack", "", noStack,
		"Skip installing the AI stack (container runtime, model server)")
	convertCmd.PersistentFlags().BoolVarP(&skipOSFlag, "skip-os", "", skipOSFlag,
		"Partition and format only; do not install an operating system")
}

func convertMain(ctx context.Context, devPath string) {
	dev, err := device.ProbeByPath(devPath)
	if err != nil {
		eprintf(true, "%v\n", err)
		os.Exit(1)
	}

	if !dev.IsExternal() {
		eprintf(true, "%v is not an external drive; only removable or USB attached drives are converted\n", dev.Path())
		os.Exit(1)
	}
	if dev.ReadOnly {
		eprintf(true, "%v is read-only\n", dev.Path())
		os.Exit(1)
	}

	p, err := plan.New(dev, plan.Mode(modeFlag), nameFlag)
	if err != nil {
		eprintf(true, "%v\n", err)
		os.Exit(1)
	}

	eprintf(false, "Partition plan for %v (%v, %v):\n",
		dev.Path(), dev.Make(), printableBytes(dev.Size))
	renderPlan(p)

	if !yesFlag {
		confirm := "Type 'Yes' if you really want to add a partition to drive " + dev.Path()
		if p.Mode == plan.ModeFullWipe {
			confirm = "ALL DATA on drive " + dev.Path() + " will be DESTROYED. Type 'Yes' to continue"
		}
		input := getInput(color.HiRedString(confirm))
		if input != "Yes" {
			eprintf(false, "conversion canceled\n")
			os.Exit(1)
		}
	}

	runner := sys.NewRunner()
	store, err := openBackupStore(runner)
	if err != nil {
		eprintf(true, "%v\n", err)
		os.Exit(1)
	}

	applier := partition.NewApplier(runner, store)
	result, err := applier.Apply(ctx, p, func(stage partition.Stage, message string) {
		eprintf(false, "  %v\n", message)
	})
	if err != nil {
		eprintf(true, "%v\n", err)
		if result.RollbackErr != nil {
			eprintf(true, "automatic rollback failed; restore manually with '%v restore %v %v'\n",
				consts.AppName, dev.Path(), result.BackupPath)
		}
		os.Exit(1)
	}
	eprintf(false, "Partition table backup saved at %v\n", result.BackupPath)

	if p.Mode == plan.ModeDualUse {
		created := p.CreateSpecs()
		eprintf(false, "\nAdded partition %v (%v) on %v; existing data untouched\n",
			created[0].Label, printableBytes(created[0].Size), dev.Path())
		return
	}

	if skipOSFlag {
		eprintf(false, "\nDrive %v partitioned and formatted; operating system installation skipped\n", dev.Path())
		return
	}

	installOS(ctx, runner, p)
	eprintf(false, "\nDrive %v is now a bootable %v module\n", dev.Path(), consts.AppPrettyName)
}

// installOS runs the post-partitioning pipeline: mount the freshly
// created filesystems, lay down the base system, the bootloader and
// the AI stack, then unmount. Any failure past the mount leaves the
// staging tree unmounted but the partitions intact.
func installOS(ctx context.Context, runner sys.Runner, p *plan.Plan) {
	cacheDir, err := images.DefaultCacheDir()
	if err != nil {
		eprintf(true, "%v\n", err)
		os.Exit(1)
	}
	catalog := images.New(cacheDir)

	var img *images.Image
	if imageFlag != "" {
		found, ok := catalog.ByID(imageFlag)
		if !ok {
			eprintf(true, "unknown image %v; see '%v images'\n", imageFlag, consts.AppName)
			os.Exit(1)
		}
		suitable := false
		for _, candidate := range catalog.Suitable(p) {
			if candidate.ID == found.ID {
				suitable = true
				break
			}
		}
		if !suitable {
			eprintf(true, "image %v does not fit the planned root partition; see '%v images'\n",
				found.ID, consts.AppName)
			os.Exit(1)
		}
		img = &found
	}

	staging := installer.NewStaging(runner, installer.DefaultStagingRoot)
	if err := staging.Mount(ctx, p); err != nil {
		eprintf(true, "%v\n", err)
		os.Exit(1)
	}
	fail := func(err error) {
		if unmountErr := staging.Unmount(ctx); unmountErr != nil {
			eprintf(true, "unable to unmount staging tree: %v\n", unmountErr)
		}
		eprintf(true, "%v\n", err)
		os.Exit(1)
	}

	progress := func(message string) {
		eprintf(false, "  %v\n", message)
	}

	provisioner := installer.NewImageProvisioner(runner, catalog)
	if err := provisioner.Provision(ctx, p, staging, img, progress); err != nil {
		fail(err)
	}

	bootloader := installer.NewBootloaderInstaller(runner)
	if err := bootloader.Install(ctx, p, staging, progress); err != nil {
		fail(err)
	}

	if !noStack {
		stack := installer.NewStackInstaller(runner)
		if err := stack.Install(ctx, p, staging, progress); err != nil {
			fail(err)
		}
	}

	if err := staging.Unmount(ctx); err != nil {
		eprintf(true, "unable to unmount staging tree: %v\n", err)
		os.Exit(1)
	}
}
