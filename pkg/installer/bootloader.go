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

package installer

import (
	"context"
	"fmt"

	"github.com/weirdinghost/weirdingctl/pkg/consts"
	"github.com/weirdinghost/weirdingctl/pkg/plan"
	"github.com/weirdinghost/weirdingctl/pkg/sys"
	"k8s.io/klog/v2"
)

// BootloaderInstaller installs GRUB for every boot path the plan
// provides: the EFI system partition for UEFI hosts and the BIOS boot
// partition for legacy ones. Modules travel between machines, so both
// targets are installed whenever the plan carries them.
type BootloaderInstaller struct {
	runner sys.Runner
}

// NewBootloaderInstaller returns a bootloader installer using the
// given runner.
func NewBootloaderInstaller(runner sys.Runner) *BootloaderInstaller {
	return &BootloaderInstaller{runner: runner}
}

// Install runs grub-install inside the mounted staging root for each
// boot partition of the plan, then regenerates the GRUB configuration.
func (b *BootloaderInstaller) Install(ctx context.Context, p *plan.Plan, staging *Staging, progress Progress) error {
	report := func(message string) {
		klog.V(3).InfoS("bootloader", "device", p.Device.Path(), "message", message)
		if progress != nil {
			progress(message)
		}
	}
	rootDir := staging.RootDir()

	var hasEFI, hasBIOSBoot bool
	for _, spec := range p.CreateSpecs() {
		switch spec.Role {
		case plan.RoleEFISystem:
			hasEFI = true
		case plan.RoleBIOSBoot:
			hasBIOSBoot = true
		}
	}
	if !hasEFI && !hasBIOSBoot {
		return fmt.Errorf("plan for %v has no boot partitions", p.Device.Path())
	}

	if hasEFI {
		report("Installing EFI bootloader...")
		// --removable puts GRUB at the fallback path so firmware finds
		// it without an NVRAM entry; the module has to boot on machines
		// it has never seen.
		_, stderr, err := b.runner.Run(ctx, "chroot", rootDir, "grub-install",
			"--target=x86_64-efi",
			"--efi-directory="+consts.EFIMountPoint,
			"--bootloader-id="+consts.AppCapsName,
			"--removable",
			"--recheck",
			"--no-nvram",
		)
		if err != nil {
			return fmt.Errorf("EFI bootloader installation failed; %w; %v", err, stderr)
		}
	}

	if hasBIOSBoot {
		report("Installing legacy BIOS bootloader...")
		_, stderr, err := b.runner.Run(ctx, "chroot", rootDir, "grub-install",
			"--target=i386-pc",
			"--recheck",
			p.Device.Path(),
		)
		if err != nil {
			return fmt.Errorf("BIOS bootloader installation failed; %w; %v", err, stderr)
		}
	}

	report("Generating bootloader configuration...")
	if _, stderr, err := b.runner.Run(ctx, "chroot", rootDir, "update-grub"); err != nil {
		return fmt.Errorf("bootloader configuration failed; %w; %v", err, stderr)
	}
	return nil
}
