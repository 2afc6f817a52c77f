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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weirdinghost/weirdingctl/pkg/sys"
)

func TestBootloaderInstallsBothTargets(t *testing.T) {
	p := fullWipePlan(t, "")
	runner := sys.NewFakeRunner()
	staging := NewStaging(runner, "/tmp/staging")

	require.NoError(t, NewBootloaderInstaller(runner).Install(context.Background(), p, staging, nil))

	assert.Equal(t, []string{
		"chroot /tmp/staging/root grub-install --target=x86_64-efi --efi-directory=/boot/efi --bootloader-id=WEIRDING --removable --recheck --no-nvram",
		"chroot /tmp/staging/root grub-install --target=i386-pc --recheck /dev/sdd",
		"chroot /tmp/staging/root update-grub",
	}, runner.Commands)
}

func TestBootloaderRequiresBootPartition(t *testing.T) {
	p := dualUsePlan(t)
	runner := sys.NewFakeRunner()
	staging := NewStaging(runner, "/tmp/staging")

	err := NewBootloaderInstaller(runner).Install(context.Background(), p, staging, nil)
	require.Error(t, err)
	assert.Empty(t, runner.Commands)
}

func TestBootloaderEFIFailure(t *testing.T) {
	p := fullWipePlan(t, "")
	runner := sys.NewFakeRunner()
	runner.AddResult(
		"chroot /tmp/staging/root grub-install --target=x86_64-efi --efi-directory=/boot/efi --bootloader-id=WEIRDING --removable --recheck --no-nvram",
		sys.FakeResult{Stderr: "cannot find EFI directory", Err: errors.New("exit status 1")})
	staging := NewStaging(runner, "/tmp/staging")

	err := NewBootloaderInstaller(runner).Install(context.Background(), p, staging, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EFI bootloader installation failed")
	assert.Contains(t, err.Error(), "cannot find EFI directory")

	// No point continuing to the BIOS target after a failure.
	assert.False(t, runner.RanCommand("chroot /tmp/staging/root grub-install --target=i386-pc --recheck /dev/sdd"))
}
