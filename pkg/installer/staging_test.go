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
	"github.com/weirdinghost/weirdingctl/pkg/device"
	"github.com/weirdinghost/weirdingctl/pkg/plan"
	"github.com/weirdinghost/weirdingctl/pkg/sys"
)

const gib = uint64(1024 * 1024 * 1024)

func fullWipePlan(t *testing.T, moduleName string) *plan.Plan {
	t.Helper()
	p, err := plan.New(device.Device{Name: "sdd", Size: 128 * gib, Removable: true}, plan.ModeFullWipe, moduleName)
	require.NoError(t, err)
	return p
}

func dualUsePlan(t *testing.T) *plan.Plan {
	t.Helper()
	dev := device.Device{
		Name: "sdd", Size: 128 * gib, Removable: true,
		Partitions: []device.Partition{
			{Index: 1, Name: "sdd1", Size: 64 * gib, FSType: "exfat", MountPoint: "/mnt/photos"},
		},
	}
	p, err := plan.New(dev, plan.ModeDualUse, "")
	require.NoError(t, err)
	return p
}

type mountRecord struct {
	device string
	target string
	fsType string
}

func recordingStaging(runner sys.Runner, root string) (*Staging, *[]mountRecord, *[]string) {
	staging := NewStaging(runner, root)
	mounts := &[]mountRecord{}
	unmounts := &[]string{}
	staging.mountFn = func(device, target, fsType string, _ []string, _ string) error {
		*mounts = append(*mounts, mountRecord{device, target, fsType})
		return nil
	}
	staging.unmountFn = func(target string, _, _, _ bool) error {
		*unmounts = append(*unmounts, target)
		return nil
	}
	return staging, mounts, unmounts
}

func TestStagingMountOrder(t *testing.T) {
	p := fullWipePlan(t, "")
	runner := sys.NewFakeRunner()
	staging, mounts, _ := recordingStaging(runner, "/tmp/staging")

	require.NoError(t, staging.Mount(context.Background(), p))

	// Parents before children, then the pseudo filesystems for chroot.
	expected := []mountRecord{
		{"/dev/sdd3", "/tmp/staging/root", "ext4"},
		{"/dev/sdd2", "/tmp/staging/root/boot/efi", "vfat"},
		{"/dev/sdd5", "/tmp/staging/root/opt/models", "ext4"},
		{"proc", "/tmp/staging/root/proc", "proc"},
		{"sysfs", "/tmp/staging/root/sys", "sysfs"},
		{"devtmpfs", "/tmp/staging/root/dev", "devtmpfs"},
		{"devpts", "/tmp/staging/root/dev/pts", "devpts"},
	}
	assert.Equal(t, expected, *mounts)

	// Swap is activated once everything is mounted.
	assert.Equal(t, []string{"swapon /dev/sdd4"}, runner.Commands)
}

func TestStagingMountRequiresRoot(t *testing.T) {
	p := dualUsePlan(t)
	staging, mounts, _ := recordingStaging(sys.NewFakeRunner(), "/tmp/staging")

	err := staging.Mount(context.Background(), p)
	require.Error(t, err)
	assert.Empty(t, *mounts)
}

func TestStagingUnmountReverseOrder(t *testing.T) {
	p := fullWipePlan(t, "")
	runner := sys.NewFakeRunner()
	staging, mounts, unmounts := recordingStaging(runner, "/tmp/staging")

	require.NoError(t, staging.Mount(context.Background(), p))
	require.NoError(t, staging.Unmount(context.Background()))

	require.Len(t, *unmounts, len(*mounts))
	for i, record := range *mounts {
		assert.Equal(t, record.target, (*unmounts)[len(*unmounts)-1-i])
	}
	assert.True(t, runner.RanCommand("swapoff /dev/sdd4"))

	// A second Unmount is a no-op.
	*unmounts = nil
	require.NoError(t, staging.Unmount(context.Background()))
	assert.Empty(t, *unmounts)
}

func TestStagingUnmountEscalatesToLazy(t *testing.T) {
	p := fullWipePlan(t, "")
	staging, _, _ := recordingStaging(sys.NewFakeRunner(), "/tmp/staging")
	require.NoError(t, staging.Mount(context.Background(), p))

	type attempt struct {
		target string
		detach bool
	}
	var attempts []attempt
	staging.unmountFn = func(target string, _, detach, _ bool) error {
		attempts = append(attempts, attempt{target, detach})
		if target == "/tmp/staging/root/opt/models" && !detach {
			return errors.New("busy")
		}
		return nil
	}

	require.NoError(t, staging.Unmount(context.Background()))

	var modelAttempts []attempt
	for _, a := range attempts {
		if a.target == "/tmp/staging/root/opt/models" {
			modelAttempts = append(modelAttempts, a)
		}
	}
	assert.Equal(t, []attempt{
		{"/tmp/staging/root/opt/models", false},
		{"/tmp/staging/root/opt/models", true},
	}, modelAttempts)
}

func TestStagingMountFailureCleansUp(t *testing.T) {
	p := fullWipePlan(t, "")
	staging, mounts, unmounts := recordingStaging(sys.NewFakeRunner(), "/tmp/staging")
	staging.mountFn = func(device, target, fsType string, _ []string, _ string) error {
		if target == "/tmp/staging/root/boot/efi" {
			return errors.New("no such device")
		}
		*mounts = append(*mounts, mountRecord{device, target, fsType})
		return nil
	}

	err := staging.Mount(context.Background(), p)
	require.Error(t, err)

	// The root mount that succeeded before the failure is torn down.
	assert.Equal(t, []string{"/tmp/staging/root"}, *unmounts)
}
