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

package partition

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weirdinghost/weirdingctl/pkg/device"
	"github.com/weirdinghost/weirdingctl/pkg/mount"
	"github.com/weirdinghost/weirdingctl/pkg/plan"
	"github.com/weirdinghost/weirdingctl/pkg/sys"
)

type fakeSnapshotter struct {
	backupErr    error
	restoreErr   error
	backupCalls  int
	restoreCalls int
	restoredWith string
}

func (f *fakeSnapshotter) Backup(context.Context, device.Device) (string, error) {
	f.backupCalls++
	if f.backupErr != nil {
		return "", f.backupErr
	}
	return "/backups/sdd_partition_backup_1700000000_abcd1234.sgdisk", nil
}

func (f *fakeSnapshotter) Restore(_ context.Context, _ device.Device, backupPath string) error {
	f.restoreCalls++
	f.restoredWith = backupPath
	return f.restoreErr
}

func testApplier(runner sys.Runner, store *fakeSnapshotter) *Applier {
	applier := NewApplier(runner, store)
	applier.settle = 0
	applier.probeMounts = func() ([]mount.Info, error) { return nil, nil }
	applier.unmount = func(string, bool, bool, bool) error { return nil }
	return applier
}

func TestApplyFullWipe(t *testing.T) {
	p := fullWipePlan(t, 128*gib)
	runner := sys.NewFakeRunner()
	store := &fakeSnapshotter{}

	result, err := testApplier(runner, store).Apply(context.Background(), p, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, store.backupCalls)
	assert.Zero(t, store.restoreCalls)
	assert.NotEmpty(t, p.BackupPath)
	assert.Equal(t, p.BackupPath, result.BackupPath)

	allocations, err := Layout(p)
	require.NoError(t, err)

	expected := []string{
		"sgdisk --zap-all /dev/sdd",
		"sgdisk --clear /dev/sdd",
	}
	for _, allocation := range allocations {
		spec := allocation.Spec
		expected = append(expected, fmt.Sprintf(
			"sgdisk --new=%v:%v:%v --typecode=%v:%v --change-name=%v:%v /dev/sdd",
			spec.Index, allocation.StartSector, allocation.EndSector,
			spec.Index, TypeCode(spec.Role), spec.Index, spec.Label))
		switch spec.Role {
		case plan.RoleBIOSBoot:
			expected = append(expected, fmt.Sprintf("sgdisk --attributes=%v:set:0 /dev/sdd", spec.Index))
		case plan.RoleEFISystem:
			expected = append(expected, fmt.Sprintf("sgdisk --attributes=%v:set:2 /dev/sdd", spec.Index))
		}
	}
	expected = append(expected,
		"partprobe /dev/sdd",
		"mkfs.fat -F 32 -n WEIRDING_EF /dev/sdd2", // FAT32 labels cap at 11 chars
		"mkfs.ext4 -F -L WEIRDING_ROOT /dev/sdd3",
		"mkswap -L WEIRDING_SWAP /dev/sdd4",
		"mkfs.ext4 -F -L WEIRDING_MODELS /dev/sdd5",
	)
	assert.Equal(t, expected, runner.Commands)
}

func TestApplyBackupFailureAbortsBeforeMutation(t *testing.T) {
	p := fullWipePlan(t, 128*gib)
	runner := sys.NewFakeRunner()
	store := &fakeSnapshotter{backupErr: errors.New("cannot open device")}

	result, err := testApplier(runner, store).Apply(context.Background(), p, nil)
	require.Error(t, err)
	assert.Empty(t, runner.Commands)
	assert.False(t, result.RollbackAttempted)
	assert.Empty(t, p.BackupPath)
}

func TestApplyTableWriteFailureRollsBack(t *testing.T) {
	p := fullWipePlan(t, 128*gib)
	runner := sys.NewFakeRunner()
	runner.AddResult("sgdisk --clear /dev/sdd", sys.FakeResult{Err: errors.New("write failed")})
	store := &fakeSnapshotter{}

	result, err := testApplier(runner, store).Apply(context.Background(), p, nil)
	require.Error(t, err)

	var tableErr *TableWriteError
	require.True(t, errors.As(err, &tableErr))
	assert.True(t, result.RollbackAttempted)
	assert.NoError(t, result.RollbackErr)
	assert.Equal(t, 1, store.restoreCalls)
	assert.Equal(t, result.BackupPath, store.restoredWith)
	assert.Contains(t, err.Error(), "restored to its pre-apply partition table")

	// Nothing past the failed stage ran.
	assert.False(t, runner.RanCommand("partprobe /dev/sdd"))
}

func TestApplyFormatFailureRollsBack(t *testing.T) {
	p := fullWipePlan(t, 128*gib)
	runner := sys.NewFakeRunner()
	runner.AddResult("mkfs.ext4 -F -L WEIRDING_ROOT /dev/sdd3", sys.FakeResult{Err: errors.New("mkfs failed")})
	store := &fakeSnapshotter{}

	result, err := testApplier(runner, store).Apply(context.Background(), p, nil)
	require.Error(t, err)

	var formatErr *FormatError
	require.True(t, errors.As(err, &formatErr))
	assert.Equal(t, "/dev/sdd3", formatErr.Partition)
	assert.True(t, result.RollbackAttempted)
	assert.NoError(t, result.RollbackErr)

	// Formats after the failing one were not attempted.
	assert.True(t, runner.RanCommand("mkfs.fat -F 32 -n WEIRDING_EF /dev/sdd2"))
	assert.False(t, runner.RanCommand("mkswap -L WEIRDING_SWAP /dev/sdd4"))
	assert.False(t, runner.RanCommand("mkfs.ext4 -F -L WEIRDING_MODELS /dev/sdd5"))
}

func TestApplyRollbackFailureIsSurfaced(t *testing.T) {
	p := fullWipePlan(t, 128*gib)
	runner := sys.NewFakeRunner()
	runner.AddResult("sgdisk --zap-all /dev/sdd", sys.FakeResult{Err: errors.New("io error")})
	store := &fakeSnapshotter{restoreErr: errors.New("restore failed")}

	result, err := testApplier(runner, store).Apply(context.Background(), p, nil)
	require.Error(t, err)
	assert.True(t, result.RollbackAttempted)
	require.Error(t, result.RollbackErr)

	// Both the original failure and the rollback failure surface.
	var tableErr *TableWriteError
	assert.True(t, errors.As(err, &tableErr))
	assert.Contains(t, err.Error(), "restore failed")
}

func TestApplyDualUse(t *testing.T) {
	dev := device.Device{
		Name: "sdd", Size: 128 * gib, Removable: true,
		Partitions: []device.Partition{
			{Index: 1, Name: "sdd1", Size: 64 * gib, FSType: "exfat", MountPoint: "/mnt/photos"},
		},
	}
	p, err := plan.New(dev, plan.ModeDualUse, "")
	require.NoError(t, err)
	created := p.CreateSpecs()[0]

	runner := sys.NewFakeRunner()
	store := &fakeSnapshotter{}
	_, err = testApplier(runner, store).Apply(context.Background(), p, nil)
	require.NoError(t, err)

	expected := []string{
		fmt.Sprintf("sgdisk --new=2:0:+%vM --typecode=2:8300 --change-name=2:WEIRDING_MODULE /dev/sdd", created.Size/mib),
		"partprobe /dev/sdd",
		"mkfs.ext4 -F -L WEIRDING_MODULE /dev/sdd2",
	}
	assert.Equal(t, expected, runner.Commands)

	// No table wipe in dual-use mode, ever.
	assert.False(t, runner.RanCommand("sgdisk --zap-all /dev/sdd"))
	assert.False(t, runner.RanCommand("sgdisk --clear /dev/sdd"))
}

func TestQuiesceEscalatesAndContinues(t *testing.T) {
	p := fullWipePlan(t, 128*gib)
	runner := sys.NewFakeRunner()
	store := &fakeSnapshotter{}
	applier := testApplier(runner, store)

	applier.probeMounts = func() ([]mount.Info, error) {
		return []mount.Info{
			{Source: "/dev/sdd1", MountPoint: "/mnt/a"},
			{Source: "/dev/sdd2", MountPoint: "/mnt/b"},
			{Source: "/dev/sda1", MountPoint: "/"},
		}, nil
	}

	type attempt struct {
		target        string
		force, detach bool
	}
	var attempts []attempt
	applier.unmount = func(target string, force, detach, _ bool) error {
		attempts = append(attempts, attempt{target, force, detach})
		if target == "/mnt/a" && !detach {
			return errors.New("busy")
		}
		if target == "/mnt/b" {
			return errors.New("busy")
		}
		return nil
	}

	result, err := applier.Apply(context.Background(), p, nil)
	require.NoError(t, err, "stuck mounts must not block apply")

	// /mnt/a: plain and forced fail, lazy succeeds. /mnt/b: all three
	// fail and get reported. The system disk is never touched.
	assert.Equal(t, []attempt{
		{"/mnt/a", false, false},
		{"/mnt/a", true, false},
		{"/mnt/a", true, true},
		{"/mnt/b", false, false},
		{"/mnt/b", true, false},
		{"/mnt/b", true, true},
	}, attempts)

	require.Error(t, result.QuiesceErr)
	var busyErr *DeviceBusyError
	assert.True(t, errors.As(result.QuiesceErr, &busyErr))
}

func TestProgressCallback(t *testing.T) {
	p := fullWipePlan(t, 128*gib)
	runner := sys.NewFakeRunner()
	store := &fakeSnapshotter{}

	var stages []Stage
	_, err := testApplier(runner, store).Apply(context.Background(), p,
		func(stage Stage, _ string) { stages = append(stages, stage) })
	require.NoError(t, err)

	assert.Equal(t, StageBackup, stages[0])
	assert.Equal(t, StageQuiesce, stages[1])
	assert.Contains(t, stages, StageTable)
	assert.Contains(t, stages, StageReread)
	assert.Contains(t, stages, StageFormat)
}
