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

// Package partition realizes a plan on a physical device: it snapshots
// the existing table, quiesces mounts, rewrites the GPT, and formats
// the created partitions, rolling back from the snapshot if anything
// past the point of no return fails.
package partition

import (
	"context"
	"fmt"
	"time"

	"github.com/weirdinghost/weirdingctl/pkg/device"
	"github.com/weirdinghost/weirdingctl/pkg/mount"
	"github.com/weirdinghost/weirdingctl/pkg/plan"
	"github.com/weirdinghost/weirdingctl/pkg/sys"
	"go.uber.org/multierr"
	"k8s.io/klog/v2"
)

// settleDelay is how long to wait after asking the kernel to re-read
// the partition table. A fixed delay, not a readiness poll; slow USB
// enumeration may need the subsequent format to retry on its own.
const settleDelay = 2 * time.Second

// Stage identifies one step of the apply pipeline.
type Stage string

const (
	StageBackup  Stage = "backup"
	StageQuiesce Stage = "quiesce"
	StageTable   Stage = "table"
	StageReread  Stage = "reread"
	StageFormat  Stage = "format"
)

// Progress receives a message per pipeline step. May be nil.
type Progress func(stage Stage, message string)

// Snapshotter captures and restores a device's partition table.
// *backup.Store is the production implementation.
type Snapshotter interface {
	Backup(ctx context.Context, dev device.Device) (string, error)
	Restore(ctx context.Context, dev device.Device, backupPath string) error
}

// Result reports what Apply did, independent of whether it failed.
type Result struct {
	BackupPath string

	// QuiesceErr aggregates best-effort unmount failures. Informational.
	QuiesceErr error

	// RollbackAttempted and RollbackErr describe the recovery outcome
	// after a failure. If RollbackAttempted is true and RollbackErr is
	// nil the device is back in its pre-apply state; if RollbackErr is
	// set the device needs manual recovery.
	RollbackAttempted bool
	RollbackErr       error
}

// Applier executes plans. The device is treated as exclusively owned
// for the duration of Apply; stages run strictly in order and there is
// no cancellation once table mutation begins.
type Applier struct {
	runner sys.Runner
	store  Snapshotter

	// Injection points for tests.
	settle      time.Duration
	probeMounts func() ([]mount.Info, error)
	unmount     func(target string, force, detach, expire bool) error
}

// NewApplier returns an Applier using the given runner and snapshot
// store.
func NewApplier(runner sys.Runner, store Snapshotter) *Applier {
	return &Applier{
		runner:      runner,
		store:       store,
		settle:      settleDelay,
		probeMounts: mount.Probe,
		unmount:     mount.Unmount,
	}
}

// Apply realizes the plan on the device. On failure after table
// mutation has begun, the device is restored from the snapshot taken
// at the start; the returned error carries the original failure and,
// if rollback also failed, the restore error. Apply is not safely
// re-callable after a failed rollback.
func (a *Applier) Apply(ctx context.Context, p *plan.Plan, progress Progress) (Result, error) {
	result := Result{}
	report := func(stage Stage, message string) {
		klog.V(3).InfoS("apply stage", "stage", stage, "device", p.Device.Path(), "message", message)
		if progress != nil {
			progress(stage, message)
		}
	}

	report(StageBackup, "Creating partition table backup...")
	backupPath, err := a.store.Backup(ctx, p.Device)
	if err != nil {
		return result, err
	}
	result.BackupPath = backupPath
	p.BackupPath = backupPath

	report(StageQuiesce, "Unmounting drive partitions...")
	result.QuiesceErr = a.quiesce(p.Device)

	report(StageTable, "Writing partition table...")
	if err := a.writeTable(ctx, p, report); err != nil {
		return a.rollback(ctx, p, result, err)
	}

	report(StageReread, "Updating kernel partition table...")
	if _, _, err := a.runner.Run(ctx, "partprobe", p.Device.Path()); err != nil {
		return a.rollback(ctx, p, result, &TableWriteError{Device: p.Device.Path(), Err: err})
	}
	time.Sleep(a.settle)

	for _, spec := range p.CreateSpecs() {
		if spec.Filesystem == plan.FSNone {
			continue
		}
		partitionPath := p.Device.PartitionPath(spec.Index)
		report(StageFormat, fmt.Sprintf("Formatting %v as %v", partitionPath, spec.Filesystem))
		if err := format(ctx, a.runner, partitionPath, spec.Filesystem, spec.Label); err != nil {
			return a.rollback(ctx, p, result, &FormatError{Partition: partitionPath, Err: err})
		}
	}

	klog.V(2).InfoS("partition plan applied", "device", p.Device.Path(), "mode", p.Mode, "backup", backupPath)
	return result, nil
}

// quiesce unmounts everything mounted from the device, escalating from
// a plain unmount to forced and then lazy. Failures are collected, not
// fatal: the table rewrite invalidates stale mounts regardless.
func (a *Applier) quiesce(dev device.Device) error {
	mounts, err := a.probeMounts()
	if err != nil {
		klog.ErrorS(err, "unable to probe mounts", "device", dev.Path())
		return err
	}

	var quiesceErr error
	for _, info := range mount.ForDevice(mounts, dev.Path()) {
		if err := a.unmount(info.MountPoint, false, false, false); err == nil {
			continue
		}
		if err := a.unmount(info.MountPoint, true, false, false); err == nil {
			klog.V(3).InfoS("forced unmount", "mountPoint", info.MountPoint)
			continue
		}
		err := a.unmount(info.MountPoint, true, true, false)
		if err == nil {
			klog.V(3).InfoS("lazy unmount", "mountPoint", info.MountPoint)
			continue
		}
		busyErr := &DeviceBusyError{MountPoint: info.MountPoint, Err: err}
		klog.ErrorS(busyErr, "unable to unmount; continuing", "device", dev.Path())
		quiesceErr = multierr.Append(quiesceErr, busyErr)
	}
	return quiesceErr
}

func (a *Applier) writeTable(ctx context.Context, p *plan.Plan, report func(Stage, string)) error {
	switch p.Mode {
	case plan.ModeFullWipe:
		return a.writeFullTable(ctx, p, report)
	case plan.ModeDualUse:
		return a.appendPartition(ctx, p, report)
	default:
		return &plan.InvalidModeError{Mode: string(p.Mode)}
	}
}

func (a *Applier) writeFullTable(ctx context.Context, p *plan.Plan, report func(Stage, string)) error {
	devPath := p.Device.Path()

	allocations, err := Layout(p)
	if err != nil {
		return &TableWriteError{Device: devPath, Err: err}
	}

	report(StageTable, "Creating new GPT partition table...")
	if _, _, err := a.runner.Run(ctx, "sgdisk", "--zap-all", devPath); err != nil {
		return &TableWriteError{Device: devPath, Err: err}
	}
	if _, _, err := a.runner.Run(ctx, "sgdisk", "--clear", devPath); err != nil {
		return &TableWriteError{Device: devPath, Err: err}
	}

	for _, allocation := range allocations {
		spec := allocation.Spec
		report(StageTable, fmt.Sprintf("Creating partition %v: %v", spec.Index, spec.Label))
		_, _, err := a.runner.Run(ctx, "sgdisk",
			fmt.Sprintf("--new=%v:%v:%v", spec.Index, allocation.StartSector, allocation.EndSector),
			fmt.Sprintf("--typecode=%v:%v", spec.Index, TypeCode(spec.Role)),
			fmt.Sprintf("--change-name=%v:%v", spec.Index, spec.Label),
			devPath,
		)
		if err != nil {
			return &TableWriteError{Device: devPath, Err: err}
		}
		if err := a.setAttributes(ctx, devPath, spec); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) appendPartition(ctx context.Context, p *plan.Plan, report func(Stage, string)) error {
	devPath := p.Device.Path()
	for _, spec := range p.CreateSpecs() {
		report(StageTable, fmt.Sprintf("Creating new partition: %v", spec.Label))
		_, _, err := a.runner.Run(ctx, "sgdisk",
			fmt.Sprintf("--new=%v:0:+%vM", spec.Index, spec.Size/(1024*1024)),
			fmt.Sprintf("--typecode=%v:%v", spec.Index, TypeCode(spec.Role)),
			fmt.Sprintf("--change-name=%v:%v", spec.Index, spec.Label),
			devPath,
		)
		if err != nil {
			return &TableWriteError{Device: devPath, Err: err}
		}
		if err := a.setAttributes(ctx, devPath, spec); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) setAttributes(ctx context.Context, devPath string, spec plan.PartitionSpec) error {
	for _, flag := range spec.Flags {
		bit, found := attributeBits(flag)
		if !found {
			continue
		}
		_, _, err := a.runner.Run(ctx, "sgdisk",
			fmt.Sprintf("--attributes=%v:set:%v", spec.Index, bit), devPath)
		if err != nil {
			return &TableWriteError{Device: devPath, Err: err}
		}
	}
	return nil
}

// rollback restores the pre-apply snapshot. The returned error always
// carries the original failure; if the restore failed too, both.
func (a *Applier) rollback(ctx context.Context, p *plan.Plan, result Result, cause error) (Result, error) {
	klog.ErrorS(cause, "apply failed; restoring partition table from backup",
		"device", p.Device.Path(), "backup", result.BackupPath)

	result.RollbackAttempted = true
	if err := a.store.Restore(ctx, p.Device, result.BackupPath); err != nil {
		result.RollbackErr = err
		return result, multierr.Append(cause, err)
	}
	return result, fmt.Errorf("%w (device restored to its pre-apply partition table)", cause)
}
