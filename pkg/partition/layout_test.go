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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weirdinghost/weirdingctl/pkg/device"
	"github.com/weirdinghost/weirdingctl/pkg/plan"
)

const (
	mib = uint64(1024 * 1024)
	gib = uint64(1024 * 1024 * 1024)
)

func fullWipePlan(t *testing.T, size uint64) *plan.Plan {
	t.Helper()
	p, err := plan.New(device.Device{Name: "sdd", Size: size, Removable: true}, plan.ModeFullWipe, "")
	require.NoError(t, err)
	return p
}

func TestLayoutSequentialPlacement(t *testing.T) {
	p := fullWipePlan(t, 128*gib)
	allocations, err := Layout(p)
	require.NoError(t, err)
	require.Len(t, allocations, 5)

	assert.Equal(t, uint64(2048), allocations[0].StartSector)
	for i := 1; i < len(allocations); i++ {
		require.Equalf(t, allocations[i-1].EndSector+1, allocations[i].StartSector,
			"partition %v must start right after its predecessor", allocations[i].Spec.Index)
	}
}

func TestLayoutAlignment(t *testing.T) {
	p := fullWipePlan(t, 128*gib)
	allocations, err := Layout(p)
	require.NoError(t, err)

	for _, allocation := range allocations {
		if allocation.Spec.Role == plan.RoleBIOSBoot {
			// Exempt from grain rounding: exactly 2 MiB.
			assert.Equal(t, uint64(4096), allocation.SizeSectors())
			continue
		}
		assert.Zerof(t, allocation.SizeSectors()%plan.AlignmentSectors,
			"partition %v sector count %v not aligned", allocation.Spec.Index, allocation.SizeSectors())
	}
}

func TestLayoutFitsUsableSpan(t *testing.T) {
	for _, size := range []uint64{16 * gib, 40 * gib, 128 * gib, 1024 * gib} {
		p := fullWipePlan(t, size)
		allocations, err := Layout(p)
		require.NoError(t, err)

		lastUsable := uint64(2048) + plan.UsableSectors(size) - 1
		last := allocations[len(allocations)-1]
		require.LessOrEqualf(t, last.EndSector, lastUsable, "size %v", size)
	}
}

func TestLayoutClampsLastPartition(t *testing.T) {
	// Hand-build a plan that over-allocates: the applier must clamp
	// rather than trust the planner.
	dev := device.Device{Name: "sdd", Size: 10 * gib}
	usable := plan.UsableBytes(dev.Size)
	p := &plan.Plan{
		Device: dev,
		Mode:   plan.ModeFullWipe,
		Partitions: []plan.PartitionSpec{
			{Index: 1, Role: plan.RoleRoot, Filesystem: plan.FSExt4, Size: usable / 2, Action: plan.ActionCreate},
			{Index: 2, Role: plan.RoleData, Filesystem: plan.FSExt4, Size: usable, Action: plan.ActionCreate},
		},
	}

	allocations, err := Layout(p)
	require.NoError(t, err)

	lastUsable := uint64(2048) + plan.UsableSectors(dev.Size) - 1
	last := allocations[1]
	assert.Equal(t, lastUsable, last.EndSector)
	assert.Less(t, last.SizeBytes, usable)
	assert.Equal(t, last.SizeSectors()*plan.SectorSize, last.SizeBytes)
}

func TestLayoutRejectsStartBeyondUsable(t *testing.T) {
	dev := device.Device{Name: "sdd", Size: 1 * gib}
	p := &plan.Plan{
		Device: dev,
		Mode:   plan.ModeFullWipe,
		Partitions: []plan.PartitionSpec{
			{Index: 1, Role: plan.RoleRoot, Filesystem: plan.FSExt4, Size: 2 * gib, Action: plan.ActionCreate},
			{Index: 2, Role: plan.RoleData, Filesystem: plan.FSExt4, Size: 1 * gib, Action: plan.ActionCreate},
		},
	}
	_, err := Layout(p)
	require.Error(t, err)
}

func TestTypeCodes(t *testing.T) {
	assert.Equal(t, "EF02", TypeCode(plan.RoleBIOSBoot))
	assert.Equal(t, "EF00", TypeCode(plan.RoleEFISystem))
	assert.Equal(t, "8300", TypeCode(plan.RoleRoot))
	assert.Equal(t, "8200", TypeCode(plan.RoleSwap))
	assert.Equal(t, "8300", TypeCode(plan.RoleData))
}

func TestAttributeBits(t *testing.T) {
	bit, found := attributeBits(plan.FlagBIOSGrub)
	require.True(t, found)
	assert.Equal(t, 0, bit)

	bit, found = attributeBits(plan.FlagBoot)
	require.True(t, found)
	assert.Equal(t, 2, bit)

	_, found = attributeBits(plan.FlagESP)
	assert.False(t, found)
}
