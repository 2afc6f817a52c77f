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
	"fmt"

	"github.com/weirdinghost/weirdingctl/pkg/plan"
)

// firstUsableSector is where the first created partition starts: past
// the protective MBR, primary GPT and the 1 MiB alignment pad.
const firstUsableSector = 2048

// Allocation is a partition spec pinned to an exact sector range.
type Allocation struct {
	Spec        plan.PartitionSpec
	StartSector uint64
	EndSector   uint64 // inclusive
	SizeBytes   uint64 // actual allocated size after alignment/clamping
}

// SizeSectors returns the allocated sector count.
func (a Allocation) SizeSectors() uint64 {
	return a.EndSector - a.StartSector + 1
}

// Layout places every partition to create at an exact sector range,
// sequentially from the first usable sector. Sizes round up to the
// 1 MiB alignment grain, except the BIOS boot partition whose 2 MiB
// size is already grain-sized and must not grow: GRUB embeds core.img
// there by exact offset.
//
// The final allocation is clamped to the device's usable span and its
// byte size recomputed from the clamped sector count. The planner
// already budgets for alignment; this clamp is the applier's own
// defense against overhead accounting mistakes upstream.
func Layout(p *plan.Plan) ([]Allocation, error) {
	lastUsableSector := firstUsableSector + plan.UsableSectors(p.Device.Size) - 1

	var allocations []Allocation
	startSector := uint64(firstUsableSector)
	for _, spec := range p.CreateSpecs() {
		sizeSectors := (spec.Size + plan.SectorSize - 1) / plan.SectorSize
		if spec.Role != plan.RoleBIOSBoot {
			if rem := sizeSectors % plan.AlignmentSectors; rem != 0 {
				sizeSectors += plan.AlignmentSectors - rem
			}
		}

		endSector := startSector + sizeSectors - 1
		allocations = append(allocations, Allocation{
			Spec:        spec,
			StartSector: startSector,
			EndSector:   endSector,
			SizeBytes:   sizeSectors * plan.SectorSize,
		})
		startSector = endSector + 1
	}

	if len(allocations) == 0 {
		return nil, fmt.Errorf("plan for %v has no partitions to create", p.Device.Path())
	}

	last := &allocations[len(allocations)-1]
	if last.EndSector > lastUsableSector {
		if last.StartSector > lastUsableSector {
			return nil, fmt.Errorf("partition %v of %v starts at sector %v beyond usable span ending at %v",
				last.Spec.Index, p.Device.Path(), last.StartSector, lastUsableSector)
		}
		last.EndSector = lastUsableSector
		last.SizeBytes = last.SizeSectors() * plan.SectorSize
	}

	return allocations, nil
}

// TypeCode returns the sgdisk GPT type code for a partition role.
func TypeCode(role plan.Role) string {
	switch role {
	case plan.RoleBIOSBoot:
		return "EF02"
	case plan.RoleEFISystem:
		return "EF00"
	case plan.RoleSwap:
		return "8200"
	default:
		return "8300"
	}
}

// attributeBits maps flags to GPT attribute bits sgdisk understands.
// The esp flag carries no attribute: the EF00 type code is the ESP
// marker.
func attributeBits(flag plan.Flag) (int, bool) {
	switch flag {
	case plan.FlagBIOSGrub:
		return 0, true
	case plan.FlagBoot:
		return 2, true
	default:
		return 0, false
	}
}
