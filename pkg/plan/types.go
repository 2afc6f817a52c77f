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

package plan

import (
	"fmt"

	"github.com/weirdinghost/weirdingctl/pkg/device"
)

// Mode selects how the target device is provisioned.
type Mode string

const (
	// ModeFullWipe discards everything and partitions the whole device.
	ModeFullWipe Mode = "full_wipe"

	// ModeDualUse preserves existing partitions and appends one data
	// partition in the remaining free space.
	ModeDualUse Mode = "dual_use"
)

// Role is the functional category of a planned partition.
type Role string

const (
	RoleBIOSBoot  Role = "bios_boot"
	RoleEFISystem Role = "efi_system"
	RoleRoot      Role = "root"
	RoleSwap      Role = "swap"
	RoleData      Role = "data"
)

// Filesystem is the target filesystem of a planned partition. Preserved
// partitions carry whatever the device probe reported.
type Filesystem string

const (
	FSNone      Filesystem = "none"
	FSFat32     Filesystem = "fat32"
	FSExt4      Filesystem = "ext4"
	FSLinuxSwap Filesystem = "linux-swap"
)

// Flag is a GPT attribute governing boot behavior.
type Flag string

const (
	FlagBoot     Flag = "boot"
	FlagESP      Flag = "esp"
	FlagBIOSGrub Flag = "bios_grub"
)

// Action distinguishes partitions the applier creates from partitions
// it must leave untouched.
type Action string

const (
	ActionCreate   Action = "create"
	ActionPreserve Action = "preserve"
)

// PartitionSpec is one planned partition.
type PartitionSpec struct {
	Index      int        `json:"index"`
	Role       Role       `json:"role"`
	Filesystem Filesystem `json:"filesystem"`
	Size       uint64     `json:"size"` // bytes
	Label      string     `json:"label,omitempty"`
	MountPoint string     `json:"mountPoint,omitempty"`
	Flags      []Flag     `json:"flags,omitempty"`
	Action     Action     `json:"action"`
}

// Plan is the complete, validated partition layout for a device. It is
// the only shape downstream provisioners consume.
type Plan struct {
	Device     device.Device   `json:"device"`
	Mode       Mode            `json:"mode"`
	Partitions []PartitionSpec `json:"partitions"`

	// BackupPath refers to the partition table snapshot taken
	// immediately before the device was mutated. Set once apply has
	// begun.
	BackupPath string `json:"backupPath,omitempty"`
}

// Root returns the root partition spec, or nil for dual-use plans.
func (p *Plan) Root() *PartitionSpec {
	for i := range p.Partitions {
		if p.Partitions[i].Role == RoleRoot {
			return &p.Partitions[i]
		}
	}
	return nil
}

// CreateSpecs returns the partitions the applier will create, in index
// order.
func (p *Plan) CreateSpecs() []PartitionSpec {
	var specs []PartitionSpec
	for _, spec := range p.Partitions {
		if spec.Action == ActionCreate {
			specs = append(specs, spec)
		}
	}
	return specs
}

// CreateSize returns the summed byte size of all partitions to create.
func (p *Plan) CreateSize() uint64 {
	var total uint64
	for _, spec := range p.CreateSpecs() {
		total += spec.Size
	}
	return total
}

// MountMap maps mount points to partition device paths for every
// mountable planned partition. Downstream installers mount strictly
// according to this map.
func (p *Plan) MountMap() map[string]string {
	mountMap := map[string]string{}
	for _, spec := range p.Partitions {
		if spec.MountPoint == "" || spec.MountPoint == "swap" {
			continue
		}
		mountMap[spec.MountPoint] = p.Device.PartitionPath(spec.Index)
	}
	return mountMap
}

// Validate checks the plan's internal consistency. A failure here is a
// planner bug, not a user error.
func (p *Plan) Validate() error {
	switch p.Mode {
	case ModeFullWipe, ModeDualUse:
	default:
		return &InvalidModeError{Mode: string(p.Mode)}
	}

	if len(p.Partitions) == 0 {
		return fmt.Errorf("internal error: plan has no partitions")
	}

	var createCount, rootCount int
	seenIndices := map[int]bool{}
	for _, spec := range p.Partitions {
		if spec.Index < 1 {
			return fmt.Errorf("internal error: partition index %v below 1", spec.Index)
		}
		if seenIndices[spec.Index] {
			return fmt.Errorf("internal error: duplicate partition index %v", spec.Index)
		}
		seenIndices[spec.Index] = true

		switch spec.Action {
		case ActionCreate:
			createCount++
			if spec.Size%SectorSize != 0 {
				return fmt.Errorf("internal error: partition %v size %v not a multiple of %v", spec.Index, spec.Size, SectorSize)
			}
			switch spec.Filesystem {
			case FSNone:
				if spec.Role != RoleBIOSBoot {
					return fmt.Errorf("internal error: partition %v role %v cannot be unformatted", spec.Index, spec.Role)
				}
			case FSFat32, FSExt4, FSLinuxSwap:
			default:
				return fmt.Errorf("internal error: partition %v has unknown filesystem %v", spec.Index, spec.Filesystem)
			}
		case ActionPreserve:
			if p.Mode == ModeFullWipe {
				return fmt.Errorf("internal error: full-wipe plan preserves partition %v", spec.Index)
			}
		default:
			return fmt.Errorf("internal error: partition %v has unknown action %v", spec.Index, spec.Action)
		}

		if spec.Role == RoleRoot {
			rootCount++
		}
	}

	switch p.Mode {
	case ModeFullWipe:
		if rootCount != 1 {
			return fmt.Errorf("internal error: full-wipe plan has %v root partitions", rootCount)
		}
		// Created partitions must be contiguous starting at 1.
		for i := range p.Partitions {
			if p.Partitions[i].Index != i+1 {
				return fmt.Errorf("internal error: partition indices not contiguous at position %v", i)
			}
		}
	case ModeDualUse:
		if createCount != 1 {
			return fmt.Errorf("internal error: dual-use plan creates %v partitions", createCount)
		}
	}

	if usable := UsableBytes(p.Device.Size); p.CreateSize() > usable {
		return fmt.Errorf("internal error: planned %v bytes exceed usable %v bytes", p.CreateSize(), usable)
	}

	return nil
}
