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
	"github.com/weirdinghost/weirdingctl/pkg/consts"
	"github.com/weirdinghost/weirdingctl/pkg/device"
	"k8s.io/klog/v2"
)

const (
	// SectorSize is the logical sector size all layout math assumes.
	SectorSize = 512

	// AlignmentSectors is the 1 MiB alignment grain for created
	// partitions.
	AlignmentSectors = 2048

	// primaryGPTSectors is reserved at the start of the disk for the
	// protective MBR, primary GPT header, partition entry array and
	// the 1 MiB alignment pad. backupGPTSectors is reserved at the end
	// for the secondary GPT. Sizing against raw capacity instead of
	// capacity minus this overhead is the bug class this package
	// exists to prevent.
	primaryGPTSectors = 2048
	backupGPTSectors  = 33

	mib = uint64(1024 * 1024)
	gib = uint64(1024 * 1024 * 1024)

	biosBootSize       = 2 * mib
	efiSize            = 512 * mib
	rootSize           = 20 * gib
	rootSizeSmall      = 10 * gib
	rootSizeFallback   = 8 * gib
	rootSmallThreshold = 64 * gib
	swapMax            = 4 * gib
	swapDivisor        = 32

	// alignmentBuffer is headroom left unallocated so the applier's
	// per-partition round-up to the alignment grain cannot push the
	// last partition past the usable span.
	alignmentBuffer = 10 * mib

	dataFloor = 5 * gib

	dualUseMin    = 25 * gib
	dualUseMax    = 50 * gib
	dualUseSafety = 1 * gib

	// maxLabelLength is the widest label safe across ext4, FAT32,
	// exFAT and NTFS.
	maxLabelLength = 11
)

// UsableSectors returns the number of 512-byte sectors actually
// allocatable on a GPT disk of the given raw byte capacity.
func UsableSectors(totalBytes uint64) uint64 {
	sectors := totalBytes / SectorSize
	if sectors <= primaryGPTSectors+backupGPTSectors {
		return 0
	}
	return sectors - primaryGPTSectors - backupGPTSectors
}

// UsableBytes returns UsableSectors expressed in bytes. Every sizing
// decision in this package operates on this value, never on the raw
// device capacity.
func UsableBytes(totalBytes uint64) uint64 {
	return UsableSectors(totalBytes) * SectorSize
}

// SanitizeLabel reduces a module name to a filesystem-label-safe token:
// anything outside [A-Za-z0-9_-] becomes an underscore and the result
// is truncated to 11 characters. Sanitizing an already safe string of
// that length returns it unchanged.
func SanitizeLabel(name string) string {
	sanitized := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
			sanitized = append(sanitized, c)
		default:
			sanitized = append(sanitized, '_')
		}
	}
	if len(sanitized) > maxLabelLength {
		sanitized = sanitized[:maxLabelLength]
	}
	return string(sanitized)
}

// New computes a partition plan for the device in the given mode. The
// optional module name feeds partition labels. Planning is pure
// computation with no side effects; it is safe to retry with different
// inputs.
func New(dev device.Device, mode Mode, moduleName string) (*Plan, error) {
	labelPrefix := SanitizeLabel(moduleName)
	if labelPrefix == "" {
		labelPrefix = consts.DefaultLabelPrefix
	}

	var partitions []PartitionSpec
	var err error
	switch mode {
	case ModeFullWipe:
		partitions, err = fullWipeLayout(dev, labelPrefix)
	case ModeDualUse:
		partitions, err = dualUseLayout(dev, labelPrefix)
	default:
		return nil, &InvalidModeError{Mode: string(mode)}
	}
	if err != nil {
		return nil, err
	}

	p := &Plan{
		Device:     dev,
		Mode:       mode,
		Partitions: partitions,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	klog.V(4).InfoS("computed partition plan",
		"device", dev.Path(), "mode", mode, "partitions", len(partitions),
		"usableBytes", UsableBytes(dev.Size), "createBytes", p.CreateSize())
	return p, nil
}

func fullWipeLayout(dev device.Device, labelPrefix string) ([]PartitionSpec, error) {
	usable := UsableBytes(dev.Size)

	root := rootSize
	if usable < rootSmallThreshold {
		root = rootSizeSmall
	}
	swap := swapMax
	if bySize := usable / swapDivisor; bySize < swap {
		swap = bySize
	}
	swap -= swap % SectorSize

	fixed := biosBootSize + efiSize + swap + alignmentBuffer
	data, ok := remaining(usable, fixed+root)
	if !ok || data < dataFloor {
		// One deterministic retry with a smaller root before giving
		// up on the device.
		root = rootSizeFallback
		data, ok = remaining(usable, fixed+root)
		if !ok || data < dataFloor {
			return nil, &CapacityError{
				Device: dev.Path(),
				Usable: usable,
				Needed: fixed + root + dataFloor,
			}
		}
	}
	data -= data % SectorSize

	return []PartitionSpec{
		{
			Index:      1,
			Role:       RoleBIOSBoot,
			Filesystem: FSNone,
			Size:       biosBootSize,
			Label:      labelPrefix + "_BIOS",
			Flags:      []Flag{FlagBIOSGrub},
			Action:     ActionCreate,
		},
		{
			Index:      2,
			Role:       RoleEFISystem,
			Filesystem: FSFat32,
			Size:       efiSize,
			Label:      labelPrefix + "_EFI",
			MountPoint: consts.EFIMountPoint,
			Flags:      []Flag{FlagBoot, FlagESP},
			Action:     ActionCreate,
		},
		{
			Index:      3,
			Role:       RoleRoot,
			Filesystem: FSExt4,
			Size:       root,
			Label:      labelPrefix + "_ROOT",
			MountPoint: "/",
			Action:     ActionCreate,
		},
		{
			Index:      4,
			Role:       RoleSwap,
			Filesystem: FSLinuxSwap,
			Size:       swap,
			Label:      labelPrefix + "_SWAP",
			MountPoint: "swap",
			Action:     ActionCreate,
		},
		{
			Index:      5,
			Role:       RoleData,
			Filesystem: FSExt4,
			Size:       data,
			Label:      labelPrefix + "_MODELS",
			MountPoint: consts.ModelsMountPoint,
			Action:     ActionCreate,
		},
	}, nil
}

func dualUseLayout(dev device.Device, labelPrefix string) ([]PartitionSpec, error) {
	available, ok := DualUseCapacity(dev)
	if !ok {
		return nil, &InsufficientSpaceError{
			Device:    dev.Path(),
			Available: available,
			Needed:    dualUseMin + dualUseSafety,
		}
	}

	size := available - dualUseSafety
	if size > dualUseMax {
		size = dualUseMax
	}
	if size < dualUseMin {
		size = dualUseMin
	}
	size -= size % SectorSize

	var partitions []PartitionSpec
	maxIndex := 0
	for _, existing := range dev.Partitions {
		if existing.Index > maxIndex {
			maxIndex = existing.Index
		}
		partitions = append(partitions, PartitionSpec{
			Index:      existing.Index,
			Role:       RoleData,
			Filesystem: Filesystem(existing.FSType),
			Size:       existing.Size,
			Label:      existing.Label,
			MountPoint: existing.MountPoint,
			Action:     ActionPreserve,
		})
	}

	label := labelPrefix + "_WEIRDING"
	if labelPrefix == consts.DefaultLabelPrefix {
		label = consts.DefaultLabelPrefix + "_MODULE"
	}

	partitions = append(partitions, PartitionSpec{
		Index:      maxIndex + 1,
		Role:       RoleData,
		Filesystem: FSExt4,
		Size:       size,
		Label:      label,
		MountPoint: consts.DualUseMountPoint,
		Action:     ActionCreate,
	})
	return partitions, nil
}

// DualUseCapacity returns the unallocated usable bytes on the device
// and whether dual-use mode is feasible. The CLI uses the same
// predicate to decide whether to offer the mode at all.
func DualUseCapacity(dev device.Device) (uint64, bool) {
	var used uint64
	for _, existing := range dev.Partitions {
		used += existing.Size
	}
	available, ok := remaining(UsableBytes(dev.Size), used)
	if !ok {
		return 0, false
	}
	return available, available >= dualUseMin+dualUseSafety
}

func remaining(total, used uint64) (uint64, bool) {
	if used > total {
		return 0, false
	}
	return total - used, true
}
