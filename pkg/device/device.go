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

package device

import (
	"fmt"
	"path"
	"strings"
)

// Partition is one existing partition of a probed device.
type Partition struct {
	Index      int    `json:"index"`
	Name       string `json:"name"` // e.g. sdd1
	Size       uint64 `json:"size"` // bytes
	FSType     string `json:"fsType,omitempty"`
	Label      string `json:"label,omitempty"`
	MountPoint string `json:"mountPoint,omitempty"`
}

// Path returns the /dev notation of the partition.
func (p Partition) Path() string {
	return path.Join("/dev", p.Name)
}

// Device is a block device snapshot. It is read-only input to the
// planner; nothing in this repository mutates it after probing.
type Device struct {
	Name       string `json:"name"` // e.g. sdd
	MajorMinor string `json:"majorMinor"`

	// Populated from /sys
	Size      uint64 `json:"size"` // bytes
	Hidden    bool   `json:"hidden"`
	Removable bool   `json:"removable"`
	ReadOnly  bool   `json:"readOnly"`

	// Populated from /run/udev/data/b<Major>:<Minor>
	Model      string `json:"model,omitempty"`
	Vendor     string `json:"vendor,omitempty"`
	Serial     string `json:"serial,omitempty"`
	Connection string `json:"connection,omitempty"` // usb, ata, nvme, ...

	// Populated from /sys/block/<name>/<name>N and /proc/1/mountinfo
	Partitions []Partition `json:"partitions,omitempty"`
}

// Path returns the /dev notation of the device.
func (d Device) Path() string {
	return path.Join("/dev", d.Name)
}

// PartitionPath returns the /dev notation of the numbered partition,
// inserting the "p" separator for nvme/mmc style device names.
func (d Device) PartitionPath(index int) string {
	if len(d.Name) > 0 && d.Name[len(d.Name)-1] >= '0' && d.Name[len(d.Name)-1] <= '9' {
		return fmt.Sprintf("%vp%v", d.Path(), index)
	}
	return fmt.Sprintf("%v%v", d.Path(), index)
}

// IsExternal reports whether the device looks like an external drive,
// i.e. removable or attached over USB.
func (d Device) IsExternal() bool {
	return d.Removable || strings.EqualFold(d.Connection, "usb")
}

// Make returns human readable make information.
func (d Device) Make() string {
	var tokens []string
	if d.Vendor != "" {
		tokens = append(tokens, d.Vendor)
	}
	if d.Model != "" {
		tokens = append(tokens, d.Model)
	}
	if len(tokens) == 0 {
		return "Unknown"
	}
	return strings.Join(tokens, " ")
}

// Mounted reports whether any partition of the device is mounted.
func (d Device) Mounted() bool {
	for _, partition := range d.Partitions {
		if partition.MountPoint != "" {
			return true
		}
	}
	return false
}
