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
	"sort"
	"strings"

	"github.com/weirdinghost/weirdingctl/pkg/mount"
	"k8s.io/klog/v2"
)

// Probe scans /sys/block and returns a snapshot of every whole disk.
// Loop, ram and device-mapper devices are skipped.
func Probe() ([]Device, error) {
	names, err := readdirnames("/sys/block", true)
	if err != nil {
		return nil, err
	}

	mounts, err := mount.Probe()
	if err != nil {
		return nil, err
	}
	mountPointMap := map[string]string{}
	for _, info := range mounts {
		if _, found := mountPointMap[info.MajorMinor]; !found {
			mountPointMap[info.MajorMinor] = info.MountPoint
		}
	}

	var devices []Device
	for _, name := range names {
		if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") || strings.HasPrefix(name, "dm-") {
			continue
		}
		device, err := probeDevice(name, mountPointMap)
		if err != nil {
			klog.V(5).InfoS("unable to probe device", "name", name, "err", err)
			continue
		}
		if device.Hidden || device.Size == 0 {
			continue
		}
		devices = append(devices, device)
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices, nil
}

// ProbeByPath probes a single device given its /dev path.
func ProbeByPath(devPath string) (Device, error) {
	name := strings.TrimPrefix(devPath, "/dev/")
	if name == "" || strings.Contains(name, "/") {
		return Device{}, fmt.Errorf("invalid device path %v", devPath)
	}

	mounts, err := mount.Probe()
	if err != nil {
		return Device{}, err
	}
	mountPointMap := map[string]string{}
	for _, info := range mounts {
		if _, found := mountPointMap[info.MajorMinor]; !found {
			mountPointMap[info.MajorMinor] = info.MountPoint
		}
	}

	return probeDevice(name, mountPointMap)
}

func probeDevice(name string, mountPointMap map[string]string) (Device, error) {
	device := Device{Name: name}

	var err error
	if device.MajorMinor, err = getMajorMinor(name); err != nil {
		return device, err
	}

	device.Hidden = getHidden(name)
	if device.Removable, err = getRemovable(name); err != nil {
		return device, err
	}
	if device.ReadOnly, err = getReadOnly(name); err != nil {
		return device, err
	}
	if device.Size, err = getSize(name); err != nil {
		return device, err
	}

	if udevData, err := readRunUdevData(device.MajorMinor); err == nil {
		device.Model = udevData["ID_MODEL"]
		device.Vendor = udevData["ID_VENDOR"]
		device.Serial = udevData["ID_SERIAL_SHORT"]
		device.Connection = udevData["ID_BUS"]
	} else {
		klog.V(5).InfoS("unable to read udev data", "name", name, "err", err)
	}
	if device.Connection == "" && strings.HasPrefix(name, "nvme") {
		device.Connection = "nvme"
	}

	partitionNames, err := getPartitionNames(name)
	if err != nil {
		return device, err
	}
	for _, partitionName := range partitionNames {
		partition, err := probePartition(name, partitionName, mountPointMap)
		if err != nil {
			klog.V(5).InfoS("unable to probe partition", "name", partitionName, "err", err)
			continue
		}
		device.Partitions = append(device.Partitions, partition)
	}
	sort.Slice(device.Partitions, func(i, j int) bool {
		return device.Partitions[i].Index < device.Partitions[j].Index
	})

	return device, nil
}

func probePartition(disk, name string, mountPointMap map[string]string) (Partition, error) {
	partition := Partition{Name: name}

	var err error
	if partition.Index, err = getPartitionIndex(disk, name); err != nil {
		return partition, err
	}
	if partition.Size, err = getPartitionSize(disk, name); err != nil {
		return partition, err
	}

	majorMinor, err := getMajorMinor(name)
	if err != nil {
		return partition, err
	}
	partition.MountPoint = mountPointMap[majorMinor]

	if udevData, err := readRunUdevData(majorMinor); err == nil {
		partition.FSType = udevData["ID_FS_TYPE"]
		partition.Label = udevData["ID_FS_LABEL"]
	}

	return partition, nil
}
