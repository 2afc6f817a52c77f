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

package mount

import (
	"os"
	"strings"

	"k8s.io/klog/v2"
)

// Info describes one entry of /proc/1/mountinfo.
type Info struct {
	MajorMinor   string
	Source       string
	MountPoint   string
	MountOptions []string
	FSType       string
}

// Probe returns every mount known to PID 1.
func Probe() ([]Info, error) {
	return probe("/proc/1/mountinfo")
}

// ForDevice filters mounts down to those whose source is the given
// device or one of its partitions (by device path prefix).
func ForDevice(mounts []Info, devicePath string) []Info {
	var matched []Info
	for _, info := range mounts {
		if info.Source == devicePath || strings.HasPrefix(info.Source, devicePath) {
			matched = append(matched, info)
		}
	}
	return matched
}

// IsMounted reports whether target is a mount point.
func IsMounted(target string) (bool, error) {
	mounts, err := Probe()
	if err != nil {
		return false, err
	}
	for _, info := range mounts {
		if info.MountPoint == target {
			return true, nil
		}
	}
	return false, nil
}

// Mount mounts device to target, creating target if needed.
func Mount(device, target, fsType string, flags []string, superBlockFlags string) error {
	if err := os.MkdirAll(target, 0o755); err != nil {
		return err
	}
	klog.V(3).InfoS("mounting device", "device", device, "target", target, "fsType", fsType)
	return mount(device, target, fsType, flags, superBlockFlags)
}

// SafeMount mounts device only if target is not already a mount point.
func SafeMount(device, target, fsType string, flags []string, superBlockFlags string) error {
	mounted, err := IsMounted(target)
	if err != nil {
		return err
	}
	if mounted {
		klog.V(5).InfoS("target already mounted", "device", device, "target", target)
		return nil
	}
	return Mount(device, target, fsType, flags, superBlockFlags)
}

// Unmount unmounts target with force, detach and expire options.
func Unmount(target string, force, detach, expire bool) error {
	return unmount(target, force, detach, expire)
}

// SafeUnmount unmounts only if target is a mount point.
func SafeUnmount(target string, force, detach, expire bool) error {
	mounted, err := IsMounted(target)
	if err != nil {
		return err
	}
	if !mounted {
		klog.V(5).InfoS("target already unmounted", "target", target)
		return nil
	}
	return unmount(target, force, detach, expire)
}
