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
	"os"

	"gopkg.in/freddierice/go-losetup.v1"
	"k8s.io/klog/v2"
)

// LoopDevice is a loop-backed scratch device. Whole-disk enumeration
// skips loop devices, so these are only reachable via ProbeByPath;
// they exist to exercise the partitioning pipeline without real
// hardware.
type LoopDevice struct {
	Path        string
	BackingFile string
	device      losetup.Device
}

// AttachLoopDevice creates a sparse backing file of the given size in
// dir and attaches it to a free loop device.
func AttachLoopDevice(dir string, size uint64) (*LoopDevice, error) {
	file, err := os.CreateTemp(dir, "weirding.loop.")
	if err != nil {
		return nil, err
	}
	file.Close()

	if err = os.Truncate(file.Name(), int64(size)); err != nil {
		os.Remove(file.Name())
		return nil, err
	}

	loopDevice, err := losetup.Attach(file.Name(), 0, false)
	if err != nil {
		os.Remove(file.Name())
		return nil, err
	}

	klog.V(3).InfoS("attached loop device", "path", loopDevice.Path(), "backingFile", file.Name())
	return &LoopDevice{
		Path:        loopDevice.Path(),
		BackingFile: file.Name(),
		device:      loopDevice,
	}, nil
}

// Detach detaches the loop device and removes its backing file.
func (l *LoopDevice) Detach() error {
	if err := l.device.Detach(); err != nil {
		return err
	}
	return os.Remove(l.BackingFile)
}
