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

import "fmt"

// TableWriteError indicates a GPT creation, typecode or attribute
// command failed. The applier rolls the device back when it sees one.
type TableWriteError struct {
	Device string
	Err    error
}

func (e *TableWriteError) Error() string {
	return fmt.Sprintf("unable to write partition table of %v: %v", e.Device, e.Err)
}

func (e *TableWriteError) Unwrap() error { return e.Err }

// FormatError indicates a filesystem format failed after the table was
// written. The applier rolls the device back rather than leaving a
// half-formatted table behind.
type FormatError struct {
	Partition string
	Err       error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unable to format %v: %v", e.Partition, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// DeviceBusyError records a mount point that survived the forced and
// lazy unmount fallbacks during quiesce. Best-effort: the table rewrite
// invalidates stale mounts anyway, so this is reported, not fatal.
type DeviceBusyError struct {
	MountPoint string
	Err        error
}

func (e *DeviceBusyError) Error() string {
	return fmt.Sprintf("mount point %v could not be unmounted: %v", e.MountPoint, e.Err)
}

func (e *DeviceBusyError) Unwrap() error { return e.Err }
