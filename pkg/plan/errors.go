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

	"github.com/weirdinghost/weirdingctl/pkg/utils"
)

// CapacityError indicates the device is below the minimum viable size
// for the requested mode. Not retryable without a different device or
// mode.
type CapacityError struct {
	Device string
	Usable uint64
	Needed uint64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("device %v too small: %v usable, at least %v needed",
		e.Device, utils.IBytes(e.Usable), utils.IBytes(e.Needed))
}

// InsufficientSpaceError indicates a dual-use plan lacks the minimum
// free space threshold. Callers are expected to pre-filter the mode
// with CanDualUse before offering it.
type InsufficientSpaceError struct {
	Device    string
	Available uint64
	Needed    uint64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("device %v has %v unallocated, dual-use needs at least %v",
		e.Device, utils.IBytes(e.Available), utils.IBytes(e.Needed))
}

// InvalidModeError indicates an unrecognized provisioning mode. This is
// a programming error in the caller.
type InvalidModeError struct {
	Mode string
}

func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("unknown setup mode %q", e.Mode)
}
