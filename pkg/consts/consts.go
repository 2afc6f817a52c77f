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

package consts

const (
	// AppName denotes application/tool name.
	AppName = "weirdingctl"

	// AppPrettyName denotes application pretty name.
	AppPrettyName = "Weirding Host"

	// AppCapsName denotes application name in capital letters.
	AppCapsName = "WEIRDING"

	// DefaultLabelPrefix is the filesystem label prefix used when no
	// module name is supplied.
	DefaultLabelPrefix = AppCapsName

	// BackupDirName is the partition table backup directory under the
	// invoking user's home directory.
	BackupDirName = ".weirding_backups"

	// ModelsMountPoint is where the data partition carrying model
	// weights is mounted on a full-wipe module.
	ModelsMountPoint = "/opt/models"

	// DualUseMountPoint is where the single added partition is mounted
	// on a dual-use module.
	DualUseMountPoint = "/opt/weirding"

	// EFIMountPoint is the EFI system partition mount point.
	EFIMountPoint = "/boot/efi"
)
