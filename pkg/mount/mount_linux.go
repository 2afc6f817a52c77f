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
	"fmt"

	"golang.org/x/sys/unix"
	"k8s.io/klog/v2"
)

var mountFlagMap = map[string]uintptr{
	"remount":    unix.MS_REMOUNT,
	"bind":       unix.MS_BIND,
	"recursive":  unix.MS_REC,
	"noatime":    unix.MS_NOATIME,
	"nodev":      unix.MS_NODEV,
	"noexec":     unix.MS_NOEXEC,
	"nosuid":     unix.MS_NOSUID,
	"ro":         unix.MS_RDONLY,
	"relatime":   unix.MS_RELATIME,
	"silent":     unix.MS_SILENT,
	"sync":       unix.MS_SYNCHRONOUS,
	"dirsync":    unix.MS_DIRSYNC,
	"private":    unix.MS_PRIVATE,
	"slave":      unix.MS_SLAVE,
	"shared":     unix.MS_SHARED,
	"unbindable": unix.MS_UNBINDABLE,
}

func mount(device, target, fsType string, flags []string, superBlockFlags string) error {
	mountFlags := uintptr(0)
	for _, flag := range flags {
		value, found := mountFlagMap[flag]
		if !found {
			return fmt.Errorf("unknown mount flag %v", flag)
		}
		mountFlags |= value
	}
	return unix.Mount(device, target, fsType, mountFlags, superBlockFlags)
}

func unmount(target string, force, detach, expire bool) error {
	flags := 0
	if force {
		flags |= unix.MNT_FORCE
	}
	if detach {
		flags |= unix.MNT_DETACH
	}
	if expire {
		flags |= unix.MNT_EXPIRE
	}
	klog.V(5).InfoS("unmounting mount point", "target", target, "force", force, "detach", detach, "expire", expire)
	return unix.Unmount(target, flags)
}
