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

// Package installer provisions an applied plan into a bootable system:
// it stages the planned filesystems under a scratch root, populates
// them with a base image, installs the bootloader and layers the AI
// serving stack on top. Everything here consumes the plan verbatim and
// drives external tools through a Runner; no partition math happens
// past this point.
package installer

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/weirdinghost/weirdingctl/pkg/mount"
	"github.com/weirdinghost/weirdingctl/pkg/plan"
	"github.com/weirdinghost/weirdingctl/pkg/sys"
	"k8s.io/klog/v2"
)

// DefaultStagingRoot is where the target system is assembled.
const DefaultStagingRoot = "/tmp/weirding_install"

// Progress receives human-readable provisioning updates. May be nil.
type Progress func(message string)

// pseudoFilesystems are mounted inside the staging root before any
// chroot work, in this order.
var pseudoFilesystems = []struct {
	fsType string
	source string
	target string
}{
	{"proc", "proc", "proc"},
	{"sysfs", "sysfs", "sys"},
	{"devtmpfs", "devtmpfs", "dev"},
	{"devpts", "devpts", "dev/pts"},
}

// Staging mounts a plan's filesystems under a scratch root and tears
// them down again in reverse order.
type Staging struct {
	runner sys.Runner
	root   string

	// mounted tracks mount targets in mount order.
	mounted    []string
	swapDevice string

	// Injection points for tests.
	mountFn   func(device, target, fsType string, flags []string, superBlockFlags string) error
	unmountFn func(target string, force, detach, expire bool) error
}

// NewStaging returns a staging area rooted at root. Mount and unmount
// go through the mount-point-checked variants so a retried Mount after
// a partial failure never stacks duplicate mounts.
func NewStaging(runner sys.Runner, root string) *Staging {
	return &Staging{
		runner:    runner,
		root:      root,
		mountFn:   mount.SafeMount,
		unmountFn: mount.SafeUnmount,
	}
}

// RootDir returns the directory the target system is assembled in.
func (s *Staging) RootDir() string {
	return path.Join(s.root, "root")
}

// Dir returns the staging area's base directory.
func (s *Staging) Dir() string {
	return s.root
}

// Mount mounts every mountable partition of the plan under the staging
// root, parents before children, then the pseudo filesystems chroot
// work depends on.
func (s *Staging) Mount(ctx context.Context, p *plan.Plan) error {
	mountMap := p.MountMap()
	if _, found := mountMap["/"]; !found {
		return fmt.Errorf("plan for %v has no root mount point", p.Device.Path())
	}

	mountPoints := make([]string, 0, len(mountMap))
	for mountPoint := range mountMap {
		mountPoints = append(mountPoints, mountPoint)
	}
	sort.Slice(mountPoints, func(i, j int) bool {
		di, dj := strings.Count(mountPoints[i], "/"), strings.Count(mountPoints[j], "/")
		if di != dj {
			return di < dj
		}
		return mountPoints[i] < mountPoints[j]
	})

	for _, mountPoint := range mountPoints {
		devicePath := mountMap[mountPoint]
		target := path.Join(s.RootDir(), mountPoint)
		fsType := kernelFSType(p, mountPoint)
		klog.V(3).InfoS("staging mount", "device", devicePath, "target", target, "fsType", fsType)
		if err := s.mountFn(devicePath, target, fsType, nil, ""); err != nil {
			unmountErr := s.Unmount(ctx)
			if unmountErr != nil {
				klog.ErrorS(unmountErr, "unable to clean up staging mounts", "target", target)
			}
			return fmt.Errorf("unable to mount %v on %v; %w", devicePath, target, err)
		}
		s.mounted = append(s.mounted, target)
	}

	for _, pseudo := range pseudoFilesystems {
		target := path.Join(s.RootDir(), pseudo.target)
		if err := s.mountFn(pseudo.source, target, pseudo.fsType, nil, ""); err != nil {
			unmountErr := s.Unmount(ctx)
			if unmountErr != nil {
				klog.ErrorS(unmountErr, "unable to clean up staging mounts", "target", target)
			}
			return fmt.Errorf("unable to mount %v on %v; %w", pseudo.fsType, target, err)
		}
		s.mounted = append(s.mounted, target)
	}

	return s.enableSwap(ctx, p)
}

// Unmount tears the staging area down in reverse mount order. A failed
// plain unmount escalates to a lazy one; only that failing is an error.
func (s *Staging) Unmount(ctx context.Context) error {
	if s.swapDevice != "" {
		if _, _, err := s.runner.Run(ctx, "swapoff", s.swapDevice); err != nil {
			klog.V(3).InfoS("swapoff failed; continuing", "device", s.swapDevice, "err", err)
		}
		s.swapDevice = ""
	}

	var firstErr error
	for i := len(s.mounted) - 1; i >= 0; i-- {
		target := s.mounted[i]
		if err := s.unmountFn(target, false, false, false); err == nil {
			continue
		}
		if err := s.unmountFn(target, false, true, false); err != nil {
			klog.ErrorS(err, "unable to unmount staging target", "target", target)
			if firstErr == nil {
				firstErr = fmt.Errorf("unable to unmount %v; %w", target, err)
			}
		}
	}
	s.mounted = nil
	return firstErr
}

// enableSwap activates the plan's swap partition, if any. Swap is a
// convenience for heavy provisioning steps, not a requirement.
func (s *Staging) enableSwap(ctx context.Context, p *plan.Plan) error {
	for _, spec := range p.CreateSpecs() {
		if spec.Role != plan.RoleSwap {
			continue
		}
		devicePath := p.Device.PartitionPath(spec.Index)
		if _, _, err := s.runner.Run(ctx, "swapon", devicePath); err != nil {
			klog.V(3).InfoS("swapon failed; continuing", "device", devicePath, "err", err)
			return nil
		}
		s.swapDevice = devicePath
	}
	return nil
}

// kernelFSType maps a mount point's planned filesystem to the fstype
// the kernel mount call expects. Preserved partitions already carry a
// kernel name from the device probe.
func kernelFSType(p *plan.Plan, mountPoint string) string {
	for _, spec := range p.Partitions {
		if spec.MountPoint != mountPoint {
			continue
		}
		switch spec.Filesystem {
		case plan.FSFat32:
			return "vfat"
		case plan.FSExt4:
			return "ext4"
		default:
			return string(spec.Filesystem)
		}
	}
	return ""
}
