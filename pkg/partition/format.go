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

import (
	"context"
	"fmt"

	"github.com/weirdinghost/weirdingctl/pkg/plan"
	"github.com/weirdinghost/weirdingctl/pkg/sys"
	"k8s.io/klog/v2"
)

// Per-filesystem label limits. Labels longer than the target
// filesystem allows are truncated rather than failing the format.
const (
	fat32LabelLimit = 11
	swapLabelLimit  = 15
	ext4LabelLimit  = 16
)

func format(ctx context.Context, runner sys.Runner, path string, fs plan.Filesystem, label string) error {
	var name string
	var args []string
	switch fs {
	case plan.FSExt4:
		name = "mkfs.ext4"
		args = []string{"-F", "-L", truncateLabel(label, ext4LabelLimit), path}
	case plan.FSFat32:
		name = "mkfs.fat"
		args = []string{"-F", "32", "-n", truncateLabel(label, fat32LabelLimit), path}
	case plan.FSLinuxSwap:
		name = "mkswap"
		args = []string{"-L", truncateLabel(label, swapLabelLimit), path}
	default:
		return fmt.Errorf("unknown filesystem %v for %v", fs, path)
	}

	klog.V(3).InfoS("formatting partition", "path", path, "fsType", fs, "label", label)
	if _, _, err := runner.Run(ctx, name, args...); err != nil {
		return err
	}
	return nil
}

func truncateLabel(label string, limit int) string {
	if len(label) > limit {
		return label[:limit]
	}
	return label
}
