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

package sys

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"k8s.io/klog/v2"
)

// Runner executes external commands. Partitioning and formatting logic
// talks to sgdisk, partprobe and the mkfs family only through this
// interface so that it can be exercised without a real block device.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

// CommandError is returned by the exec-backed Runner when a command
// exits non-zero. It keeps the captured standard error so callers can
// surface tool diagnostics without re-running anything.
type CommandError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("command %v failed: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("command %v failed: %v; stderr: %v", e.Command, e.Err, strings.TrimSpace(e.Stderr))
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

type execRunner struct{}

// NewRunner returns a Runner backed by os/exec.
func NewRunner() Runner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	var outBuf, errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	klog.V(5).InfoS("running command", "name", name, "args", args)
	err := cmd.Run()
	if err != nil {
		err = &CommandError{
			Command: name + " " + strings.Join(args, " "),
			Stderr:  errBuf.String(),
			Err:     err,
		}
	}
	return outBuf.String(), errBuf.String(), err
}
