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

// Package backup persists restorable snapshots of a device's GPT. The
// backup directory is append-only: nothing here ever deletes or
// overwrites a snapshot, so manual recovery stays possible long after
// a conversion.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/weirdinghost/weirdingctl/pkg/consts"
	"github.com/weirdinghost/weirdingctl/pkg/device"
	"github.com/weirdinghost/weirdingctl/pkg/sys"
	"github.com/weirdinghost/weirdingctl/pkg/utils"
	"k8s.io/klog/v2"
)

// Error indicates a snapshot could not be captured or persisted. The
// applier must not mutate a device after seeing one of these.
type Error struct {
	Device string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("unable to back up partition table of %v: %v", e.Device, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// RestoreError indicates a rollback failed. The device is in an
// undefined state and the operator must intervene manually.
type RestoreError struct {
	Device string
	Backup string
	Err    error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("unable to restore partition table of %v from %v: %v", e.Device, e.Backup, e.Err)
}

func (e *RestoreError) Unwrap() error { return e.Err }

// Store saves and restores GPT snapshots under a single directory.
type Store struct {
	dir    string
	runner sys.Runner
}

// DefaultDir returns ~/.weirding_backups.
func DefaultDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, consts.BackupDirName), nil
}

// New returns a Store rooted at dir, creating it if needed.
func New(dir string, runner sys.Runner) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &Store{dir: dir, runner: runner}, nil
}

// Dir returns the backup directory.
func (s *Store) Dir() string {
	return s.dir
}

// Backup captures the device's GPT with sgdisk and writes a companion
// human-readable summary next to it. The returned path identifies the
// binary snapshot; the summary shares its name with a .txt extension.
//
// The snapshot filename carries the capture time plus a short unique
// suffix so repeated backups of one device within the same second
// never collide.
func (s *Store) Backup(ctx context.Context, dev device.Device) (string, error) {
	name := fmt.Sprintf("%v_partition_backup_%v_%v.sgdisk",
		dev.Name, time.Now().Unix(), strings.SplitN(uuid.New().String(), "-", 2)[0])
	backupPath := filepath.Join(s.dir, name)

	if _, stderr, err := s.runner.Run(ctx, "sgdisk", "--backup="+backupPath, dev.Path()); err != nil {
		return "", &Error{Device: dev.Path(), Err: fmt.Errorf("%v: %v", strings.TrimSpace(stderr), err)}
	}

	// A backup that cannot be read back is worse than no backup:
	// verify the snapshot landed before trusting it.
	content, err := os.ReadFile(backupPath)
	if err != nil {
		return "", &Error{Device: dev.Path(), Err: err}
	}
	if len(content) == 0 {
		return "", &Error{Device: dev.Path(), Err: fmt.Errorf("empty snapshot %v", backupPath)}
	}

	dump, _, err := s.runner.Run(ctx, "sgdisk", "--print", dev.Path())
	if err != nil {
		return "", &Error{Device: dev.Path(), Err: err}
	}
	summary := fmt.Sprintf("Partition table backup for %v\nCreated: %v\nDrive: %v\nSize: %v (%v bytes)\n\n%v",
		dev.Path(), time.Now().Format(time.RFC1123), dev.Make(), utils.IBytes(dev.Size), dev.Size, dump)
	if err := os.WriteFile(summaryPath(backupPath), []byte(summary), 0o600); err != nil {
		return "", &Error{Device: dev.Path(), Err: err}
	}

	klog.V(3).InfoS("partition table backed up", "device", dev.Path(), "backup", backupPath)
	return backupPath, nil
}

// Restore writes the snapshot back to the device and asks the kernel
// to re-read the table.
func (s *Store) Restore(ctx context.Context, dev device.Device, backupPath string) error {
	if _, err := os.Stat(backupPath); err != nil {
		return &RestoreError{Device: dev.Path(), Backup: backupPath, Err: err}
	}

	if _, stderr, err := s.runner.Run(ctx, "sgdisk", "--load-backup="+backupPath, dev.Path()); err != nil {
		return &RestoreError{Device: dev.Path(), Backup: backupPath, Err: fmt.Errorf("%v: %v", strings.TrimSpace(stderr), err)}
	}

	if _, _, err := s.runner.Run(ctx, "partprobe", dev.Path()); err != nil {
		// The table is on disk; a partprobe failure only delays node
		// updates until the next replug.
		klog.ErrorS(err, "unable to re-read partition table after restore", "device", dev.Path())
	}

	klog.V(3).InfoS("partition table restored", "device", dev.Path(), "backup", backupPath)
	return nil
}

// List returns the snapshot paths stored for the named device, newest
// first, or all snapshots if name is empty.
func (s *Store) List(name string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var backups []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sgdisk") {
			continue
		}
		if name != "" && !strings.HasPrefix(entry.Name(), name+"_partition_backup_") {
			continue
		}
		backups = append(backups, filepath.Join(s.dir, entry.Name()))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups, nil
}

func summaryPath(backupPath string) string {
	return strings.TrimSuffix(backupPath, filepath.Ext(backupPath)) + ".txt"
}
