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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const sectorSize = 512

func readFirstLine(filename string) (string, error) {
	getError := func(err error) error {
		switch {
		case errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrInvalid):
			return nil
		case strings.Contains(strings.ToLower(err.Error()), "no such device"):
			return nil
		case strings.Contains(strings.ToLower(err.Error()), "invalid argument"):
			return nil
		}
		return err
	}

	file, err := os.Open(filename)
	if err != nil {
		return "", getError(err)
	}
	defer file.Close()
	s, err := bufio.NewReader(file).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", getError(err)
	}
	return strings.TrimSpace(s), nil
}

func readdirnames(dirname string, errorIfNotExist bool) ([]string, error) {
	dir, err := os.Open(dirname)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !errorIfNotExist {
			err = nil
		}
		return nil, err
	}
	defer dir.Close()
	return dir.Readdirnames(-1)
}

func getDeviceName(majorMinor string) (string, error) {
	filename := fmt.Sprintf("/sys/dev/block/%v/uevent", majorMinor)
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	for {
		s, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(s, "DEVNAME=") {
			name := strings.TrimSpace(s[8:])
			if name == "" {
				return "", fmt.Errorf("%v contains empty device name for DEVNAME key", filename)
			}
			return name, nil
		}
	}
}

func getHidden(name string) bool {
	// errors ignored since real devices do not have <sys>/hidden
	v, _ := readFirstLine("/sys/class/block/" + name + "/hidden")
	return v == "1"
}

func getRemovable(name string) (bool, error) {
	s, err := readFirstLine("/sys/class/block/" + name + "/removable")
	return s != "" && s != "0", err
}

func getReadOnly(name string) (bool, error) {
	s, err := readFirstLine("/sys/class/block/" + name + "/ro")
	return s != "" && s != "0", err
}

func getSize(name string) (uint64, error) {
	s, err := readFirstLine("/sys/class/block/" + name + "/size")
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, nil
	}
	ui64, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ui64 * sectorSize, nil
}

func getPartitionNames(name string) ([]string, error) {
	names, err := readdirnames("/sys/block/"+name, false)
	if err != nil {
		return nil, err
	}

	partitions := []string{}
	for _, n := range names {
		if strings.HasPrefix(n, name) {
			partitions = append(partitions, n)
		}
	}
	return partitions, nil
}

func getPartitionIndex(disk, partition string) (int, error) {
	s, err := readFirstLine("/sys/block/" + disk + "/" + partition + "/partition")
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, fmt.Errorf("no partition number for %v", partition)
	}
	return strconv.Atoi(s)
}

func getPartitionSize(disk, partition string) (uint64, error) {
	s, err := readFirstLine("/sys/block/" + disk + "/" + partition + "/size")
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, nil
	}
	ui64, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ui64 * sectorSize, nil
}

func getMajorMinor(name string) (string, error) {
	s, err := readFirstLine("/sys/class/block/" + name + "/dev")
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("no dev entry for %v", name)
	}
	return s, nil
}
