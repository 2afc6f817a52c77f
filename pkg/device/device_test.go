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
	"reflect"
	"strings"
	"testing"
)

func TestPartitionPath(t *testing.T) {
	testCases := []struct {
		device       Device
		index        int
		expectedPath string
	}{
		{Device{Name: "sdd"}, 1, "/dev/sdd1"},
		{Device{Name: "sdd"}, 12, "/dev/sdd12"},
		{Device{Name: "nvme0n1"}, 3, "/dev/nvme0n1p3"},
		{Device{Name: "mmcblk0"}, 2, "/dev/mmcblk0p2"},
		{Device{Name: "loop7"}, 1, "/dev/loop7p1"},
	}

	for i, testCase := range testCases {
		if path := testCase.device.PartitionPath(testCase.index); path != testCase.expectedPath {
			t.Fatalf("case %v: expected %v, got %v", i+1, testCase.expectedPath, path)
		}
	}
}

func TestIsExternal(t *testing.T) {
	testCases := []struct {
		device   Device
		expected bool
	}{
		{Device{Removable: true}, true},
		{Device{Connection: "usb"}, true},
		{Device{Connection: "USB"}, true},
		{Device{Connection: "ata"}, false},
		{Device{}, false},
	}

	for i, testCase := range testCases {
		if result := testCase.device.IsExternal(); result != testCase.expected {
			t.Fatalf("case %v: expected %v, got %v", i+1, testCase.expected, result)
		}
	}
}

func TestMake(t *testing.T) {
	testCases := []struct {
		device   Device
		expected string
	}{
		{Device{Vendor: "SanDisk", Model: "Extreme_Pro"}, "SanDisk Extreme_Pro"},
		{Device{Model: "Samsung_T7"}, "Samsung_T7"},
		{Device{}, "Unknown"},
	}

	for i, testCase := range testCases {
		if result := testCase.device.Make(); result != testCase.expected {
			t.Fatalf("case %v: expected %v, got %v", i+1, testCase.expected, result)
		}
	}
}

func TestParseRunUdevDataFile(t *testing.T) {
	data := `S:disk/by-id/usb-SanDisk_Extreme_Pro_0101-0:0
E:ID_VENDOR=SanDisk
E:ID_MODEL=Extreme_Pro
E:ID_SERIAL_SHORT=0101
E:ID_BUS=usb
E:ID_FS_TYPE=ext4
E:ID_FS_LABEL=WEIRDING_ROOT
G:systemd
`
	event, err := parseRunUdevDataFile(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}

	expected := map[string]string{
		"ID_VENDOR":       "SanDisk",
		"ID_MODEL":        "Extreme_Pro",
		"ID_SERIAL_SHORT": "0101",
		"ID_BUS":          "usb",
		"ID_FS_TYPE":      "ext4",
		"ID_FS_LABEL":     "WEIRDING_ROOT",
	}
	if !reflect.DeepEqual(event, expected) {
		t.Fatalf("expected %+v, got %+v", expected, event)
	}
}

func TestMounted(t *testing.T) {
	device := Device{
		Partitions: []Partition{
			{Index: 1, Name: "sdd1"},
			{Index: 2, Name: "sdd2", MountPoint: "/mnt/usb"},
		},
	}
	if !device.Mounted() {
		t.Fatal("expected mounted device")
	}

	device.Partitions[1].MountPoint = ""
	if device.Mounted() {
		t.Fatal("expected unmounted device")
	}
}
