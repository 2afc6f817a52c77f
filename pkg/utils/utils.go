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

package utils

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// Eprintf prints the formatted message to STDERR. A leading ERROR
// marker is added if asErr is set. Nothing is printed in quiet mode.
func Eprintf(quiet, asErr bool, format string, args ...interface{}) {
	if quiet {
		return
	}
	if asErr {
		fmt.Fprintf(os.Stderr, "%v ", color.HiRedString("ERROR"))
	}
	fmt.Fprintf(os.Stderr, format, args...)
}

// IBytes renders a byte count in binary units (KiB, MiB, GiB...).
func IBytes(value uint64) string {
	return humanize.IBytes(value)
}
