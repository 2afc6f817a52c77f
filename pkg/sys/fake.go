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
	"context"
	"strings"
)

// FakeResult is a canned outcome for a command run by FakeRunner.
type FakeResult struct {
	Stdout string
	Stderr string
	Err    error
}

// FakeRunner is a Runner for tests. Results are keyed by the full
// command line; commands without a canned result succeed with empty
// output. Every invocation is recorded in order.
type FakeRunner struct {
	Commands []string
	results  map[string][]FakeResult
}

// NewFakeRunner returns an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{results: map[string][]FakeResult{}}
}

// AddResult queues a result for the given command line. Multiple
// results for the same command line are consumed in FIFO order, the
// last one sticking.
func (r *FakeRunner) AddResult(commandLine string, result FakeResult) {
	r.results[commandLine] = append(r.results[commandLine], result)
}

func (r *FakeRunner) Run(_ context.Context, name string, args ...string) (string, string, error) {
	commandLine := name
	if len(args) != 0 {
		commandLine += " " + strings.Join(args, " ")
	}
	r.Commands = append(r.Commands, commandLine)

	queued, found := r.results[commandLine]
	if !found || len(queued) == 0 {
		return "", "", nil
	}
	result := queued[0]
	if len(queued) > 1 {
		r.results[commandLine] = queued[1:]
	}
	return result.Stdout, result.Stderr, result.Err
}

// RanCommand reports whether the given command line was run.
func (r *FakeRunner) RanCommand(commandLine string) bool {
	for _, c := range r.Commands {
		if c == commandLine {
			return true
		}
	}
	return false
}
