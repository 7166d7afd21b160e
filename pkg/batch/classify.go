// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package batch implements the resource-query side of the Slurm pipe
// protocol: one JSON request of argument vectors in, one JSON array of
// resource specs out.
package batch

import (
	"fmt"
	"strconv"
	"strings"
)

// PipeFlag names the flag that switches an invocation into batch mode.
const PipeFlag = "--slurm-pipe"

// Mode tells a driver how to handle an invocation.
type Mode int

const (
	// SingleShot runs one experiment from the command line.
	SingleShot Mode = iota
	// Batch answers resource queries over a pair of inherited pipes.
	Batch
)

// String returns the lower-case mode name.
func (m Mode) String() string {
	switch m {
	case SingleShot:
		return "single-shot"
	case Batch:
		return "batch"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Invocation is the result of classifying a raw argument list.
type Invocation struct {
	Mode Mode
	// Args are the arguments left once the pipe flag is removed.
	Args []string
	// ReadFD and WriteFD are only meaningful in Batch mode.
	ReadFD  int
	WriteFD int
}

// Classify inspects args (without the program name) for the pipe flag,
// accepted as "--slurm-pipe R W" or "--slurm-pipe=R,W". Arguments after a
// bare "--" are never inspected.
func Classify(args []string) (Invocation, error) {
	inv := Invocation{Mode: SingleShot, Args: args}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}

		var rs, ws string
		rest := args[i+1:]
		switch {
		case arg == PipeFlag:
			if len(rest) < 2 {
				return inv, fmt.Errorf("%s needs two file descriptors", PipeFlag)
			}
			rs, ws = rest[0], rest[1]
			rest = rest[2:]
		case strings.HasPrefix(arg, PipeFlag+"="):
			var ok bool
			rs, ws, ok = strings.Cut(strings.TrimPrefix(arg, PipeFlag+"="), ",")
			if !ok {
				return inv, fmt.Errorf("%s=R,W: missing comma in %q", PipeFlag, arg)
			}
		default:
			continue
		}

		r, err := parseFD(rs)
		if err != nil {
			return inv, err
		}
		w, err := parseFD(ws)
		if err != nil {
			return inv, err
		}
		remaining := append(append([]string{}, args[:i]...), rest...)
		return Invocation{Mode: Batch, Args: remaining, ReadFD: r, WriteFD: w}, nil
	}
	return inv, nil
}

func parseFD(s string) (int, error) {
	fd, err := strconv.Atoi(s)
	if err != nil || fd < 0 {
		return 0, fmt.Errorf("%s: invalid file descriptor %q", PipeFlag, s)
	}
	return fd, nil
}
