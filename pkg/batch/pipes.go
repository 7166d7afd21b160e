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

package batch

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// OpenPipes wraps two inherited file descriptors. Each is checked with
// fcntl(F_GETFD) first so a bad number fails here instead of on first use.
func OpenPipes(readFD, writeFD int) (io.ReadCloser, io.WriteCloser, error) {
	for _, fd := range []int{readFD, writeFD} {
		if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); err != nil {
			return nil, nil, errors.Wrapf(err, "file descriptor %d", fd)
		}
	}
	r := os.NewFile(uintptr(readFD), "slurm-pipe-request")
	w := os.NewFile(uintptr(writeFD), "slurm-pipe-response")
	return r, w, nil
}
