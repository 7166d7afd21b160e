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
	"encoding/json"
	"fmt"
	"io"
	"labrat/pkg/logging"
	"labrat/pkg/slurm"

	"github.com/pkg/errors"
)

// ErrMalformedRequest is returned when the request is not a JSON array of
// string arrays.
var ErrMalformedRequest = errors.New("malformed batch request")

// Builder constructs the resource spec of one hypothetical invocation.
type Builder interface {
	Resources(argv []string) (slurm.ResourceSpec, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(argv []string) (slurm.ResourceSpec, error)

// Resources calls f(argv).
func (f BuilderFunc) Resources(argv []string) (slurm.ResourceSpec, error) { return f(argv) }

// Serve performs one exchange: it reads the whole request from r, builds a
// spec per element in order, and writes the JSON array of specs to w in a
// single Write. If any element fails nothing is written.
func Serve(r io.Reader, w io.Writer, b Builder) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading batch request")
	}

	var req [][]string
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if req == nil {
		return fmt.Errorf("%w: expected a JSON array, got %q", ErrMalformedRequest, raw)
	}
	logging.Debug("batch request with %d elements", len(req))

	specs := make([]slurm.ResourceSpec, 0, len(req))
	for i, argv := range req {
		spec, err := b.Resources(argv)
		if err != nil {
			return errors.Wrapf(err, "batch element %d %q", i, argv)
		}
		specs = append(specs, spec)
	}

	resp, err := json.Marshal(specs)
	if err != nil {
		return errors.Wrap(err, "encoding batch response")
	}
	n, err := w.Write(resp)
	if err != nil {
		return errors.Wrap(err, "writing batch response")
	}
	if n != len(resp) {
		return io.ErrShortWrite
	}
	return nil
}
