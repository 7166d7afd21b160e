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
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"labrat/pkg/slurm"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    Invocation
		wantErr bool
	}{
		{
			name: "no flag",
			args: []string{"3", "--epsilon=1"},
			want: Invocation{Mode: SingleShot, Args: []string{"3", "--epsilon=1"}},
		},
		{
			name: "separate values",
			args: []string{"--slurm-pipe", "3", "4"},
			want: Invocation{Mode: Batch, Args: []string{}, ReadFD: 3, WriteFD: 4},
		},
		{
			name: "joined values",
			args: []string{"--profile=test", "--slurm-pipe=5,6", "--frob"},
			want: Invocation{Mode: Batch, Args: []string{"--profile=test", "--frob"}, ReadFD: 5, WriteFD: 6},
		},
		{
			name: "after terminator",
			args: []string{"--", "--slurm-pipe", "3", "4"},
			want: Invocation{Mode: SingleShot, Args: []string{"--", "--slurm-pipe", "3", "4"}},
		},
		{name: "missing descriptor", args: []string{"--slurm-pipe", "3"}, wantErr: true},
		{name: "non-numeric", args: []string{"--slurm-pipe", "r", "w"}, wantErr: true},
		{name: "negative", args: []string{"--slurm-pipe=-1,4"}, wantErr: true},
		{name: "missing comma", args: []string{"--slurm-pipe=34"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Classify(%q) = %+v, want error", tt.args, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Classify(%q) error: %v", tt.args, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Classify(%q) mismatch (-want +got):\n%s", tt.args, diff)
			}
		})
	}
}

// echoBuilder names each job after its argument vector and fails on "bad".
var echoBuilder = BuilderFunc(func(argv []string) (slurm.ResourceSpec, error) {
	for _, a := range argv {
		if a == "bad" {
			return slurm.ResourceSpec{}, errors.New("cannot parse \"bad\"")
		}
	}
	return slurm.ResourceSpec{JobName: strings.Join(argv, " "), CPUs: len(argv), Nodes: 1}, nil
})

// countingWriter records every Write call separately.
type countingWriter struct {
	writes [][]byte
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.writes = append(c.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (c *countingWriter) bytes() int {
	n := 0
	for _, w := range c.writes {
		n += len(w)
	}
	return n
}

func TestServeOrdering(t *testing.T) {
	req := [][]string{{"9"}, {"1", "--frob"}, {"5", "--epsilon=2", "--cpus=3"}, {}, {"0"}}
	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}

	w := &countingWriter{}
	if err := Serve(bytes.NewReader(raw), w, echoBuilder); err != nil {
		t.Fatalf("Serve() error: %v", err)
	}
	if len(w.writes) != 1 {
		t.Fatalf("Serve() issued %d writes, want 1", len(w.writes))
	}

	var got []slurm.ResourceSpec
	if err := json.Unmarshal(w.writes[0], &got); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if len(got) != len(req) {
		t.Fatalf("response has %d elements, want %d", len(got), len(req))
	}
	for i, argv := range req {
		if got[i].JobName != strings.Join(argv, " ") {
			t.Errorf("element %d job name = %q, want %q", i, got[i].JobName, strings.Join(argv, " "))
		}
	}
}

func TestServeAtomic(t *testing.T) {
	req := `[["1"], ["2"], ["bad"], ["4"]]`
	w := &countingWriter{}
	err := Serve(strings.NewReader(req), w, echoBuilder)
	if err == nil {
		t.Fatal("Serve() succeeded, want error")
	}
	if !strings.Contains(err.Error(), "batch element 2") {
		t.Errorf("error %q does not name the failing element", err)
	}
	if w.bytes() != 0 {
		t.Errorf("Serve() wrote %d bytes on failure, want 0", w.bytes())
	}
}

func TestServeMalformed(t *testing.T) {
	for _, req := range []string{"", "{", `"x"`, "null", `[[1, 2]]`, `{"argv": []}`} {
		w := &countingWriter{}
		err := Serve(strings.NewReader(req), w, echoBuilder)
		if !errors.Is(err, ErrMalformedRequest) {
			t.Errorf("Serve(%q) error = %v, want ErrMalformedRequest", req, err)
		}
		if w.bytes() != 0 {
			t.Errorf("Serve(%q) wrote %d bytes, want 0", req, w.bytes())
		}
	}
}

func TestServeEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Serve(strings.NewReader("[]"), &buf, echoBuilder); err != nil {
		t.Fatalf("Serve() error: %v", err)
	}
	if got := buf.String(); got != "[]" {
		t.Errorf("Serve([]) wrote %q, want %q", got, "[]")
	}
}

func TestServeOmitsUnsetOptionals(t *testing.T) {
	var buf bytes.Buffer
	if err := Serve(strings.NewReader(`[["a"]]`), &buf, echoBuilder); err != nil {
		t.Fatalf("Serve() error: %v", err)
	}
	for _, key := range []string{"mail-type", "mail-user", "constraint", "exclude", "nodelist"} {
		if strings.Contains(buf.String(), `"`+key+`"`) {
			t.Errorf("response %s contains unset field %q", buf.String(), key)
		}
	}
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) / 2, nil }

func TestServeShortWrite(t *testing.T) {
	err := Serve(strings.NewReader(`[["a"]]`), shortWriter{}, echoBuilder)
	if !errors.Is(err, io.ErrShortWrite) {
		t.Errorf("Serve() error = %v, want io.ErrShortWrite", err)
	}
}

// dupFD returns a private copy of f's descriptor so the copy can be owned by
// the *os.File that OpenPipes creates.
func dupFD(t *testing.T, f *os.File) int {
	t.Helper()
	fd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		t.Fatalf("dup: %v", err)
	}
	return fd
}

func TestOpenPipes(t *testing.T) {
	reqR, reqW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer reqR.Close()
	defer reqW.Close()
	respR, respW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer respR.Close()
	defer respW.Close()

	in, out, err := OpenPipes(dupFD(t, reqR), dupFD(t, respW))
	if err != nil {
		t.Fatalf("OpenPipes() error: %v", err)
	}

	if _, err := reqW.Write([]byte(`[["x"], ["y", "z"]]`)); err != nil {
		t.Fatal(err)
	}
	reqW.Close()

	if err := Serve(in, out, echoBuilder); err != nil {
		t.Fatalf("Serve() error: %v", err)
	}
	in.Close()
	out.Close()
	respW.Close()

	raw, err := io.ReadAll(respR)
	if err != nil {
		t.Fatal(err)
	}
	var got []slurm.ResourceSpec
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("response %q is not JSON: %v", raw, err)
	}
	if len(got) != 2 || got[1].JobName != "y z" {
		t.Errorf("response = %+v", got)
	}
}

func TestOpenPipesRejectsClosedDescriptor(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	closed := dupFD(t, r)
	if err := unix.Close(closed); err != nil {
		t.Fatal(err)
	}
	if _, _, err := OpenPipes(closed, dupFD(t, w)); err == nil {
		t.Error("OpenPipes() accepted a closed descriptor")
	}
}
