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

// Package pipe queries an experiment binary over the --slurm-pipe protocol.
package pipe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"labrat/pkg/logging"
	"labrat/pkg/orchestrator"
	"labrat/pkg/slurm"
	"os"
	"os/exec"
)

// Descriptor numbers of the request and response pipes in the child; the
// first entry of exec.Cmd.ExtraFiles becomes descriptor 3.
const (
	childReadFD  = "3"
	childWriteFD = "4"
)

// Orchestrator runs Binary once per query batch.
type Orchestrator struct {
	Binary string
	// Args precede the pipe flag on the command line.
	Args []string
	// Env, if non-nil, replaces the inherited environment.
	Env []string
	// Stderr receives the child's diagnostics; nil discards them.
	Stderr io.Writer
}

// NewOrchestrator returns an Orchestrator for binary.
func NewOrchestrator(binary string, args ...string) *Orchestrator {
	return &Orchestrator{Binary: binary, Args: args}
}

var _ orchestrator.Orchestrator = (*Orchestrator)(nil)

// QueryResources sends argvs to a fresh child process and returns its specs.
func (o *Orchestrator) QueryResources(ctx context.Context, argvs [][]string) ([]slurm.ResourceSpec, error) {
	if argvs == nil {
		argvs = [][]string{}
	}
	request, err := json.Marshal(argvs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch request: %w", err)
	}

	reqR, reqW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create request pipe: %w", err)
	}
	defer reqW.Close()
	respR, respW, err := os.Pipe()
	if err != nil {
		reqR.Close()
		return nil, fmt.Errorf("failed to create response pipe: %w", err)
	}
	defer respR.Close()

	args := append(append([]string{}, o.Args...), "--slurm-pipe", childReadFD, childWriteFD)
	cmd := exec.CommandContext(ctx, o.Binary, args...)
	cmd.ExtraFiles = []*os.File{reqR, respW}
	cmd.Env = o.Env
	cmd.Stderr = o.Stderr

	logging.Debug("querying %s for %d resource specs", o.Binary, len(argvs))
	startErr := cmd.Start()
	// The child holds its own copies now.
	reqR.Close()
	respW.Close()
	if startErr != nil {
		return nil, fmt.Errorf("failed to start %s: %w", o.Binary, startErr)
	}

	// The server reads the whole request before answering, so writing first
	// cannot deadlock. A write error means the child went away; Wait reports why.
	_, writeErr := reqW.Write(request)
	reqW.Close()
	response, readErr := io.ReadAll(respR)
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", orchestrator.ErrBatchAborted, o.Binary, err)
	}
	if writeErr != nil {
		return nil, fmt.Errorf("failed to send batch request: %w", writeErr)
	}
	if readErr != nil {
		return nil, fmt.Errorf("failed to read batch response: %w", readErr)
	}

	var specs []slurm.ResourceSpec
	dec := json.NewDecoder(bytes.NewReader(response))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&specs); err != nil {
		return nil, fmt.Errorf("failed to decode batch response: %w", err)
	}
	if len(specs) != len(argvs) {
		return nil, fmt.Errorf("%w: sent %d queries, got %d specs", orchestrator.ErrResponseLength, len(argvs), len(specs))
	}
	return specs, nil
}
