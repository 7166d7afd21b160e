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

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"labrat/pkg/slurm"
)

var (
	// ErrBatchAborted means the experiment binary rejected the batch. No
	// element of an aborted batch carries information.
	ErrBatchAborted = errors.New("batch query aborted")
	// ErrResponseLength means the response did not have one spec per query.
	ErrResponseLength = errors.New("batch response length mismatch")
)

// Orchestrator asks an experiment what it would need from the scheduler for a
// set of hypothetical invocations.
type Orchestrator interface {
	// QueryResources returns one spec per argument vector, in order.
	QueryResources(ctx context.Context, argvs [][]string) ([]slurm.ResourceSpec, error)
}

// JobDefinition is one planned submission: the arguments of a single
// experiment run and the sbatch script that would run it.
type JobDefinition struct {
	Args   []string
	Spec   slurm.ResourceSpec
	Script string
}

// Plan queries o for every argument vector and renders the submission
// script of each. Nothing is submitted.
func Plan(ctx context.Context, o Orchestrator, argvs [][]string) ([]JobDefinition, error) {
	specs, err := o.QueryResources(ctx, argvs)
	if err != nil {
		return nil, err
	}
	if len(specs) != len(argvs) {
		return nil, fmt.Errorf("%w: sent %d queries, got %d specs", ErrResponseLength, len(argvs), len(specs))
	}

	jobs := make([]JobDefinition, len(specs))
	for i, spec := range specs {
		script, err := slurm.RenderScript(spec)
		if err != nil {
			return nil, fmt.Errorf("failed to render script for %q: %w", argvs[i], err)
		}
		jobs[i] = JobDefinition{Args: argvs[i], Spec: spec, Script: script}
	}
	return jobs, nil
}
