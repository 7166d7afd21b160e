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

package run

import (
	"fmt"
	"labrat/pkg/logging"
)

// Instance is what Prepare needs from a constructed experiment run.
type Instance interface {
	ParameterID() string
	InputID() string
	OutputDir() string
	WriteParameterFile() (bool, error)
	WriteIndexFile() error
}

// Prepare records an instance on disk before the experiment body runs: the
// write-once parameter file and the per-input index.
func Prepare(inst Instance) error {
	logging.Info("Using output directory %s", inst.OutputDir())

	written, err := inst.WriteParameterFile()
	if err != nil {
		return fmt.Errorf("failed to write parameter file for %s: %w", inst.ParameterID(), err)
	}
	if written {
		logging.Info("Recorded parameters %s", inst.ParameterID())
	} else {
		logging.Debug("parameters %s already recorded", inst.ParameterID())
	}

	if err := inst.WriteIndexFile(); err != nil {
		return fmt.Errorf("failed to write index file for input %s: %w", inst.InputID(), err)
	}
	return nil
}
