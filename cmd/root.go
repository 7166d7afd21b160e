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

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"labrat/pkg/canonical"
	"labrat/pkg/logging"
	"labrat/pkg/outputs"
	"labrat/pkg/run"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	// rootEnv overrides the output root of the demo.
	rootEnv  = "LABRAT_ROOT"
	debugEnv = "LABRAT_DEBUG"

	defaultRoot = "logs"
)

// Execute runs the demo experiment on the process arguments.
func Execute() {
	if os.Getenv(debugEnv) != "" {
		_ = logging.SetLevel("debug")
	}
	root := os.Getenv(rootEnv)
	if root == "" {
		root = defaultRoot
	}
	if err := execute(NewDemo(root, afero.NewOsFs()), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		logging.Fatal("labrat-demo failed: %v", err)
	}
}

func execute(demo *Demo, args []string, stdout, stderr io.Writer) error {
	inst, done, err := withLogLevel(demo).Main(args, stdout, stderr)
	if err != nil || done {
		return err
	}
	return runDemo(inst, stdout)
}

// withLogLevel adds --log-level to demo. An unset flag keeps the level
// chosen by Execute.
func withLogLevel(demo *Demo) *Demo {
	var logLevel string
	demo.Flags = func(fs *pflag.FlagSet) {
		fs.StringVar(&logLevel, "log-level", "info", "Log verbosity: debug, info, warn or error")
	}
	demo.Configure = func(cmd *cobra.Command) {
		cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("log-level") {
				return nil
			}
			return logging.SetLevel(logLevel)
		}
	}
	return demo
}

type solution struct {
	Inputs  Inputs `json:"inputs"`
	Params  Params `json:"params"`
	Profile string `json:"profile"`
}

// runDemo is the body of the example experiment.
func runDemo(inst *Instance, stdout io.Writer) error {
	if err := run.Prepare(inst); err != nil {
		return err
	}

	for _, section := range []struct {
		title string
		value any
	}{
		{"Inputs", inst.Inputs},
		{"Parameters", inst.Params},
	} {
		data, err := json.MarshalIndent(section.value, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", section.title, err)
		}
		fmt.Fprintf(stdout, "%s:\n%s\n", section.title, data)
	}

	data, err := canonical.Indent(solution{Inputs: inst.Inputs, Params: inst.Params, Profile: inst.Profile.String()})
	if err != nil {
		return fmt.Errorf("failed to encode solution log: %w", err)
	}
	if err := outputs.WriteFile(inst.Location.Fs, inst.Outputs.Log, data); err != nil {
		return err
	}
	logging.Info("Wrote %s", inst.Outputs.Log)

	if inst.Outputs.TraceLog != "" {
		trace, err := canonical.Indent(inst.ResourceSpec())
		if err != nil {
			return fmt.Errorf("failed to encode trace log: %w", err)
		}
		if err := outputs.WriteFile(inst.Location.Fs, inst.Outputs.TraceLog, trace); err != nil {
			return err
		}
		logging.Info("Wrote %s", inst.Outputs.TraceLog)
	}
	return nil
}
