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

// Package experiment binds typed input, parameter, config and output records
// into runnable instances with content-addressed output directories.
package experiment

import (
	"labrat/pkg/args"
	"labrat/pkg/canonical"
	"labrat/pkg/identity"
	"labrat/pkg/logging"
	"labrat/pkg/outputs"
	"labrat/pkg/slurm"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Definition declares an experiment over inputs I, parameters P, output
// control config C and declared outputs O.
//
// Only P determines the output directory. I names the files inside it, and
// C never affects any identity.
type Definition[I, P, C, O any] struct {
	Name  string
	Short string

	// Root is the directory parameter directories are created under.
	Root string
	// Fs defaults to the OS filesystem.
	Fs afero.Fs

	DefaultInputs func() I
	DefaultParams func() P
	DefaultConfig func() C

	// PostParse may adjust parameters and config once inputs are final.
	// It runs before any identity is computed.
	PostParse func(profile Profile, inputs I, params *P, config *C)

	NewOutputs func(loc *outputs.Location, inputs I, params P, config C) O
	Resources  func(inst *Instance[I, P, C, O]) slurm.Policy

	// Flags, if set, declares extra flags. They are accepted by the command
	// line and by every batch element alike.
	Flags func(fs *pflag.FlagSet)

	// Configure, if set, is called on every command built by Command, e.g.
	// to install run hooks.
	Configure func(cmd *cobra.Command)
}

// Instance is one fully constructed experiment run.
type Instance[I, P, C, O any] struct {
	Profile  Profile
	Inputs   I
	Params   P
	Config   C
	Outputs  O
	Location *outputs.Location

	paramID string
	inputID string
	def     *Definition[I, P, C, O]
}

// ParameterID is the identity of the parameter set.
func (inst *Instance[I, P, C, O]) ParameterID() string { return inst.paramID }

// InputID is the identity of the input set.
func (inst *Instance[I, P, C, O]) InputID() string { return inst.inputID }

// OutputDir is the canonical parameter directory.
func (inst *Instance[I, P, C, O]) OutputDir() string { return inst.Location.Dir }

// OutputPath returns <dir>/<input-id>-name.
func (inst *Instance[I, P, C, O]) OutputPath(name string) string {
	return inst.Location.InputPath(name)
}

// ResourceSpec normalizes the definition's resource policy for inst.
func (inst *Instance[I, P, C, O]) ResourceSpec() slurm.ResourceSpec {
	var policy slurm.Policy
	if inst.def.Resources != nil {
		policy = inst.def.Resources(inst)
	}
	return slurm.Normalize(policy, inst)
}

// WriteParameterFile records the parameters in parameters.json unless the
// file already exists.
func (inst *Instance[I, P, C, O]) WriteParameterFile() (bool, error) {
	data, err := canonical.Indent(inst.Params)
	if err != nil {
		return false, errors.Wrap(err, "encoding parameters")
	}
	return outputs.WriteOnce(inst.Location.Fs, inst.Location.ParameterFilePath(), data)
}

type index struct {
	Input  any `json:"input"`
	Output any `json:"output"`
}

// WriteIndexFile (re)writes <input-id>-index.json with the inputs and the
// declared outputs of this run.
func (inst *Instance[I, P, C, O]) WriteIndexFile() error {
	data, err := canonical.Indent(index{Input: inst.Inputs, Output: inst.Outputs})
	if err != nil {
		return errors.Wrap(err, "encoding index")
	}
	return outputs.WriteFile(inst.Location.Fs, inst.Location.IndexFilePath(), data)
}

func (d *Definition[I, P, C, O]) defaultInputs() I {
	var v I
	if d.DefaultInputs != nil {
		v = d.DefaultInputs()
	}
	return v
}

func (d *Definition[I, P, C, O]) defaultParams() P {
	var v P
	if d.DefaultParams != nil {
		v = d.DefaultParams()
	}
	return v
}

func (d *Definition[I, P, C, O]) defaultConfig() C {
	var v C
	if d.DefaultConfig != nil {
		v = d.DefaultConfig()
	}
	return v
}

// schemas holds the field tables of the three flag-bearing records.
type schemas struct {
	inputs, params, config *args.Schema
}

// driverFlags are the flags every experiment command carries.
type driverFlags struct {
	profile    Profile
	loadParams string
	slurmInfo  bool
	infoFormat string
	slurmPipe  string
}

var reservedFlags = []string{"profile", "load-params", "slurm-info", "info-format", "slurm-pipe", "help"}

func (d *Definition[I, P, C, O]) schemas() (*schemas, error) {
	var s schemas
	var err error
	if s.inputs, err = args.SchemaOf("input", d.defaultInputs()); err != nil {
		return nil, err
	}
	if s.params, err = args.SchemaOf("parameter", d.defaultParams()); err != nil {
		return nil, err
	}
	if s.config, err = args.SchemaOf("config", d.defaultConfig()); err != nil {
		return nil, err
	}

	owner := map[string]string{}
	for _, name := range reservedFlags {
		owner[name] = "driver"
	}
	for _, schema := range []*args.Schema{s.inputs, s.params, s.config} {
		for _, f := range schema.Fields {
			if f.Positional {
				if schema != s.inputs {
					return nil, errors.Errorf("%s field %s: only inputs may be positional", schema.Kind, f.GoName)
				}
				continue
			}
			if prev, ok := owner[f.Name]; ok {
				return nil, errors.Errorf("flag --%s declared by both %s and %s", f.Name, prev, schema.Kind)
			}
			owner[f.Name] = schema.Kind
		}
	}
	return &s, nil
}

// register declares the record flags and the driver flags on fs.
func (d *Definition[I, P, C, O]) register(fs *pflag.FlagSet, flags *driverFlags) (*schemas, error) {
	s, err := d.schemas()
	if err != nil {
		return nil, err
	}
	s.inputs.Register(fs, d.defaultInputs())
	s.params.Register(fs, d.defaultParams())
	s.config.Register(fs, d.defaultConfig())

	flags.infoFormat = "json"
	fs.Var(&flags.profile, "profile", "Run profile (one of: default, test, trace)")
	fs.StringVar(&flags.loadParams, "load-params", "", "Load all parameters from `FILE` (.json, .yaml or .hcl, local or a go-getter URL); parameter flags are ignored")
	fs.BoolVar(&flags.slurmInfo, "slurm-info", false, "Print the Slurm resource spec of this invocation and exit")
	fs.StringVar(&flags.infoFormat, "info-format", flags.infoFormat, "Output format of --slurm-info: json or yaml")
	fs.StringVar(&flags.slurmPipe, "slurm-pipe", "", "Answer a batch of resource queries over the inherited descriptors `R,W` and exit")

	if d.Flags != nil {
		extra := pflag.NewFlagSet(d.Name, pflag.ContinueOnError)
		d.Flags(extra)
		var dup []string
		extra.VisitAll(func(f *pflag.Flag) {
			if fs.Lookup(f.Name) != nil {
				dup = append(dup, f.Name)
				return
			}
			fs.AddFlag(f)
		})
		if len(dup) > 0 {
			return nil, errors.Errorf("extra flags %v collide with existing flags", dup)
		}
	}
	return s, nil
}

// construct applies the precedence defaults < flags < parameter file <
// post-parse hook, then computes identities and the output location.
func (d *Definition[I, P, C, O]) construct(fs *pflag.FlagSet, positional []string, s *schemas, flags *driverFlags) (*Instance[I, P, C, O], error) {
	inputs := d.defaultInputs()
	if err := s.inputs.Apply(fs, positional, &inputs); err != nil {
		return nil, err
	}

	params := d.defaultParams()
	if flags.loadParams != "" {
		if changed := changedFlags(fs, s.params); len(changed) > 0 {
			logging.Warn("--load-params is set, ignoring parameter flags %v", changed)
		}
		if err := args.LoadFile(d.Fs, flags.loadParams, &params); err != nil {
			return nil, err
		}
	} else if err := s.params.Apply(fs, nil, &params); err != nil {
		return nil, err
	}

	config := d.defaultConfig()
	if err := s.config.Apply(fs, nil, &config); err != nil {
		return nil, err
	}

	if d.PostParse != nil {
		d.PostParse(flags.profile, inputs, &params, &config)
	}

	paramID := identity.Of(params)
	inputID := identity.Of(inputs)
	loc, err := outputs.NewResolver(d.Fs, d.Root).Locate(paramID, inputID)
	if err != nil {
		return nil, err
	}
	logging.Debug("experiment %s: parameters %s, inputs %s, directory %s", d.Name, paramID, inputID, loc.Dir)

	inst := &Instance[I, P, C, O]{
		Profile:  flags.profile,
		Inputs:   inputs,
		Params:   params,
		Config:   config,
		Location: loc,
		paramID:  paramID,
		inputID:  inputID,
		def:      d,
	}
	if d.NewOutputs != nil {
		inst.Outputs = d.NewOutputs(loc, inputs, params, config)
	}
	return inst, nil
}

func changedFlags(fs *pflag.FlagSet, s *args.Schema) []string {
	var names []string
	for _, f := range s.Fields {
		if flag := fs.Lookup(f.Name); flag != nil && flag.Changed {
			names = append(names, "--"+f.Name)
		}
	}
	return names
}
