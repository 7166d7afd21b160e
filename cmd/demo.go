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
	"fmt"
	"labrat/pkg/experiment"
	"labrat/pkg/outputs"
	"labrat/pkg/slurm"
	"math"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// Inputs select the dataset a run works on.
type Inputs struct {
	Index   uint64  `json:"index" arg:"index,positional" help:"Dataset index"`
	TwScale float64 `json:"tw_scale" arg:"tw-scale,value=S" help:"Time window scale"`
}

// Identity names input files after the dataset, e.g. IDX003_TW001000.
func (in Inputs) Identity() string {
	return fmt.Sprintf("IDX%03d_TW%06d", in.Index, uint64(math.Round(in.TwScale*1000)))
}

// Cat is an example enumerated parameter.
type Cat int

const (
	CatFoo Cat = iota
	CatBar
)

var catNames = []string{"foo", "bar"}

// String returns the category name.
func (c Cat) String() string {
	if c < 0 || int(c) >= len(catNames) {
		return fmt.Sprintf("Cat(%d)", int(c))
	}
	return catNames[c]
}

// MarshalText implements encoding.TextMarshaler.
func (c Cat) MarshalText() ([]byte, error) {
	if c < 0 || int(c) >= len(catNames) {
		return nil, fmt.Errorf("invalid cat %d", int(c))
	}
	return []byte(catNames[c]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Cat) UnmarshalText(text []byte) error {
	for i, name := range catNames {
		if strings.EqualFold(name, string(text)) {
			*c = Cat(i)
			return nil
		}
	}
	return fmt.Errorf("unknown cat %q", text)
}

// Choices lists the category names.
func (Cat) Choices() []string { return catNames }

// Params are the values the demo experiment is varied over.
type Params struct {
	Epsilon   float64 `json:"epsilon" help:"Parameter epsilon"`
	CPUs      uint16  `json:"cpus" arg:"cpus" help:"Number of threads to use"`
	Frob      bool    `json:"frob" arg:"frob,toggle" help:"Switch frob"`
	Baz       bool    `json:"baz" help:"Parameter baz"`
	ParamName *string `json:"param_name,omitempty" help:"Give parameters a name (otherwise use a hash of the parameter values)"`
	Cat       Cat     `json:"cat" help:"Parameter cat"`
}

// IdentityOverride replaces the parameter identity when a name is set.
func (p Params) IdentityOverride() string {
	if p.ParamName == nil {
		return ""
	}
	return *p.ParamName
}

// OutputControl changes what is written, never what is computed.
type OutputControl struct {
	TraceLog bool `json:"trace_log" arg:"tracelog" help:"Enable additional output"`
}

// Outputs are the files a run produces, relative to its parameter directory.
type Outputs struct {
	Log      string `json:"log"`
	TraceLog string `json:"trace_log,omitempty"`
}

// Demo is the definition of the example experiment.
type Demo = experiment.Definition[Inputs, Params, OutputControl, Outputs]

// Instance is one constructed demo run.
type Instance = experiment.Instance[Inputs, Params, OutputControl, Outputs]

func defaultParams() Params {
	return Params{Epsilon: 0.0001, CPUs: 1, Frob: true, Cat: CatBar}
}

func postParse(profile experiment.Profile, _ Inputs, p *Params, c *OutputControl) {
	switch profile {
	case experiment.ProfileTest:
		p.CPUs = 1
	case experiment.ProfileTrace:
		c.TraceLog = true
	}
}

func newOutputs(loc *outputs.Location, _ Inputs, _ Params, c OutputControl) Outputs {
	o := Outputs{Log: loc.InputPath("sollog.json")}
	if c.TraceLog {
		o.TraceLog = loc.InputPath("tracelog.json")
	}
	return o
}

func resources(inst *Instance) slurm.Policy {
	jobName := "hello world"
	if name := inst.Params.IdentityOverride(); name != "" {
		jobName = name
	}
	return slurm.Policy{
		Script:   "#!/bin/bash\n",
		Time:     time.Duration(300+60*(inst.Inputs.Index/10)) * time.Second,
		Memory:   slurm.FromGB(4),
		CPUs:     int(inst.Params.CPUs),
		JobName:  jobName,
		MailType: []slurm.MailType{slurm.MailFail},
		Exclude:  "flaky-node",
	}
}

// NewDemo returns the demo experiment writing below root on fsys.
func NewDemo(root string, fsys afero.Fs) *Demo {
	return &Demo{
		Name:          "labrat-demo",
		Short:         "Example experiment with content-addressed outputs",
		Root:          root,
		Fs:            fsys,
		DefaultInputs: func() Inputs { return Inputs{TwScale: 1.0} },
		DefaultParams: defaultParams,
		PostParse:     postParse,
		NewOutputs:    newOutputs,
		Resources:     resources,
	}
}
