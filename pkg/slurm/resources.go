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

// Package slurm turns an experiment's resource policy into the normalized
// record of sbatch submission parameters.
package slurm

import (
	"fmt"
	"math"
	"path/filepath"
	"time"
)

// MemoryAmount is an amount of memory in megabytes.
type MemoryAmount uint64

// FromMB returns mb megabytes.
func FromMB(mb uint64) MemoryAmount { return MemoryAmount(mb) }

// FromGB returns gb gigabytes, counted as 1000 MB each.
func FromGB(gb uint64) MemoryAmount { return MemoryAmount(gb * 1000) }

// FromGBFloat returns gb gigabytes rounded to the nearest megabyte.
func FromGBFloat(gb float64) MemoryAmount {
	return MemoryAmount(math.Round(gb * 1000))
}

// MB returns the amount in megabytes.
func (m MemoryAmount) MB() uint64 { return uint64(m) }

// String renders the amount in sbatch --mem syntax, e.g. "4000MB".
func (m MemoryAmount) String() string { return fmt.Sprintf("%dMB", uint64(m)) }

// FormatTime renders d as D-H:MM:SS, truncated to whole seconds.
func FormatTime(d time.Duration) string {
	secs := uint64(0)
	if d > 0 {
		secs = uint64(d / time.Second)
	}
	mins := secs / 60
	secs -= mins * 60
	hrs := mins / 60
	mins -= hrs * 60
	days := hrs / 24
	hrs -= days * 24
	return fmt.Sprintf("%d-%d:%02d:%02d", days, hrs, mins, secs)
}

// Policy is what an experiment declares about its resource needs. Zero
// values select the defaults applied by Normalize.
type Policy struct {
	Script string
	Time   time.Duration
	Memory MemoryAmount

	CPUs  int // default 1
	Nodes int // default 1

	JobName  string // default: the parameter identity
	MailUser string
	MailType []MailType

	Constraint string
	Exclude    string
	NodeList   string

	LogErr string // default: <output dir>/<input id>.err
	LogOut string // default: <output dir>/<input id>.out
}

// Target is the experiment instance a policy is normalized for.
type Target interface {
	ParameterID() string
	InputID() string
	OutputDir() string
}

// ResourceSpec is the normalized submission record. Unset optional fields
// are omitted from the serialized form.
type ResourceSpec struct {
	Script     string `json:"script" yaml:"script"`
	LogErr     string `json:"err" yaml:"err"`
	LogOut     string `json:"out" yaml:"out"`
	JobName    string `json:"job-name,omitempty" yaml:"job-name,omitempty"`
	CPUs       int    `json:"cpus-per-task" yaml:"cpus-per-task"`
	Nodes      int    `json:"nodes" yaml:"nodes"`
	Time       string `json:"time" yaml:"time"`
	Memory     string `json:"mem" yaml:"mem"`
	MailUser   string `json:"mail-user,omitempty" yaml:"mail-user,omitempty"`
	MailType   string `json:"mail-type,omitempty" yaml:"mail-type,omitempty"`
	Constraint string `json:"constraint,omitempty" yaml:"constraint,omitempty"`
	Exclude    string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	NodeList   string `json:"nodelist,omitempty" yaml:"nodelist,omitempty"`
}

// Normalize applies defaults and unit formatting to p for target t.
func Normalize(p Policy, t Target) ResourceSpec {
	spec := ResourceSpec{
		Script:     p.Script,
		LogErr:     p.LogErr,
		LogOut:     p.LogOut,
		JobName:    p.JobName,
		CPUs:       p.CPUs,
		Nodes:      p.Nodes,
		Time:       FormatTime(p.Time),
		Memory:     p.Memory.String(),
		MailUser:   p.MailUser,
		Constraint: p.Constraint,
		Exclude:    p.Exclude,
		NodeList:   p.NodeList,
	}
	if spec.CPUs <= 0 {
		spec.CPUs = 1
	}
	if spec.Nodes <= 0 {
		spec.Nodes = 1
	}
	if spec.JobName == "" {
		spec.JobName = t.ParameterID()
	}
	if spec.LogErr == "" {
		spec.LogErr = filepath.Join(t.OutputDir(), t.InputID()+".err")
	}
	if spec.LogOut == "" {
		spec.LogOut = filepath.Join(t.OutputDir(), t.InputID()+".out")
	}
	if len(p.MailType) > 0 {
		spec.MailType = JoinMailTypes(p.MailType)
	}
	return spec
}
