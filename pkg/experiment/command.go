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

package experiment

import (
	"encoding/json"
	"fmt"
	"io"
	"labrat/pkg/args"
	"labrat/pkg/batch"
	"labrat/pkg/logging"
	"labrat/pkg/slurm"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

var infoFormats = []string{"json", "yaml"}

// Build constructs an instance from argv (no program name) on a fresh flag
// set, the same way the command line does. Driver-only flags such as
// --slurm-info are accepted and ignored.
func (d *Definition[I, P, C, O]) Build(argv []string) (*Instance[I, P, C, O], error) {
	fs := pflag.NewFlagSet(d.Name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flags := &driverFlags{}
	s, err := d.register(fs, flags)
	if err != nil {
		return nil, err
	}
	if err := fs.Parse(argv); err != nil {
		return nil, errors.Wrapf(err, "parsing %q", argv)
	}
	return d.construct(fs, fs.Args(), s, flags)
}

// QueryBuilder answers batch queries by building each argument vector.
func (d *Definition[I, P, C, O]) QueryBuilder() batch.Builder {
	return batch.BuilderFunc(func(argv []string) (slurm.ResourceSpec, error) {
		inst, err := d.Build(argv)
		if err != nil {
			return slurm.ResourceSpec{}, err
		}
		return inst.ResourceSpec(), nil
	})
}

// ServeQueries runs one batch exchange over the inherited descriptors.
func (d *Definition[I, P, C, O]) ServeQueries(readFD, writeFD int) error {
	r, w, err := batch.OpenPipes(readFD, writeFD)
	if err != nil {
		return err
	}
	defer r.Close()
	defer w.Close()
	logging.Debug("serving resource queries on descriptors %d and %d", readFD, writeFD)
	return batch.Serve(r, w, d.QueryBuilder())
}

// Command returns a cobra command that constructs an instance and hands it
// to run. With --slurm-info the resource spec is printed instead, and with
// --slurm-pipe=R,W a batch of queries is answered; run is not called in
// either case.
func (d *Definition[I, P, C, O]) Command(run func(*Instance[I, P, C, O]) error) (*cobra.Command, error) {
	flags := &driverFlags{}
	cmd := &cobra.Command{
		Short:         d.Short,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	s, err := d.register(cmd.Flags(), flags)
	if err != nil {
		return nil, err
	}

	use := []string{d.Name}
	for _, f := range s.inputs.Positional() {
		use = append(use, strings.ToUpper(f.Name))
	}
	cmd.Use = strings.Join(use, " ")

	cmd.RunE = func(cmd *cobra.Command, positional []string) error {
		if flags.slurmPipe != "" {
			inv, err := batch.Classify([]string{batch.PipeFlag + "=" + flags.slurmPipe})
			if err != nil {
				return err
			}
			return d.ServeQueries(inv.ReadFD, inv.WriteFD)
		}

		inst, err := d.construct(cmd.Flags(), positional, s, flags)
		if err != nil {
			return err
		}
		if flags.slurmInfo {
			return writeInfo(cmd.OutOrStdout(), inst.ResourceSpec(), flags.infoFormat)
		}
		return run(inst)
	}

	if d.Configure != nil {
		d.Configure(cmd)
	}
	return cmd, nil
}

// Main is the entry point of an experiment binary. args excludes the program
// name. The pipe flag is recognized before any other parsing; such an
// invocation, like --slurm-info or --help, completes inside Main and reports
// done. Otherwise the constructed instance is returned for the caller to run.
func (d *Definition[I, P, C, O]) Main(argv []string, stdout, stderr io.Writer) (inst *Instance[I, P, C, O], done bool, err error) {
	inv, err := batch.Classify(argv)
	if err != nil {
		return nil, true, err
	}
	if inv.Mode == batch.Batch {
		if len(inv.Args) > 0 {
			logging.Debug("ignoring arguments %q in batch mode", inv.Args)
		}
		return nil, true, d.ServeQueries(inv.ReadFD, inv.WriteFD)
	}

	cmd, err := d.Command(func(i *Instance[I, P, C, O]) error {
		inst = i
		return nil
	})
	if err != nil {
		return nil, true, err
	}
	cmd.SetArgs(inv.Args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		return nil, true, err
	}
	if inst == nil {
		return nil, true, nil
	}
	return inst, false, nil
}

func writeInfo(w io.Writer, spec slurm.ResourceSpec, format string) error {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(spec, "", "  ")
		if err != nil {
			return errors.Wrap(err, "encoding resource spec")
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(spec); err != nil {
			return errors.Wrap(err, "encoding resource spec")
		}
		return enc.Close()
	}
	if hint := args.Suggest(format, infoFormats); hint != "" {
		return errors.Errorf("unknown --info-format %q, did you mean %q?", format, hint)
	}
	return errors.Errorf("unknown --info-format %q, want one of %v", format, infoFormats)
}
