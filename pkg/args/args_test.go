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

package args

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
)

type kind int

const (
	kindFoo kind = iota
	kindBar
)

var kindNames = []string{"foo", "bar"}

func (k kind) MarshalText() ([]byte, error) { return []byte(kindNames[k]), nil }

func (k *kind) UnmarshalText(b []byte) error {
	for i, n := range kindNames {
		if n == string(b) {
			*k = kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown kind %q", b)
}

func (kind) Choices() []string { return kindNames }

type params struct {
	Epsilon float64 `json:"epsilon" help:"Parameter epsilon"`
	CPUs    uint32  `json:"cpus" arg:"cpus" help:"Number of threads"`
	Frob    bool    `json:"frob"`
	Name    *string `json:"name,omitempty" arg:"param-name"`
	Cat     kind    `json:"cat"`
	Skip    int     `json:"-" arg:"-"`
}

type inputs struct {
	Index   uint64  `json:"index" arg:"index,positional"`
	TwScale float64 `json:"tw_scale" arg:",value=S"`
}

func defaultParams() params {
	return params{Epsilon: 0.0001, CPUs: 4, Cat: kindBar}
}

func mustSchema(t *testing.T, label string, v any) *Schema {
	t.Helper()
	s, err := SchemaOf(label, v)
	if err != nil {
		t.Fatalf("SchemaOf(%T) error: %v", v, err)
	}
	return s
}

func parse(t *testing.T, s *Schema, defaults any, argv ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	s.Register(fs, defaults)
	if err := fs.Parse(argv); err != nil {
		t.Fatalf("Parse(%q) error: %v", argv, err)
	}
	return fs
}

func strPtr(s string) *string { return &s }

func TestSchemaOf(t *testing.T) {
	s := mustSchema(t, "parameter", params{})

	var names, values []string
	for _, f := range s.Fields {
		names = append(names, f.Name)
		values = append(values, f.ValueName)
	}
	if diff := cmp.Diff([]string{"epsilon", "cpus", "frob", "param-name", "cat"}, names); diff != "" {
		t.Errorf("field names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"X", "N", "string", "string", "choice"}, values); diff != "" {
		t.Errorf("value names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(kindNames, s.Fields[4].Choices); diff != "" {
		t.Errorf("choices mismatch (-want +got):\n%s", diff)
	}

	in := mustSchema(t, "input", &inputs{})
	if pos := in.Positional(); len(pos) != 1 || pos[0].Name != "index" {
		t.Errorf("Positional() = %+v, want [index]", pos)
	}
	if in.Fields[1].Name != "tw-scale" || in.Fields[1].ValueName != "S" {
		t.Errorf("tw-scale field = %+v", in.Fields[1])
	}
}

func TestSchemaOfRejects(t *testing.T) {
	type badKind struct {
		Ch chan int
	}
	type badOption struct {
		X int `arg:"x,bogus"`
	}
	type badToggle struct {
		X int `arg:"x,toggle"`
	}
	for _, v := range []any{42, badKind{}, badOption{}, badToggle{}} {
		if _, err := SchemaOf("parameter", v); err == nil {
			t.Errorf("SchemaOf(%T) succeeded, want error", v)
		}
	}
}

func TestApplyToggle(t *testing.T) {
	type switches struct {
		Frob  bool `arg:"frob,toggle"`
		Plain bool `arg:"plain"`
	}
	s := mustSchema(t, "parameter", switches{})
	tests := []struct {
		defaults switches
		argv     []string
		want     switches
	}{
		{switches{Frob: true}, nil, switches{Frob: true}},
		{switches{Frob: true}, []string{"--frob"}, switches{Frob: false}},
		{switches{Frob: false}, []string{"--frob"}, switches{Frob: true}},
		{switches{Frob: true}, []string{"--frob=false"}, switches{Frob: true}},
		{switches{Frob: true, Plain: true}, []string{"--plain"}, switches{Frob: true, Plain: true}},
	}
	for _, tt := range tests {
		fs := parse(t, s, tt.defaults, tt.argv...)
		got := tt.defaults
		if err := s.Apply(fs, nil, &got); err != nil {
			t.Fatalf("Apply(%q) error: %v", tt.argv, err)
		}
		if got != tt.want {
			t.Errorf("Apply(%q) from %+v = %+v, want %+v", tt.argv, tt.defaults, got, tt.want)
		}
	}
}

func TestKebab(t *testing.T) {
	tests := map[string]string{
		"Epsilon":     "epsilon",
		"TwScale":     "tw-scale",
		"ParamName":   "param-name",
		"HTTPServer":  "http-server",
		"Level2Cache": "level2-cache",
	}
	for in, want := range tests {
		if got := kebab(in); got != want {
			t.Errorf("kebab(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRegisterShowsDefaults(t *testing.T) {
	s := mustSchema(t, "parameter", params{})
	fs := parse(t, s, defaultParams())

	want := map[string]string{
		"epsilon":    "0.0001",
		"cpus":       "4",
		"frob":       "false",
		"param-name": "",
		"cat":        "bar",
	}
	for name, def := range want {
		f := fs.Lookup(name)
		if f == nil {
			t.Fatalf("flag --%s not registered", name)
		}
		if f.DefValue != def {
			t.Errorf("--%s default = %q, want %q", name, f.DefValue, def)
		}
	}
	if !strings.Contains(fs.Lookup("cat").Usage, "one of: foo, bar") {
		t.Errorf("--cat usage %q does not list choices", fs.Lookup("cat").Usage)
	}
	if fs.Lookup("skip") != nil {
		t.Error("field tagged arg:\"-\" was registered")
	}
}

func TestApply(t *testing.T) {
	s := mustSchema(t, "parameter", params{})

	tests := []struct {
		name string
		argv []string
		want params
	}{
		{
			name: "no flags keeps defaults",
			want: defaultParams(),
		},
		{
			name: "changed flags only",
			argv: []string{"--epsilon=0.5", "--cat", "foo", "--param-name", "run1", "--frob"},
			want: params{Epsilon: 0.5, CPUs: 4, Frob: true, Name: strPtr("run1"), Cat: kindFoo},
		},
		{
			name: "flag set to its default still counts",
			argv: []string{"--cpus=4"},
			want: defaultParams(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := parse(t, s, defaultParams(), tt.argv...)
			got := defaultParams()
			if err := s.Apply(fs, nil, &got); err != nil {
				t.Fatalf("Apply() error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApplyErrorsNameField(t *testing.T) {
	s := mustSchema(t, "parameter", params{})

	tests := []struct {
		argv    []string
		wantSub []string
	}{
		{[]string{"--cpus=lots"}, []string{`parameter "cpus"`, "invalid syntax"}},
		{[]string{"--cpus=-1"}, []string{`parameter "cpus"`}},
		{[]string{"--epsilon=tiny"}, []string{`parameter "epsilon"`}},
		{[]string{"--cat=fo0"}, []string{`parameter "cat"`, `did you mean "foo"?`}},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.argv, " "), func(t *testing.T) {
			fs := parse(t, s, defaultParams(), tt.argv...)
			got := defaultParams()
			err := s.Apply(fs, nil, &got)
			if err == nil {
				t.Fatal("Apply() succeeded, want error")
			}
			for _, sub := range tt.wantSub {
				if !strings.Contains(err.Error(), sub) {
					t.Errorf("error %q does not contain %q", err, sub)
				}
			}
		})
	}
}

func TestApplyPositional(t *testing.T) {
	s := mustSchema(t, "input", inputs{})
	defaults := inputs{TwScale: 1.0}

	fs := parse(t, s, defaults, "--tw-scale=2.5")
	got := defaults
	if err := s.Apply(fs, []string{"7"}, &got); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if diff := cmp.Diff(inputs{Index: 7, TwScale: 2.5}, got); diff != "" {
		t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
	}

	for _, positional := range [][]string{nil, {"1", "2"}} {
		got := defaults
		err := s.Apply(parse(t, s, defaults), positional, &got)
		if !errors.Is(err, ErrPositional) {
			t.Errorf("Apply(%q) error = %v, want ErrPositional", positional, err)
		}
	}

	got = defaults
	err := s.Apply(parse(t, s, defaults), []string{"seven"}, &got)
	if err == nil || !strings.Contains(err.Error(), `input "index"`) {
		t.Errorf("Apply(seven) error = %v, want it to name input \"index\"", err)
	}
}

func TestApplyRejectsWrongDestination(t *testing.T) {
	s := mustSchema(t, "parameter", params{})
	fs := parse(t, s, defaultParams())
	if err := s.Apply(fs, nil, params{}); err == nil {
		t.Error("Apply(non-pointer) succeeded, want error")
	}
	if err := s.Apply(fs, nil, &inputs{}); err == nil {
		t.Error("Apply(*inputs) succeeded, want error")
	}
}

func TestSuggest(t *testing.T) {
	choices := []string{"default", "test", "trace"}
	tests := map[string]string{
		"tset":    "test",
		"TRACE":   "trace",
		"defualt": "default",
		"zzzzzzz": "",
	}
	for word, want := range tests {
		if got := Suggest(word, choices); got != want {
			t.Errorf("Suggest(%q) = %q, want %q", word, got, want)
		}
	}
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    params
		wantErr string
	}{
		{
			name:    "json",
			file:    "p.json",
			content: `{"epsilon": 0.25, "cat": "foo", "name": "run1"}`,
			want:    params{Epsilon: 0.25, CPUs: 4, Cat: kindFoo, Name: strPtr("run1")},
		},
		{
			name:    "yaml",
			file:    "p.yaml",
			content: "cpus: 8\nfrob: true\n",
			want:    params{Epsilon: 0.0001, CPUs: 8, Frob: true, Cat: kindBar},
		},
		{
			name:    "hcl",
			file:    "p.hcl",
			content: "epsilon = 0.5\ncpus = 2\ncat = \"foo\"\n",
			want:    params{Epsilon: 0.5, CPUs: 2, Cat: kindFoo},
		},
		{
			name:    "json unknown key",
			file:    "p.json",
			content: `{"epsilom": 1}`,
			wantErr: "epsilom",
		},
		{
			name:    "yaml unknown key",
			file:    "p.yml",
			content: "bogus: 1\n",
			wantErr: "bogus",
		},
		{
			name:    "hcl syntax error",
			file:    "p.hcl",
			content: "epsilon = \n",
			wantErr: "p.hcl",
		},
		{
			name:    "bad enum",
			file:    "p.json",
			content: `{"cat": "baz"}`,
			wantErr: "unknown kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			if err := afero.WriteFile(fsys, tt.file, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			got := defaultParams()
			err := LoadFile(fsys, tt.file, &got)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("LoadFile() error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadFile() error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("LoadFile() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	got := defaultParams()
	err := LoadFile(afero.NewMemMapFs(), "nope.json", &got)
	if err == nil || !strings.Contains(err.Error(), "nope.json") {
		t.Errorf("LoadFile() error = %v, want it to name the file", err)
	}
}

func TestRemoteSources(t *testing.T) {
	tests := []struct {
		src        string
		wantRemote bool
		wantFormat string
	}{
		{"params.json", false, ".json"},
		{"dir/params.YAML", false, ".yaml"},
		{"https://example.com/p.hcl?ref=main", true, ".hcl"},
		{"s3::https://s3.amazonaws.com/bucket/p.yml", true, ".yml"},
		{"git::https://example.com/repo.git//p.json#frag", true, ".json"},
	}
	for _, tt := range tests {
		if got := isRemote(tt.src); got != tt.wantRemote {
			t.Errorf("isRemote(%q) = %v, want %v", tt.src, got, tt.wantRemote)
		}
		if got := formatOf(tt.src); got != tt.wantFormat {
			t.Errorf("formatOf(%q) = %q, want %q", tt.src, got, tt.wantFormat)
		}
	}
}

func TestApplyOptionalEnum(t *testing.T) {
	type optional struct {
		Cat *kind `arg:"cat"`
	}
	s := mustSchema(t, "parameter", optional{})
	if s.Fields[0].ValueName != "choice" || len(s.Fields[0].Choices) != 2 {
		t.Errorf("field = %+v", s.Fields[0])
	}

	var unset optional
	if err := s.Apply(parse(t, s, optional{}), nil, &unset); err != nil || unset.Cat != nil {
		t.Errorf("Apply() without flag = %v, %v; want nil pointer", unset.Cat, err)
	}

	var set optional
	if err := s.Apply(parse(t, s, optional{}, "--cat=bar"), nil, &set); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if set.Cat == nil || *set.Cat != kindBar {
		t.Errorf("Apply() cat = %v, want bar", set.Cat)
	}
}
