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
	"bytes"
	"encoding/json"
	"labrat/pkg/logging"
	"os"
	"path"
	"path/filepath"
	"strings"

	getter "github.com/hashicorp/go-getter"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"sigs.k8s.io/yaml"
)

// LoadFile decodes the parameter file at src into dst, overwriting only the
// fields the file names. The format follows the extension: .yaml and .yml are
// YAML, .hcl is a flat HCL attribute file, anything else is JSON. Unknown
// keys are rejected.
//
// A src that looks like a go-getter address ("https://...", "s3::...") is
// downloaded first and read from the local filesystem.
func LoadFile(fsys afero.Fs, src string, dst any) error {
	file := src
	if isRemote(src) {
		local, cleanup, err := fetch(src)
		if err != nil {
			return err
		}
		defer cleanup()
		fsys, file = afero.NewOsFs(), local
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	data, err := afero.ReadFile(fsys, file)
	if err != nil {
		return errors.Wrapf(err, "reading parameter file %s", src)
	}

	switch formatOf(file) {
	case ".yaml", ".yml":
		err = yaml.UnmarshalStrict(data, dst)
	case ".hcl":
		var raw []byte
		raw, err = hclToJSON(data, file)
		if err == nil {
			err = decodeJSON(raw, dst)
		}
	default:
		err = decodeJSON(data, dst)
	}
	if err != nil {
		return errors.Wrapf(err, "decoding parameter file %s", src)
	}
	logging.Debug("loaded parameters from %s", src)
	return nil
}

func decodeJSON(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// hclToJSON evaluates the top-level attributes of an HCL file, without
// variables or functions, and re-encodes them as a JSON object.
func hclToJSON(data []byte, filename string) ([]byte, error) {
	file, diags := hclsyntax.ParseConfig(data, filename, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, diags
	}
	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}

	values := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		values[name] = v
	}
	obj := cty.ObjectVal(values)
	return ctyjson.Marshal(obj, obj.Type())
}

func isRemote(src string) bool {
	return strings.Contains(src, "::") || strings.Contains(src, "://")
}

// formatOf returns the lower-cased extension of a local path or of the path
// part of a remote address.
func formatOf(src string) string {
	if i := strings.LastIndex(src, "::"); i >= 0 {
		src = src[i+2:]
	}
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	return strings.ToLower(path.Ext(src))
}

func fetch(src string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "labrat-params-")
	if err != nil {
		return "", nil, errors.Wrap(err, "creating download directory")
	}
	cleanup := func() { os.RemoveAll(dir) }

	local := filepath.Join(dir, "params"+formatOf(src))
	logging.Debug("fetching parameter file %s", src)
	if err := getter.GetFile(local, src); err != nil {
		cleanup()
		return "", nil, errors.Wrapf(err, "fetching parameter file %s", src)
	}
	return local, cleanup, nil
}
