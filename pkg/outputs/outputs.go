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

// Package outputs maps parameter and input identities onto the on-disk
// layout ROOT/<parameter-id>/[<input-id>-]<filename>.
//
// Several processes may resolve the same parameter directory at once. No
// locks are taken: directory creation is idempotent and parameter files are
// only ever created, never overwritten.
package outputs

import (
	"errors"
	"io/fs"
	"labrat/pkg/logging"
	"os"
	"path/filepath"

	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	// ParameterFile is written once per parameter directory.
	ParameterFile = "parameters.json"
	// IndexSuffix names the per-input index file, prefixed by the input identity.
	IndexSuffix = "index.json"

	dirPerm  = 0o755
	filePerm = 0o644
)

// Resolver computes output locations below Root.
type Resolver struct {
	Fs   afero.Fs
	Root string
}

// NewResolver returns a Resolver over fsys. A nil fsys means the OS filesystem.
func NewResolver(fsys afero.Fs, root string) *Resolver {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Resolver{Fs: fsys, Root: root}
}

// Dir ensures ROOT/paramID exists and returns its canonical path.
func (r *Resolver) Dir(paramID string) (string, error) {
	dir := filepath.Join(r.Root, paramID)
	if err := mkdirAll(r.Fs, dir); err != nil {
		return "", err
	}
	return canonicalize(r.Fs, dir)
}

// Locate resolves the parameter directory and binds it to an input identity.
func (r *Resolver) Locate(paramID, inputID string) (*Location, error) {
	dir, err := r.Dir(paramID)
	if err != nil {
		return nil, err
	}
	return &Location{Fs: r.Fs, Dir: dir, InputID: inputID}, nil
}

// Resolve returns ROOT/paramID/[inputID-]filename on the OS filesystem,
// creating the parameter directory if needed.
func Resolve(root, paramID, inputID, filename string) (string, error) {
	loc, err := NewResolver(nil, root).Locate(paramID, inputID)
	if err != nil {
		return "", err
	}
	return loc.InputPath(filename), nil
}

// Location is a resolved, existing parameter directory.
type Location struct {
	Fs      afero.Fs
	Dir     string
	InputID string
}

// Path returns Dir/filename.
func (l *Location) Path(filename string) string {
	return filepath.Join(l.Dir, filename)
}

// InputPath returns Dir/<input-id>-filename, or Dir/filename when the
// location has no input identity.
func (l *Location) InputPath(filename string) string {
	if l.InputID == "" {
		return l.Path(filename)
	}
	return l.Path(l.InputID + "-" + filename)
}

// ParameterFilePath is the location of the write-once parameter record.
func (l *Location) ParameterFilePath() string {
	return l.Path(ParameterFile)
}

// IndexFilePath is the location of the per-input index record.
func (l *Location) IndexFilePath() string {
	return l.InputPath(IndexSuffix)
}

func mkdirAll(fsys afero.Fs, dir string) error {
	err := fsys.MkdirAll(dir, dirPerm)
	if err == nil {
		return nil
	}
	// A concurrent creator may win between our stat and mkdir.
	if errors.Is(err, fs.ErrExist) {
		if info, statErr := fsys.Stat(dir); statErr == nil && info.IsDir() {
			logging.Debug("output directory %s created concurrently", dir)
			return nil
		}
	}
	return pkgerrors.Wrapf(err, "creating output directory %s", dir)
}

func canonicalize(fsys afero.Fs, dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", pkgerrors.Wrapf(err, "resolving %s", dir)
	}
	if _, ok := fsys.(*afero.OsFs); !ok {
		return abs, nil
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", pkgerrors.Wrapf(err, "resolving %s", abs)
	}
	return resolved, nil
}

// WriteOnce creates path with data unless it already exists. An existing
// file is left untouched and reported with written == false. A failed write
// leaves no file behind.
//
// On the OS filesystem the data is written to a temporary file that is then
// hard-linked into place, so readers never observe a partial file.
func WriteOnce(fsys afero.Fs, path string, data []byte) (written bool, err error) {
	if _, ok := fsys.(*afero.OsFs); ok {
		written, linked, err := linkOnce(fsys, path, data)
		if linked {
			return written, err
		}
	}
	return createOnce(fsys, path, data)
}

// linkOnce reports linked == false when the filesystem cannot hard-link and
// the caller should fall back to an exclusive create.
func linkOnce(fsys afero.Fs, path string, data []byte) (written, linked bool, err error) {
	if _, err := fsys.Stat(path); err == nil {
		return false, true, nil
	}
	tmp, err := afero.TempFile(fsys, filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return false, true, pkgerrors.Wrapf(err, "creating temporary file for %s", path)
	}
	defer fsys.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return false, true, pkgerrors.Wrapf(err, "writing %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return false, true, pkgerrors.Wrapf(err, "closing %s", tmp.Name())
	}
	if err := fsys.Chmod(tmp.Name(), filePerm); err != nil {
		return false, true, pkgerrors.Wrapf(err, "setting mode of %s", tmp.Name())
	}

	err = os.Link(tmp.Name(), path)
	switch {
	case err == nil:
		return true, true, nil
	case errors.Is(err, fs.ErrExist):
		return false, true, nil
	}
	logging.Debug("hard link of %s failed, creating it in place: %v", path, err)
	return false, false, nil
}

func createOnce(fsys afero.Fs, path string, data []byte) (written bool, err error) {
	f, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, pkgerrors.Wrapf(err, "creating %s", path)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return false, discard(fsys, path, pkgerrors.Wrapf(err, "writing %s", path))
	}
	if err := f.Close(); err != nil {
		return false, discard(fsys, path, pkgerrors.Wrapf(err, "closing %s", path))
	}
	return true, nil
}

// discard removes a partially written path so a later WriteOnce can retry.
func discard(fsys afero.Fs, path string, cause error) error {
	if err := fsys.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warn("could not remove partial %s: %v", path, err)
	}
	return cause
}

// WriteFile creates or truncates path with data.
func WriteFile(fsys afero.Fs, path string, data []byte) error {
	if err := afero.WriteFile(fsys, path, data, filePerm); err != nil {
		return pkgerrors.Wrapf(err, "writing %s", path)
	}
	return nil
}
