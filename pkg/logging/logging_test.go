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

package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		_ = SetLevel("info")
		exitFunc = os.Exit
	})
	return &buf
}

func TestLevels(t *testing.T) {
	buf := captureLogs(t)

	Debug("hidden %d", 1)
	Info("shown %d", 2)
	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("debug message written at info level: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "shown 2") {
		t.Errorf("info message missing: %q", buf.String())
	}

	if err := SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel(debug): %v", err)
	}
	Debug("visible %s", "now")
	if !strings.Contains(buf.String(), "visible now") {
		t.Errorf("debug message missing after SetLevel: %q", buf.String())
	}

	if err := SetLevel("loud"); err == nil {
		t.Errorf("SetLevel accepted an unknown level")
	}
}

func TestFatalExits(t *testing.T) {
	buf := captureLogs(t)
	code := -1
	exitFunc = func(c int) { code = c }

	Fatal("boom: %v", "disk full")

	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(buf.String(), "boom: disk full") {
		t.Errorf("fatal message missing: %q", buf.String())
	}
}
