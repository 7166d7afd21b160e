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
	"fmt"
	"labrat/pkg/args"
	"strings"
)

// Profile is a coarse run mode handed to the post-parse hook.
type Profile int

const (
	// ProfileDefault is a normal run.
	ProfileDefault Profile = iota
	// ProfileTest asks for a short run suitable for smoke tests.
	ProfileTest
	// ProfileTrace asks for extra diagnostic output.
	ProfileTrace
)

var profileNames = [...]string{
	ProfileDefault: "default",
	ProfileTest:    "test",
	ProfileTrace:   "trace",
}

// String returns the profile name.
func (p Profile) String() string {
	if p < 0 || int(p) >= len(profileNames) {
		return fmt.Sprintf("Profile(%d)", int(p))
	}
	return profileNames[p]
}

// ParseProfile parses a profile name case-insensitively.
func ParseProfile(s string) (Profile, error) {
	for i, name := range profileNames {
		if strings.EqualFold(name, s) {
			return Profile(i), nil
		}
	}
	if hint := args.Suggest(s, profileNames[:]); hint != "" {
		return 0, fmt.Errorf("unknown profile %q, did you mean %q?", s, hint)
	}
	return 0, fmt.Errorf("unknown profile %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Profile) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Profile) UnmarshalText(text []byte) error {
	parsed, err := ParseProfile(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Set implements pflag.Value.
func (p *Profile) Set(s string) error { return p.UnmarshalText([]byte(s)) }

// Type implements pflag.Value.
func (p *Profile) Type() string { return "profile" }

// Choices lists the accepted profile names.
func (Profile) Choices() []string { return append([]string(nil), profileNames[:]...) }
