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

package slurm

import (
	"fmt"
	"strings"

	"github.com/agext/levenshtein"
)

// MailType is a Slurm notification event, rendered as its --mail-type token.
type MailType int

const (
	MailNone MailType = iota
	MailBegin
	MailEnd
	MailFail
	MailRequeue
	MailAll
	MailInvalidDepend
	MailStageOut
	MailTimeLimit
	MailTimeLimit90
	MailTimeLimit80
	MailTimeLimit50
	MailArrayTasks
)

var mailTokens = [...]string{
	MailNone:          "NONE",
	MailBegin:         "BEGIN",
	MailEnd:           "END",
	MailFail:          "FAIL",
	MailRequeue:       "REQUEUE",
	MailAll:           "ALL",
	MailInvalidDepend: "INVALID_DEPEND",
	MailStageOut:      "STAGE_OUT",
	MailTimeLimit:     "TIME_LIMIT",
	MailTimeLimit90:   "TIME_LIMIT_90",
	MailTimeLimit80:   "TIME_LIMIT_80",
	MailTimeLimit50:   "TIME_LIMIT_50",
	MailArrayTasks:    "ARRAY_TASKS",
}

// String returns the scheduler token, e.g. "TIME_LIMIT_80".
func (m MailType) String() string {
	if m < 0 || int(m) >= len(mailTokens) {
		return fmt.Sprintf("MailType(%d)", int(m))
	}
	return mailTokens[m]
}

// MarshalText implements encoding.TextMarshaler.
func (m MailType) MarshalText() ([]byte, error) {
	if m < 0 || int(m) >= len(mailTokens) {
		return nil, fmt.Errorf("invalid mail type %d", int(m))
	}
	return []byte(mailTokens[m]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MailType) UnmarshalText(text []byte) error {
	parsed, err := ParseMailType(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Choices lists the accepted tokens.
func (MailType) Choices() []string {
	return append([]string(nil), mailTokens[:]...)
}

// ParseMailType parses a token case-insensitively; dashes are accepted in
// place of underscores.
func ParseMailType(s string) (MailType, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for i, tok := range mailTokens {
		if tok == norm {
			return MailType(i), nil
		}
	}

	best, bestDist := "", -1
	for _, tok := range mailTokens {
		d := levenshtein.Distance(norm, tok, nil)
		if bestDist < 0 || d < bestDist {
			best, bestDist = tok, d
		}
	}
	if bestDist >= 0 && bestDist <= 3 {
		return 0, fmt.Errorf("unknown mail type %q, did you mean %q?", s, best)
	}
	return 0, fmt.Errorf("unknown mail type %q", s)
}

// JoinMailTypes renders events as comma-separated tokens in the given order.
// Duplicates and conflicting tokens are kept as supplied.
func JoinMailTypes(events []MailType) string {
	toks := make([]string, len(events))
	for i, e := range events {
		toks[i] = e.String()
	}
	return strings.Join(toks, ",")
}
