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
	"strings"

	"github.com/agext/levenshtein"
)

// maxSuggestDistance bounds how far a typo may be from a candidate before no
// suggestion is offered.
const maxSuggestDistance = 3

// Suggest returns the candidate closest to word, compared case-insensitively,
// or "" when none is within a small edit distance.
func Suggest(word string, candidates []string) string {
	word = strings.ToLower(word)
	best, bestDist := "", maxSuggestDistance+1
	for _, c := range candidates {
		d := levenshtein.Distance(word, strings.ToLower(c), nil)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
