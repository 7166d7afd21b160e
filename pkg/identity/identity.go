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

// Package identity derives the short, filesystem-safe names under which
// parameter and input sets store their outputs.
package identity

import (
	"crypto/sha256"
	"labrat/pkg/canonical"
	"math/big"
	"strings"
)

// Alphabet is the base-62 digit set: digits, then upper case, then lower case.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// HashLength is the width of every hash-derived identity, enough base-62
// digits to hold a 224-bit digest.
const HashLength = 38

// Identifiable is implemented by values that name themselves, bypassing the hash.
type Identifiable interface {
	Identity() string
}

// Overrider is implemented by values carrying an optional user-chosen name,
// typically a field set from a --param-name style flag. An empty override
// falls back to the hash.
type Overrider interface {
	IdentityOverride() string
}

// Hash returns base62(SHA-224(canonical json of v)).
//
// Values that cannot be serialized (channels, funcs) are programmer errors
// and cause a panic; any well-formed parameter or input record hashes.
func Hash(v any) string {
	sum := sha256.Sum224(canonical.MustMarshal(v))
	return EncodeBase62(sum[:])
}

// String returns override verbatim when it is non-empty, otherwise Hash(v).
// Overrides are not sanitized.
func String(v any, override string) string {
	if override != "" {
		return override
	}
	return Hash(v)
}

// Of returns the identity of v, consulting Identifiable and Overrider before
// hashing.
func Of(v any) string {
	if id, ok := v.(Identifiable); ok {
		return id.Identity()
	}
	if o, ok := v.(Overrider); ok {
		return String(v, o.IdentityOverride())
	}
	return Hash(v)
}

// EncodeBase62 encodes b as a big-endian number in Alphabet, left-padded with
// '0' to the width needed for len(b) bytes so equal-length inputs give
// equal-length outputs.
func EncodeBase62(b []byte) string {
	width := base62Width(len(b))
	n := new(big.Int).SetBytes(b)
	base := big.NewInt(int64(len(Alphabet)))
	mod := new(big.Int)

	digits := make([]byte, 0, width)
	for n.Sign() > 0 {
		n.DivMod(n, base, mod)
		digits = append(digits, Alphabet[mod.Int64()])
	}
	for len(digits) < width {
		digits = append(digits, Alphabet[0])
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}

// base62Width is the number of base-62 digits needed for the largest n-byte number.
func base62Width(n int) int {
	if n == 0 {
		return 0
	}
	max := new(big.Int).Lsh(big.NewInt(1), uint(8*n))
	max.Sub(max, big.NewInt(1))
	return len(max.Text(62))
}

// IsHash reports whether s has the shape of a hash-derived identity.
func IsHash(s string) bool {
	if len(s) != HashLength {
		return false
	}
	return strings.Trim(s, Alphabet) == ""
}
