// Package digest computes content-address fingerprints for source
// units. Digests are cache keys for the incremental generator, not a
// security boundary: the SHA-256 sum is truncated to a short display
// length, which trades collision resistance for readable artifacts.
// Identical raw bytes always produce identical digests; any byte
// change, including whitespace, produces a different one.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DisplayLength is the number of hex characters kept from the full
// SHA-256 sum.
const DisplayLength = 16

// compositeSeparator joins contributing strings of a composite unit.
// NUL does not occur in text source files, so concatenations of
// different part boundaries can never collide.
const compositeSeparator = "\n\x00\n"

// Of returns the digest of a single raw content string.
func Of(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:DisplayLength]
}

// Composite returns the digest over multiple contributing strings.
// The caller supplies parts in a fixed, reproducible order; swapping
// two parts changes the digest even when their contents are unchanged.
func Composite(parts ...string) string {
	return Of(strings.Join(parts, compositeSeparator))
}
