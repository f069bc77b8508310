// Package contenthash computes stable fingerprints for signal deduplication.
//
// Two promotions of the same underlying content must collide even when the
// text differs in case, punctuation noise, or whitespace. Normalization is
// deliberately lossy: anything that is not a letter, digit, or basic
// punctuation is dropped before hashing.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// kept punctuation beyond letters, digits, and whitespace
const keptPunct = ".,:;!?/-"

// Hash fingerprints the given parts. Blank parts are skipped, the rest are
// normalized independently and joined with " | " before hashing. A part that
// normalizes to empty still occupies its join position, so its presence
// changes the hash. The same parts in the same order always produce the same
// hash.
func Hash(parts ...string) string {
	normalized := make([]string, 0, len(parts))

	for _, part := range parts {
		if part == "" {
			continue
		}

		normalized = append(normalized, Normalize(part))
	}

	sum := sha256.Sum256([]byte(strings.Join(normalized, " | ")))

	return hex.EncodeToString(sum[:])
}

// Normalize lowercases, strips characters outside the kept set, and
// collapses whitespace runs to single spaces.
func Normalize(s string) string {
	var b strings.Builder

	b.Grow(len(s))

	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case strings.ContainsRune(keptPunct, r):
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
