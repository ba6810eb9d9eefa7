// Package anonymize produces salted one-way digests of caller-supplied
// pseudonymous identifiers. Raw identifiers never leave this package:
// everything recorded downstream carries only the digest.
package anonymize

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// DefaultSalt is used when no salt is configured. Deployments should set
// their own salt so digests are not comparable across installations.
const DefaultSalt = "edupulse-insights"

// Anonymizer computes keyed BLAKE2b digests of raw identifiers.
type Anonymizer struct {
	salt []byte
}

// New creates an Anonymizer with the given salt. An empty salt falls back
// to DefaultSalt.
func New(salt string) *Anonymizer {
	if strings.TrimSpace(salt) == "" {
		salt = DefaultSalt
	}
	key := salt
	// BLAKE2b keys are capped at 64 bytes.
	if len(key) > 64 {
		key = key[:64]
	}
	return &Anonymizer{salt: []byte(key)}
}

// Hash returns the hex-encoded digest of rawID. The result is deterministic
// for a given salt, so the same caller always maps to the same hash.
func (a *Anonymizer) Hash(rawID string) string {
	h, err := blake2b.New256(a.salt)
	if err != nil {
		// Only reachable with a key longer than 64 bytes, which New prevents.
		panic(err)
	}
	h.Write([]byte(rawID))
	return hex.EncodeToString(h.Sum(nil))
}

// IsHash reports whether s looks like a digest produced by Hash
// (64 lowercase hex characters).
func IsHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
