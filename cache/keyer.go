package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key generates a deterministic store key from an ordered list of parts.
//
// Format: <scope>:<hash> where hash is the first 16 hex characters of
// SHA-256 over the NUL-joined parts. Hashing keeps credential material
// (API keys, tokens) out of in-memory map keys and error output.
func Key(scope string, parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return scope + ":" + hex.EncodeToString(h[:8])
}
