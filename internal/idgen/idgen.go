// Package idgen generates random identifiers for snapshots, loan products,
// applications and requests.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// Hex returns 2*n random hex characters.
func Hex(n int) string {
	b := make([]byte, n)
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// WithPrefix returns prefix followed by 24 random hex characters,
// e.g. "snap_", "app_", "prod_". The result always passes
// validation.IsValidID for prefixes of up to 40 characters.
func WithPrefix(prefix string) string {
	return prefix + Hex(12)
}

// RequestID returns a 32-character request identifier.
func RequestID() string {
	return Hex(16)
}
