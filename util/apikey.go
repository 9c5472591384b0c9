package util

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateAPIKey returns a fresh service credential: two 32-hex-character
// random tokens joined with a dash.
func GenerateAPIKey() string {
	return randomHex(16) + "-" + randomHex(16)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	// rand.Read only fails when the platform entropy source is broken,
	// which is not recoverable here.
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
