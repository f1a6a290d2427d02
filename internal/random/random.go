package random

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// Cookie returns a fresh ping cookie. Peers prove ownership of their
// address by echoing it back, so it has to be unpredictable.
func Cookie() string {
	return uuid.NewString()
}

// String returns a random hex string with n as its length.
func String(n int) string {
	b := Bytes((n + 1) / 2)
	return hex.EncodeToString(b)[:n]
}

// Bytes returns a random byte slice of specified length.
func Bytes(n int) []byte {
	b := make([]byte, n)
	Fill(b)
	return b
}

// Fill fills buffer with random bytes.
func Fill(buf []byte) {
	// Rand reader returns no errors.
	_, _ = rand.Read(buf)
}
