package random

import (
	"crypto/rand"
	"encoding/hex"
)

// NewRandomString returns a hex string of the requested length sourced
// from crypto/rand. Used for draw seeds, so it must not be predictable.
func NewRandomString(size int) string {
	buf := make([]byte, (size+1)/2)

	if _, err := rand.Read(buf); err != nil {
		panic("random: failed to read entropy: " + err.Error())
	}

	return hex.EncodeToString(buf)[:size]
}
