// Package spoolid generates short opaque identifiers for spools and shards.
package spoolid

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns an 8-character lowercase hex string (4 random bytes), unique
// enough to namespace spools per host.
func New() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("spoolid: crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}

// Nonce returns a short hex token used to disambiguate names created in the
// same instant (e.g. shard directories created back-to-back).
func Nonce() string {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("spoolid: crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}
