// Package pairkey derives the symmetric key of a thread from its two
// participants. Either participant re-derives the same key from the pair
// alone, so nothing is ever exchanged or stored. Secrecy therefore rests on
// who is allowed to call Derive for a pair.
package pairkey

import (
	"crypto/sha256"

	"pairchat/internal/cryptographic/encryption"
	"pairchat/internal/cryptographic/kdf"
	"pairchat/internal/model"
)

const (
	Info    = "two-id-comm-key"
	KDFInfo = "HKDF-SHA256 length=32 info='two-id-comm-key' deterministic-salt-from-ids"

	SaltSize = 16
)

// Salt is the first 16 bytes of SHA-256("low:high").
func Salt(p model.NormalizedPair) [SaltSize]byte {
	sum := sha256.Sum256([]byte(p.String()))
	var salt [SaltSize]byte
	copy(salt[:], sum[:SaltSize])
	return salt
}

// Derive returns HKDF-SHA256("low:high", Salt(p), Info) truncated to 32 bytes.
func Derive(p model.NormalizedPair) ([]byte, error) {
	salt := Salt(p)
	return kdf.Key([]byte(p.String()), salt[:], []byte(Info), encryption.KeySize)
}
