// Package envelope implements the sealed blob format that holds a whole
// thread history at rest.
//
// A sealed envelope is a small JSON document:
//
//	{
//	  "ids_sorted": "3:7",
//	  "salt_hex": "<hex of the 16 byte pair salt>",
//	  "nonce_b64": "<base64 of the 12 byte GCM nonce>",
//	  "ciphertext_b64": "<base64 of ciphertext||tag>",
//	  "kdf_info": "HKDF-SHA256 length=32 info='two-id-comm-key' deterministic-salt-from-ids"
//	}
//
// The ciphertext is AES-256-GCM without associated data. Every Seal draws a
// fresh nonce.
package envelope

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"pairchat/internal/cryptographic/encryption"
	"pairchat/internal/model"
	"pairchat/internal/protocol/pairkey"
)

// ErrAuthentication covers every way an envelope can fail to open: wrong
// pair, wrong key, corrupted or tampered file. Callers cannot tell them
// apart.
var ErrAuthentication = errors.New("envelope authentication failed")

func Seal(p model.NormalizedPair, key, plaintext []byte) (*model.SealedEnvelope, error) {
	nonce, ct, err := encryption.AEADSeal(key, plaintext, nil)
	if err != nil {
		return nil, fmt.Errorf("seal envelope: %w", err)
	}

	salt := pairkey.Salt(p)
	return &model.SealedEnvelope{
		IDsSorted:     p.String(),
		SaltHex:       hex.EncodeToString(salt[:]),
		NonceB64:      base64.StdEncoding.EncodeToString(nonce),
		CiphertextB64: base64.StdEncoding.EncodeToString(ct),
		KDFInfo:       pairkey.KDFInfo,
	}, nil
}

func Open(p model.NormalizedPair, key []byte, env *model.SealedEnvelope) ([]byte, error) {
	if env == nil || env.IDsSorted != p.String() || env.KDFInfo != pairkey.KDFInfo {
		return nil, ErrAuthentication
	}

	salt := pairkey.Salt(p)
	if env.SaltHex != hex.EncodeToString(salt[:]) {
		return nil, ErrAuthentication
	}

	nonce, err := base64.StdEncoding.Strict().DecodeString(env.NonceB64)
	if err != nil || len(nonce) != encryption.NonceSize {
		return nil, ErrAuthentication
	}
	ct, err := base64.StdEncoding.Strict().DecodeString(env.CiphertextB64)
	if err != nil {
		return nil, ErrAuthentication
	}

	pt, err := encryption.AEADOpen(key, nonce, ct, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return pt, nil
}

// SealPair derives the pair key and seals plaintext under it.
func SealPair(p model.NormalizedPair, plaintext []byte) (*model.SealedEnvelope, error) {
	key, err := pairkey.Derive(p)
	if err != nil {
		return nil, err
	}
	return Seal(p, key, plaintext)
}

// OpenPair derives the pair key and opens env with it.
func OpenPair(p model.NormalizedPair, env *model.SealedEnvelope) ([]byte, error) {
	key, err := pairkey.Derive(p)
	if err != nil {
		return nil, err
	}
	return Open(p, key, env)
}

func Marshal(env *model.SealedEnvelope) ([]byte, error) {
	return json.MarshalIndent(env, "", "  ")
}

// Unmarshal parses the file form. A document that is not an envelope is
// reported as ErrAuthentication, the same as a tampered one.
func Unmarshal(b []byte) (*model.SealedEnvelope, error) {
	var env model.SealedEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, ErrAuthentication
	}
	if env.NonceB64 == "" || env.CiphertextB64 == "" {
		return nil, ErrAuthentication
	}
	return &env, nil
}
