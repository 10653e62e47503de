package encryption

import (
	"bytes"
	"errors"
	"testing"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, KeySize)
}

func TestAEADRoundTrip(t *testing.T) {
	key := testKey(1)
	for _, pt := range [][]byte{nil, []byte("[]"), bytes.Repeat([]byte("x"), 4096)} {
		nonce, ct, err := AEADSeal(key, pt, nil)
		if err != nil {
			t.Fatalf("seal: %v", err)
		}
		if len(nonce) != NonceSize {
			t.Fatalf("nonce size %d", len(nonce))
		}
		got, err := AEADOpen(key, nonce, ct, nil)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if !bytes.Equal(got, pt) {
			t.Errorf("round trip mismatch")
		}
	}
}

func TestAEADFreshNonce(t *testing.T) {
	key := testKey(2)
	n1, c1, _ := AEADSeal(key, []byte("same"), nil)
	n2, c2, _ := AEADSeal(key, []byte("same"), nil)
	if bytes.Equal(n1, n2) {
		t.Error("nonce reused across seals")
	}
	if bytes.Equal(c1, c2) {
		t.Error("identical ciphertexts for identical plaintexts")
	}
}

func TestAEADOpenFailures(t *testing.T) {
	key := testKey(3)
	nonce, ct, err := AEADSeal(key, []byte("hello"), nil)
	if err != nil {
		t.Fatal(err)
	}

	flipped := append([]byte(nil), ct...)
	flipped[0] ^= 0x01
	badNonce := append([]byte(nil), nonce...)
	badNonce[len(badNonce)-1] ^= 0x80

	tests := []struct {
		name       string
		key, nonce []byte
		ct         []byte
	}{
		{"wrong key", testKey(4), nonce, ct},
		{"short key", key[:16], nonce, ct},
		{"flipped ciphertext", key, nonce, flipped},
		{"flipped nonce", key, badNonce, ct},
		{"short nonce", key, nonce[:8], ct},
		{"truncated", key, nonce, ct[:len(ct)-1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := AEADOpen(tt.key, tt.nonce, tt.ct, nil); !errors.Is(err, ErrOpen) {
				t.Errorf("expected ErrOpen, got %v", err)
			}
		})
	}
}
