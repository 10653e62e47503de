package envelope

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"pairchat/internal/model"
	"pairchat/internal/protocol/pairkey"
)

var pair37 = model.NormalizedPair{Low: 3, High: 7}

func mustKey(t *testing.T, p model.NormalizedPair) []byte {
	t.Helper()
	k, err := pairkey.Derive(p)
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := mustKey(t, pair37)
	for _, pt := range []string{"[]", `[{"content":"hello"}]`, ""} {
		env, err := Seal(pair37, key, []byte(pt))
		if err != nil {
			t.Fatal(err)
		}
		if env.IDsSorted != "3:7" {
			t.Errorf("ids_sorted = %q", env.IDsSorted)
		}
		if len(env.SaltHex) != 32 {
			t.Errorf("salt_hex length %d", len(env.SaltHex))
		}
		if env.KDFInfo != pairkey.KDFInfo {
			t.Errorf("kdf_info = %q", env.KDFInfo)
		}

		raw, err := Marshal(env)
		if err != nil {
			t.Fatal(err)
		}
		parsed, err := Unmarshal(raw)
		if err != nil {
			t.Fatal(err)
		}
		got, err := Open(pair37, key, parsed)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if string(got) != pt {
			t.Errorf("got %q want %q", got, pt)
		}
	}
}

func TestSealUsesFreshNonce(t *testing.T) {
	key := mustKey(t, pair37)
	a, _ := Seal(pair37, key, []byte("[]"))
	b, _ := Seal(pair37, key, []byte("[]"))
	if a.NonceB64 == b.NonceB64 {
		t.Error("nonce reused")
	}
}

func TestOpenWrongPair(t *testing.T) {
	env, err := SealPair(pair37, []byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	other := model.NormalizedPair{Low: 3, High: 8}
	if _, err := OpenPair(other, env); !errors.Is(err, ErrAuthentication) {
		t.Errorf("wrong pair: expected ErrAuthentication, got %v", err)
	}

	// right pair label, wrong key
	if _, err := Open(pair37, mustKey(t, other), env); !errors.Is(err, ErrAuthentication) {
		t.Errorf("wrong key: expected ErrAuthentication, got %v", err)
	}

	// the message must not reveal which check failed
	_, errPair := OpenPair(other, env)
	_, errKey := Open(pair37, mustKey(t, other), env)
	if errPair.Error() != errKey.Error() {
		t.Errorf("distinguishable errors: %q vs %q", errPair, errKey)
	}
}

func TestOpenDetectsTampering(t *testing.T) {
	key := mustKey(t, pair37)
	env, err := Seal(pair37, key, []byte(`[{"content":"hello"}]`))
	if err != nil {
		t.Fatal(err)
	}

	ct, _ := base64.StdEncoding.DecodeString(env.CiphertextB64)
	for i := range ct {
		mutated := append([]byte(nil), ct...)
		mutated[i] ^= 0x01
		cp := *env
		cp.CiphertextB64 = base64.StdEncoding.EncodeToString(mutated)
		if _, err := Open(pair37, key, &cp); !errors.Is(err, ErrAuthentication) {
			t.Fatalf("ciphertext byte %d flipped: %v", i, err)
		}
	}

	nonce, _ := base64.StdEncoding.DecodeString(env.NonceB64)
	for i := range nonce {
		mutated := append([]byte(nil), nonce...)
		mutated[i] ^= 0x01
		cp := *env
		cp.NonceB64 = base64.StdEncoding.EncodeToString(mutated)
		if _, err := Open(pair37, key, &cp); !errors.Is(err, ErrAuthentication) {
			t.Fatalf("nonce byte %d flipped: %v", i, err)
		}
	}
}

func TestOpenRejectsMalformedFields(t *testing.T) {
	key := mustKey(t, pair37)
	base, err := Seal(pair37, key, []byte("[]"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(e *model.SealedEnvelope)
	}{
		{"bad nonce base64", func(e *model.SealedEnvelope) { e.NonceB64 = "!!!" }},
		{"short nonce", func(e *model.SealedEnvelope) { e.NonceB64 = base64.StdEncoding.EncodeToString([]byte("short")) }},
		{"bad ciphertext base64", func(e *model.SealedEnvelope) { e.CiphertextB64 = "%%%" }},
		{"salt mismatch", func(e *model.SealedEnvelope) { e.SaltHex = "00000000000000000000000000000000" }},
		{"ids mismatch", func(e *model.SealedEnvelope) { e.IDsSorted = "7:3" }},
		{"unknown kdf", func(e *model.SealedEnvelope) { e.KDFInfo = "scrypt" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := *base
			tt.mutate(&cp)
			if _, err := Open(pair37, key, &cp); !errors.Is(err, ErrAuthentication) {
				t.Errorf("expected ErrAuthentication, got %v", err)
			}
		})
	}

	if _, err := Open(pair37, key, nil); !errors.Is(err, ErrAuthentication) {
		t.Errorf("nil envelope: %v", err)
	}
}

func TestOpenRejectsNonCanonicalBase64(t *testing.T) {
	key := mustKey(t, pair37)
	// 3 bytes of plaintext plus the tag leave one byte in the last base64
	// quantum, so the final data character carries four unused bits.
	env, err := Seal(pair37, key, []byte("[1]"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(env.CiphertextB64, "==") {
		t.Fatalf("ciphertext %q has no padding", env.CiphertextB64)
	}
	if _, err := Open(pair37, key, env); err != nil {
		t.Fatalf("canonical envelope: %v", err)
	}

	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	b64 := []byte(env.CiphertextB64)
	last := len(b64) - 3
	b64[last] = alphabet[strings.IndexByte(alphabet, b64[last])^1]

	// the lenient decoder maps both spellings to the same bytes
	lenient, err := base64.StdEncoding.DecodeString(string(b64))
	if err != nil {
		t.Fatal(err)
	}
	canonical, _ := base64.StdEncoding.DecodeString(env.CiphertextB64)
	if !bytes.Equal(lenient, canonical) {
		t.Fatal("altered padding bits changed the decoded bytes")
	}

	cp := *env
	cp.CiphertextB64 = string(b64)
	if _, err := Open(pair37, key, &cp); !errors.Is(err, ErrAuthentication) {
		t.Errorf("non canonical ciphertext: expected ErrAuthentication, got %v", err)
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	for _, b := range [][]byte{nil, []byte("not json"), []byte("[]"), []byte(`{"ids_sorted":"3:7"}`)} {
		if _, err := Unmarshal(b); !errors.Is(err, ErrAuthentication) {
			t.Errorf("Unmarshal(%q): expected ErrAuthentication, got %v", b, err)
		}
	}
}

func TestMarshalFieldNames(t *testing.T) {
	env, err := SealPair(pair37, []byte("[]"))
	if err != nil {
		t.Fatal(err)
	}
	raw, err := Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{`"ids_sorted"`, `"salt_hex"`, `"nonce_b64"`, `"ciphertext_b64"`, `"kdf_info"`} {
		if !bytes.Contains(raw, []byte(field)) {
			t.Errorf("missing field %s in %s", field, raw)
		}
	}
}
