package pairkey

import (
	"bytes"
	"encoding/hex"
	"testing"

	"pairchat/internal/model"
	"pairchat/internal/protocol/pairing"
)

func TestDeriveKnownVector(t *testing.T) {
	p := model.NormalizedPair{Low: 3, High: 7}

	salt := Salt(p)
	if got := hex.EncodeToString(salt[:]); got != "cde46093ade92bd501aa6fb381385c17" {
		t.Errorf("salt = %s", got)
	}

	key, err := Derive(p)
	if err != nil {
		t.Fatal(err)
	}
	if got := hex.EncodeToString(key); got != "2a4e555c479c89a9eae1bb4a937662b4c3568fd20d80d58e81679ef2d0ff1164" {
		t.Errorf("key = %s", got)
	}
}

func TestDeriveIsOrderIndependent(t *testing.T) {
	for _, ids := range [][2]model.PartyID{{3, 7}, {1, 2}, {42, 9}, {1, pairing.MaxPartyID}} {
		ab, err := pairing.Normalize(ids[0], ids[1])
		if err != nil {
			t.Fatal(err)
		}
		ba, err := pairing.Normalize(ids[1], ids[0])
		if err != nil {
			t.Fatal(err)
		}
		k1, _ := Derive(ab)
		k2, _ := Derive(ba)
		if !bytes.Equal(k1, k2) {
			t.Errorf("keys differ for %v", ids)
		}
		if len(k1) != 32 {
			t.Errorf("key length %d", len(k1))
		}
	}
}

func TestDeriveDistinctPairs(t *testing.T) {
	seen := make(map[string]model.NormalizedPair)
	for l := model.PartyID(1); l < 25; l++ {
		for h := l + 1; h <= 25; h++ {
			p := model.NormalizedPair{Low: l, High: h}
			k, err := Derive(p)
			if err != nil {
				t.Fatal(err)
			}
			if prev, ok := seen[string(k)]; ok {
				t.Fatalf("%v and %v derive the same key", prev, p)
			}
			seen[string(k)] = p
		}
	}
}
