package pairing

import (
	"errors"
	"testing"

	"pairchat/internal/model"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		a, b    model.PartyID
		want    model.NormalizedPair
		wantErr bool
	}{
		{name: "ordered", a: 3, b: 7, want: model.NormalizedPair{Low: 3, High: 7}},
		{name: "reversed", a: 7, b: 3, want: model.NormalizedPair{Low: 3, High: 7}},
		{name: "self", a: 5, b: 5, wantErr: true},
		{name: "zero", a: 0, b: 5, wantErr: true},
		{name: "negative", a: 4, b: -1, wantErr: true},
		{name: "too large", a: 1, b: MaxPartyID + 1, wantErr: true},
		{name: "max", a: MaxPartyID, b: 1, want: model.NormalizedPair{Low: 1, High: MaxPartyID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.a, tt.b)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidIdentity) {
					t.Fatalf("expected ErrInvalidIdentity, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v want %v", got, tt.want)
			}
		})
	}
}

func TestThreadIDKnownValues(t *testing.T) {
	tests := []struct {
		low, high model.PartyID
		want      model.ThreadID
	}{
		{3, 7, "AACK_62"},
		{1, 2, "AAAI_8"},
		{10001, 10002, "VSIY_200080008"},
	}

	for _, tt := range tests {
		got := ThreadID(model.NormalizedPair{Low: tt.low, High: tt.high})
		if got != tt.want {
			t.Errorf("ThreadID(%d,%d) = %q want %q", tt.low, tt.high, got, tt.want)
		}
	}
}

func TestDeriveIsOrderIndependent(t *testing.T) {
	for a := model.PartyID(1); a <= 40; a++ {
		for b := model.PartyID(1); b <= 40; b++ {
			if a == b {
				continue
			}
			_, ab, err := Derive(a, b)
			if err != nil {
				t.Fatal(err)
			}
			_, ba, err := Derive(b, a)
			if err != nil {
				t.Fatal(err)
			}
			if ab != ba {
				t.Fatalf("Derive(%d,%d)=%q but Derive(%d,%d)=%q", a, b, ab, b, a, ba)
			}
		}
	}
}

func TestThreadIDIsUnique(t *testing.T) {
	seen := make(map[model.ThreadID]model.NormalizedPair)
	for l := model.PartyID(1); l < 120; l++ {
		for h := l + 1; h <= 120; h++ {
			p := model.NormalizedPair{Low: l, High: h}
			id := ThreadID(p)
			if prev, ok := seen[id]; ok {
				t.Fatalf("%v and %v both map to %q", prev, p, id)
			}
			seen[id] = p
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	pairs := []model.NormalizedPair{
		{Low: 1, High: 2},
		{Low: 3, High: 7},
		{Low: 10001, High: 10002},
		{Low: 1, High: MaxPartyID},
		{Low: MaxPartyID - 1, High: MaxPartyID},
		{Low: 123456, High: 7654321},
	}

	for _, p := range pairs {
		got, err := Parse(ThreadID(p))
		if err != nil {
			t.Fatalf("Parse(%q): %v", ThreadID(p), err)
		}
		if got != p {
			t.Errorf("Parse(%q) = %v want %v", ThreadID(p), got, p)
		}
	}
}

func TestParseRejects(t *testing.T) {
	ids := []model.ThreadID{
		"",
		"AACK",
		"AACK_",
		"ZZZZ_62",   // prefix does not match
		"AACK_062",  // non-canonical decimal
		"AACK_+62",  // sign
		"AAC_62",    // short prefix
		"AAAA_0",    // pair (0, 0)
		"AAAB_1",    // pair (1, 0) has high < low
		"AAAE_4",    // pair (1, 1) is a self pair
		"../etc_62", // path characters
		"AACK_99999999999999999999999",
	}

	for _, id := range ids {
		if _, err := Parse(id); !errors.Is(err, ErrInvalidThreadID) {
			t.Errorf("Parse(%q): expected ErrInvalidThreadID, got %v", id, err)
		}
	}
}
