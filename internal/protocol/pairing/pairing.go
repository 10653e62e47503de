// Package pairing maps two party identifiers to the canonical thread between
// them. Everything here is pure and performs no I/O.
package pairing

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"pairchat/internal/model"
)

const (
	// MaxPartyID bounds the identifier range so that Pair never overflows
	// uint64.
	MaxPartyID model.PartyID = math.MaxInt32

	prefixWidth = 4
	letters     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var (
	ErrInvalidIdentity = errors.New("invalid identity")
	ErrInvalidThreadID = errors.New("invalid thread id")
)

// Normalize orders a and b. A party cannot pair with itself.
func Normalize(a, b model.PartyID) (model.NormalizedPair, error) {
	if a <= 0 || b <= 0 {
		return model.NormalizedPair{}, fmt.Errorf("%w: ids must be positive", ErrInvalidIdentity)
	}
	if a > MaxPartyID || b > MaxPartyID {
		return model.NormalizedPair{}, fmt.Errorf("%w: ids must not exceed %d", ErrInvalidIdentity, MaxPartyID)
	}
	if a == b {
		return model.NormalizedPair{}, fmt.Errorf("%w: cannot pair a party with itself", ErrInvalidIdentity)
	}
	if a > b {
		a, b = b, a
	}
	return model.NormalizedPair{Low: a, High: b}, nil
}

// Pair is the Cantor pairing of (low, high):
// (low² + low + 2·low·high + 3·high + high²) / 2.
func Pair(p model.NormalizedPair) uint64 {
	l, h := uint64(p.Low), uint64(p.High)
	return (l*l + l + 2*l*h + 3*h + h*h) / 2
}

// ThreadID renders Pair(p) as a four letter base-26 prefix, an underscore
// and the decimal pairing value, e.g. (3, 7) -> "AACK_62".
func ThreadID(p model.NormalizedPair) model.ThreadID {
	n := Pair(p)
	return model.ThreadID(prefix(n) + "_" + strconv.FormatUint(n, 10))
}

// Derive normalizes a and b and returns both the pair and its thread id.
func Derive(a, b model.PartyID) (model.NormalizedPair, model.ThreadID, error) {
	p, err := Normalize(a, b)
	if err != nil {
		return model.NormalizedPair{}, "", err
	}
	return p, ThreadID(p), nil
}

// Parse recovers the pair a thread id was derived from. Any id that
// ThreadID could not have produced is rejected.
func Parse(id model.ThreadID) (model.NormalizedPair, error) {
	head, tail, ok := strings.Cut(string(id), "_")
	if !ok || len(head) != prefixWidth || tail == "" {
		return model.NormalizedPair{}, fmt.Errorf("%w: %q", ErrInvalidThreadID, id)
	}

	n, err := strconv.ParseUint(tail, 10, 64)
	if err != nil || n > maxPairing() {
		return model.NormalizedPair{}, fmt.Errorf("%w: %q", ErrInvalidThreadID, id)
	}

	l, h := unpair(n)
	p, err := Normalize(model.PartyID(l), model.PartyID(h))
	if err != nil || p.Low != model.PartyID(l) {
		return model.NormalizedPair{}, fmt.Errorf("%w: %q", ErrInvalidThreadID, id)
	}

	// rejects a mismatched prefix and non-canonical decimals ("+62", "062")
	if ThreadID(p) != id {
		return model.NormalizedPair{}, fmt.Errorf("%w: %q", ErrInvalidThreadID, id)
	}
	return p, nil
}

func prefix(n uint64) string {
	var b [prefixWidth]byte
	for i := prefixWidth - 1; i >= 0; i-- {
		b[i] = letters[n%26]
		n /= 26
	}
	return string(b[:])
}

func maxPairing() uint64 {
	return Pair(model.NormalizedPair{Low: MaxPartyID - 1, High: MaxPartyID})
}

func triangle(w uint64) uint64 {
	return w * (w + 1) / 2
}

// unpair inverts the Cantor pairing: z = w(w+1)/2 + h with w = l + h.
func unpair(z uint64) (l, h uint64) {
	w := uint64((math.Sqrt(8*float64(z)+1) - 1) / 2)
	for w > 0 && triangle(w) > z {
		w--
	}
	for triangle(w+1) <= z {
		w++
	}
	h = z - triangle(w)
	l = w - h
	return l, h
}
