package model

import (
	"fmt"
	"time"
)

type (
	// PartyID identifies a principal in the external user directory.
	PartyID int64

	// ThreadID is derived from a NormalizedPair, see package pairing.
	ThreadID string

	// NormalizedPair is an unordered pair of distinct parties stored with
	// Low < High.
	NormalizedPair struct {
		Low  PartyID
		High PartyID
	}

	ThreadRecord struct {
		ThreadID       ThreadID  `json:"thread_id" bson:"_id"`
		Participant1   PartyID   `json:"participant1_id" bson:"participant1"`
		Participant2   PartyID   `json:"participant2_id" bson:"participant2"`
		CreatedAt      time.Time `json:"created_at" bson:"created_at"`
		LastActivityAt time.Time `json:"last_activity_at" bson:"last_activity_at"`
	}
)

// String renders the pair as "low:high", the canonical form used for key
// derivation and the envelope ids_sorted field.
func (p NormalizedPair) String() string {
	return fmt.Sprintf("%d:%d", p.Low, p.High)
}

func (p NormalizedPair) Has(id PartyID) bool {
	return id == p.Low || id == p.High
}

// Other returns the counterpart of id. The result is meaningless when id is
// not a member of the pair.
func (p NormalizedPair) Other(id PartyID) PartyID {
	if id == p.Low {
		return p.High
	}
	return p.Low
}

func (r *ThreadRecord) Pair() NormalizedPair {
	return NormalizedPair{Low: r.Participant1, High: r.Participant2}
}

func (r *ThreadRecord) IsParticipant(id PartyID) bool {
	return r.Pair().Has(id)
}
