package model

import "go.mongodb.org/mongo-driver/bson/primitive"

type (
	// User is the part of a directory entry this service reads.
	User struct {
		ID      primitive.ObjectID `bson:"_id,omitempty" json:"-"`
		PartyID PartyID            `bson:"party_id" json:"party_id"`
		Name    string             `bson:"name" json:"name"`
	}
)
