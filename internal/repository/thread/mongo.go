package thread

import (
	"context"
	"time"

	"pairchat/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type (
	MongoRepo struct {
		threads *mongo.Collection
		audit   *mongo.Collection
	}
)

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{
		threads: db.Collection("message_threads"),
		audit:   db.Collection("audit_log"),
	}
}

func (r *MongoRepo) GetThread(ctx context.Context, id model.ThreadID) (*model.ThreadRecord, error) {
	filter := bson.M{
		"_id": id,
	}

	var rec model.ThreadRecord
	err := r.threads.FindOne(ctx, filter).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// CreateThread inserts rec unless a record with the same id exists. The
// thread id is the document _id, so concurrent creators race on the unique
// index and exactly one of them reports created.
func (r *MongoRepo) CreateThread(ctx context.Context, rec *model.ThreadRecord) (bool, error) {
	_, err := r.threads.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *MongoRepo) TouchThread(ctx context.Context, id model.ThreadID, at time.Time) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$max": bson.M{"last_activity_at": at}}
	_, err := r.threads.UpdateOne(ctx, filter, update)
	return err
}

func (r *MongoRepo) RecordAudit(ctx context.Context, entry model.AuditEntry) error {
	_, err := r.audit.InsertOne(ctx, entry)
	return err
}
