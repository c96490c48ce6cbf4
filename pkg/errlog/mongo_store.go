package errlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultCollection is the collection name used when none is specified.
const DefaultCollection = "error_log"

// MongoStore persists entries in a MongoDB collection, one document per
// deduplicated (function_name, message) pair within the dedupe window.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a store on the given collection.
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	if coll == nil {
		panic("errlog: mongo collection is required")
	}
	return &MongoStore{coll: coll}
}

// EnsureIndexes creates the compound index backing the dedupe-window
// query. It is not unique: a row per pair per window is the intended
// shape, and two rows from racing first reports are tolerated because
// later reports increment whichever row the window filter matches.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "function_name", Value: 1},
			{Key: "message", Value: 1},
			{Key: "last_seen", Value: -1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create error log indexes: %w", err)
	}
	return nil
}

// Record upserts an occurrence. The dedupe match and the occurrence increment
// happen in a single atomic update, so concurrent reports of the same error
// never create duplicate rows inside the window.
func (s *MongoStore) Record(ctx context.Context, entry Entry, window time.Duration) error {
	now := time.Now().UTC()

	filter := bson.M{
		"function_name": entry.FunctionName,
		"message":       entry.Message,
		"last_seen":     bson.M{"$gte": now.Add(-window)},
	}

	update := bson.M{
		"$inc": bson.M{"occurrences": 1},
		"$set": bson.M{"last_seen": now},
		"$setOnInsert": bson.M{
			"_id":           uuid.NewString(),
			"stack":         entry.Stack,
			"severity":      entry.Severity,
			"bucket":        entry.Bucket,
			"human_message": entry.HumanMessage,
			"first_seen":    now,
		},
	}

	if _, err := s.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to record error log entry: %w", err)
	}

	return nil
}
