package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultCollection is the collection name used for counter documents.
const DefaultCollection = "rate_limit_counters"

type counterDoc struct {
	ID        string      `bson:"_id"`
	Limiter   string      `bson:"limiter"`
	Qualifier string      `bson:"qualifier"`
	Calls     []time.Time `bson:"calls"`
}

// MongoStore keeps one counter document per (limiter name, qualifier) and
// applies the sliding-window read-modify-write inside a multi-document
// transaction. The transaction's write-conflict retry gives the required
// atomicity: two concurrent admits for the same qualifier serialize instead
// of both observing the same free slot.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore creates a store on the given collection. The collection's
// client is used to open transaction sessions.
func NewMongoStore(client *mongo.Client, coll *mongo.Collection) *MongoStore {
	if client == nil {
		panic("ratelimit: mongo client is required")
	}
	if coll == nil {
		panic("ratelimit: mongo collection is required")
	}
	return &MongoStore{client: client, coll: coll}
}

type admitOutcome struct {
	allowed bool
	count   int
	oldest  time.Time
}

// Admit implements Store.
func (s *MongoStore) Admit(ctx context.Context, qualifier string, now time.Time, cfg Config) (bool, int, time.Time, error) {
	session, err := s.client.StartSession()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("failed to start mongo session: %w", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		id := counterID(cfg.Name, qualifier)

		var doc counterDoc
		if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
			if !errors.Is(err, mongo.ErrNoDocuments) {
				return nil, err
			}
			doc = counterDoc{ID: id, Limiter: cfg.Name, Qualifier: qualifier}
		}

		cutoff := now.Add(-cfg.Period)
		kept := doc.Calls[:0]
		for _, ts := range doc.Calls {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}

		allowed := len(kept) < cfg.MaxCalls
		if allowed {
			kept = append(kept, now)
		}
		// The pruned list is written even on rejection so the counter
		// self-cleans instead of growing without bound.
		doc.Calls = kept

		if _, err := s.coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true)); err != nil {
			return nil, err
		}

		outcome := admitOutcome{allowed: allowed, count: len(kept)}
		if len(kept) > 0 {
			outcome.oldest = kept[0]
		}
		return outcome, nil
	})
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit transaction failed: %w", err)
	}

	outcome := result.(admitOutcome)
	return outcome.allowed, outcome.count, outcome.oldest, nil
}

// Reset implements Store.
func (s *MongoStore) Reset(ctx context.Context, qualifier string, cfg Config) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": counterID(cfg.Name, qualifier)})
	if err != nil {
		return fmt.Errorf("failed to reset rate limit counter: %w", err)
	}
	return nil
}

func counterID(name, qualifier string) string {
	return name + ":" + qualifier
}
