package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const defaultCollection = "memberships"

// MongoStore persists membership records in a MongoDB collection, one
// document per user keyed by user id.
type MongoStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoStore creates a store backed by the given database.
// Panics if db is nil.
func NewMongoStore(db *mongo.Database) *MongoStore {
	if db == nil {
		panic("membership: mongo database cannot be nil")
	}
	return &MongoStore{
		collection: db.Collection(defaultCollection),
		now:        time.Now,
	}
}

// SetNowFunc overrides the clock used for update timestamps. Intended
// for tests.
func (s *MongoStore) SetNowFunc(now func() time.Time) {
	s.now = now
}

// EnsureIndexes creates the secondary indexes lookups depend on. Safe
// to call on every startup.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "customer_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "member", Value: 1}, {Key: "cancel_at", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "manual_claim_sync_required", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create membership indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	var record Record
	err := s.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load membership record: %w", err)
	}
	return &record, nil
}

func (s *MongoStore) GetByCustomerID(ctx context.Context, customerID string) (*Record, error) {
	if customerID == "" {
		return nil, ErrNotFound
	}

	var record Record
	err := s.collection.FindOne(ctx, bson.M{"customer_id": customerID}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load membership record by customer: %w", err)
	}
	return &record, nil
}

// Apply merges the update into the user's document with a single
// pipeline update, upserting when the record does not exist yet.
// CustomerID is written through $ifNull so an existing customer id
// always wins over the incoming one.
func (s *MongoStore) Apply(ctx context.Context, userID string, update Update) (*Record, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	if update.IsZero() {
		return nil, ErrEmptyUpdate
	}

	set := bson.M{"updated_at": s.now().UTC()}
	var unset []string

	if update.Member != nil {
		set["member"] = *update.Member
	}
	if update.SubscriptionType != nil {
		if *update.SubscriptionType == "" {
			unset = append(unset, "subscription_type")
		} else {
			set["subscription_type"] = *update.SubscriptionType
		}
	}
	if update.SubscriptionID != nil {
		if *update.SubscriptionID == "" {
			unset = append(unset, "subscription_id")
		} else {
			set["subscription_id"] = *update.SubscriptionID
		}
	}
	if update.CustomerID != "" {
		set["customer_id"] = bson.M{"$ifNull": bson.A{"$customer_id", update.CustomerID}}
	}
	if update.ClearCancelAt {
		unset = append(unset, "cancel_at")
	} else if update.CancelAt != nil {
		set["cancel_at"] = update.CancelAt.UTC()
	}
	if update.Status != nil {
		set["status"] = *update.Status
	}
	if update.Admin != nil {
		set["admin"] = *update.Admin
	}
	if update.ManualClaimSyncRequired != nil {
		if *update.ManualClaimSyncRequired {
			set["manual_claim_sync_required"] = true
		} else {
			unset = append(unset, "manual_claim_sync_required")
		}
	}
	if update.EventWatermark != nil {
		set["event_watermark"] = update.EventWatermark.UTC()
	}

	pipeline := mongo.Pipeline{bson.D{{Key: "$set", Value: set}}}
	if len(unset) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$unset", Value: unset}})
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var record Record
	err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": userID}, pipeline, opts).Decode(&record)
	if err != nil {
		return nil, errors.Join(ErrFailedToApply, err)
	}
	return &record, nil
}

func (s *MongoStore) ListExpired(ctx context.Context, now time.Time) ([]*Record, error) {
	filter := bson.M{
		"member":    true,
		"cancel_at": bson.M{"$lte": now.UTC()},
	}
	return s.list(ctx, filter)
}

func (s *MongoStore) ListManualSyncRequired(ctx context.Context) ([]*Record, error) {
	return s.list(ctx, bson.M{"manual_claim_sync_required": true})
}

func (s *MongoStore) CountMembers(ctx context.Context) (int64, error) {
	count, err := s.collection.CountDocuments(ctx, bson.M{
		"member": true,
		"admin":  bson.M{"$ne": true},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

func (s *MongoStore) list(ctx context.Context, filter bson.M) ([]*Record, error) {
	cursor, err := s.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query membership records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode membership records: %w", err)
	}
	return records, nil
}
