package claims

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const defaultCollection = "user_claims"

type claimsDoc struct {
	UserID    string    `bson:"_id"`
	Claims    Claims    `bson:"claims"`
	RevokedAt time.Time `bson:"revoked_at,omitempty"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoProvider stores claim sets in a MongoDB collection. Token
// issuance reads the document and rejects refresh tokens minted before
// RevokedAt, which is how a revocation forces clients onto fresh claims.
type MongoProvider struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoProvider creates a provider backed by the given database.
// Panics if db is nil.
func NewMongoProvider(db *mongo.Database) *MongoProvider {
	if db == nil {
		panic("claims: mongo database cannot be nil")
	}
	return &MongoProvider{
		collection: db.Collection(defaultCollection),
		now:        time.Now,
	}
}

// SetNowFunc overrides the clock. Intended for tests.
func (p *MongoProvider) SetNowFunc(now func() time.Time) {
	p.now = now
}

func (p *MongoProvider) GetClaims(ctx context.Context, userID string) (Claims, error) {
	if userID == "" {
		return Claims{}, ErrUserIDRequired
	}

	var doc claimsDoc
	err := p.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Claims{}, nil
	}
	if err != nil {
		return Claims{}, fmt.Errorf("failed to load claims: %w", err)
	}
	return doc.Claims, nil
}

func (p *MongoProvider) SetClaims(ctx context.Context, userID string, c Claims) error {
	if userID == "" {
		return ErrUserIDRequired
	}

	_, err := p.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"claims": c, "updated_at": p.now().UTC()}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to write claims: %w", err)
	}
	return nil
}

func (p *MongoProvider) RevokeRefreshTokens(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUserIDRequired
	}

	_, err := p.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"revoked_at": p.now().UTC()}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return nil
}
