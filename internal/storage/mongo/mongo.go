// Package mongo provides a MongoDB-backed implementation of the
// storage.Store interface. Collections: bills (members embedded), shortlinks
// (token records, unique token index) and payment_events_processed (unique
// transaction id index backing the idempotency set).
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/group-2-odp-bni/be-capstone-project/internal/models"
	"github.com/group-2-odp-bni/be-capstone-project/internal/storage"
)

// Ensure MongoStore implements storage.Store
var _ storage.Store = (*MongoStore)(nil)

// MongoStore implements storage.Store using MongoDB.
type MongoStore struct {
	client    *mongo.Client
	bills     *mongo.Collection
	tokens    *mongo.Collection
	processed *mongo.Collection
}

// New connects to MongoDB and ensures the indexes the store relies on.
func New(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(5 * time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:    client,
		bills:     db.Collection("bills"),
		tokens:    db.Collection("shortlinks"),
		processed: db.Collection("payment_events_processed"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.bills.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "creator_user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "members.ref.user_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create bill indexes: %w", err)
	}
	_, err = s.tokens.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "token", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create token index: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

// Ping reports whether MongoDB is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// CreateBill persists a new bill document.
func (s *MongoStore) CreateBill(ctx context.Context, bill *models.Bill) error {
	if bill.Version == 0 {
		bill.Version = 1
	}
	if _, err := s.bills.InsertOne(ctx, bill); err != nil {
		return fmt.Errorf("failed to insert bill: %w", err)
	}
	return nil
}

// GetBill retrieves a bill by ID.
func (s *MongoStore) GetBill(ctx context.Context, billID string) (*models.Bill, error) {
	bill := &models.Bill{}
	err := s.bills.FindOne(ctx, bson.M{"_id": billID}).Decode(bill)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}
	return bill, nil
}

// UpdateBill replaces the bill document, conditioned on the persisted
// version still matching expectedVersion.
func (s *MongoStore) UpdateBill(ctx context.Context, bill *models.Bill, expectedVersion int64) error {
	bill.Version = expectedVersion + 1
	res, err := s.bills.ReplaceOne(ctx,
		bson.M{"_id": bill.ID, "version": expectedVersion},
		bill,
	)
	if err != nil {
		bill.Version = expectedVersion
		return fmt.Errorf("failed to update bill: %w", err)
	}
	if res.MatchedCount == 0 {
		bill.Version = expectedVersion
		n, err := s.bills.CountDocuments(ctx, bson.M{"_id": bill.ID})
		if err != nil {
			return fmt.Errorf("failed to check bill existence: %w", err)
		}
		if n == 0 {
			return storage.ErrNotFound
		}
		return storage.ErrConflict
	}
	return nil
}

// ListOwned returns bills created by the user, newest first.
func (s *MongoStore) ListOwned(ctx context.Context, creatorUserID string, f storage.ListFilter) ([]*models.Bill, error) {
	filter := bson.M{"creator_user_id": creatorUserID}
	if f.Status != "" && f.Status != "ALL" {
		filter["status"] = f.Status
	}
	if f.Query != "" {
		filter["title"] = bson.M{"$regex": f.Query, "$options": "i"}
	}
	return s.findBills(ctx, filter, f)
}

// ListAssigned returns bills where the user appears as a member, newest
// first. The status filter applies to the user's member entry.
func (s *MongoStore) ListAssigned(ctx context.Context, userID string, f storage.ListFilter) ([]*models.Bill, error) {
	filter := bson.M{"members.ref.user_id": userID}
	if f.Status != "" && f.Status != "ALL" {
		filter["members"] = bson.M{"$elemMatch": bson.M{
			"ref.user_id": userID,
			"status":      f.Status,
		}}
		delete(filter, "members.ref.user_id")
	}
	return s.findBills(ctx, filter, f)
}

func (s *MongoStore) findBills(ctx context.Context, filter bson.M, f storage.ListFilter) ([]*models.Bill, error) {
	if f.Cursor > 0 {
		filter["created_at"] = bson.M{"$lt": f.Cursor}
	}
	limit := int64(f.Limit)
	if limit <= 0 {
		limit = 20
	}
	cur, err := s.bills.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query bills: %w", err)
	}
	defer cur.Close(ctx)

	var bills []*models.Bill
	for cur.Next(ctx) {
		bill := &models.Bill{}
		if err := cur.Decode(bill); err != nil {
			return nil, fmt.Errorf("failed to decode bill: %w", err)
		}
		bills = append(bills, bill)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bills: %w", err)
	}
	return bills, nil
}

// InsertTokens bulk-inserts token records unordered, so a duplicate key on
// one record does not prevent the others from being stored.
func (s *MongoStore) InsertTokens(ctx context.Context, tokens []*models.Token) error {
	if len(tokens) == 0 {
		return nil
	}
	docs := make([]any, len(tokens))
	for i, tok := range tokens {
		docs[i] = tok
	}
	_, err := s.tokens.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to insert tokens: %w", err)
	}
	return nil
}

// GetToken retrieves a token record by its token string.
func (s *MongoStore) GetToken(ctx context.Context, token string) (*models.Token, error) {
	tok := &models.Token{}
	err := s.tokens.FindOne(ctx, bson.M{"token": token}).Decode(tok)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return tok, nil
}

// MarkEventProcessed inserts the transaction id into the processed-events
// collection, reporting whether this call was the first sighting.
func (s *MongoStore) MarkEventProcessed(ctx context.Context, transactionID, note string) (bool, error) {
	_, err := s.processed.InsertOne(ctx, bson.M{
		"_id":  transactionID,
		"note": note,
		"at":   time.Now().Unix(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to record processed event: %w", err)
	}
	return true, nil
}
