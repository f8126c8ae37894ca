package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flowforge/session-gateway/internal/core/domain"
)

const ledgerCollection = "credit_ledger"

// LedgerRepository persists the credit audit journal to MongoDB.
type LedgerRepository struct {
	coll *mongo.Collection
}

func NewLedgerRepository(db *mongo.Database) *LedgerRepository {
	return &LedgerRepository{coll: db.Collection(ledgerCollection)}
}

func (r *LedgerRepository) Insert(ctx context.Context, entry *domain.LedgerEntry) error {
	doc := bson.M{
		"user_id":       entry.UserID,
		"kind":          string(entry.Kind),
		"amount":        entry.Amount,
		"balance_after": entry.BalanceAfter,
		"reason":        entry.Reason,
		"timestamp":     entry.Timestamp.UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (r *LedgerRepository) ListByUser(ctx context.Context, userID string, limit int64) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cur, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer cur.Close(ctx)

	var entries []domain.LedgerEntry
	for cur.Next(ctx) {
		var doc struct {
			UserID       string    `bson:"user_id"`
			Kind         string    `bson:"kind"`
			Amount       int       `bson:"amount"`
			BalanceAfter int       `bson:"balance_after"`
			Reason       string    `bson:"reason"`
			Timestamp    time.Time `bson:"timestamp"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode ledger entry: %w", err)
		}
		entries = append(entries, domain.LedgerEntry{
			UserID:       doc.UserID,
			Kind:         domain.LedgerEntryKind(doc.Kind),
			Amount:       doc.Amount,
			BalanceAfter: doc.BalanceAfter,
			Reason:       doc.Reason,
			Timestamp:    doc.Timestamp.UTC(),
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}
