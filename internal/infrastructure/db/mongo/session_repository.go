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

const sessionCollection = "session"

// sessionKey is the fixed document key for the durable session record. One
// authoritative session exists per runtime, so the collection holds at most
// one live document.
const sessionKey = "current"

// schemaVersion tags the persisted record so future field changes can be
// detected. A record with a different version is treated as absent.
const schemaVersion = 1

// SessionRepository is the durable identity store backed by MongoDB.
type SessionRepository struct {
	coll *mongo.Collection
}

func NewSessionRepository(db *mongo.Database) *SessionRepository {
	return &SessionRepository{coll: db.Collection(sessionCollection)}
}

type sessionDoc struct {
	Key           string  `bson:"_id"`
	SchemaVersion int     `bson:"schema_version"`
	User          userDoc `bson:"user"`
	UpdatedAt     int64   `bson:"updated_at"`
}

type userDoc struct {
	ID        string `bson:"id"`
	Email     string `bson:"email"`
	Name      string `bson:"name"`
	Plan      string `bson:"plan"`
	Credits   int    `bson:"credits"`
	CreatedAt int64  `bson:"created_at"`
}

func (r *SessionRepository) Save(ctx context.Context, user *domain.User) error {
	doc := sessionDoc{
		Key:           sessionKey,
		SchemaVersion: schemaVersion,
		User: userDoc{
			ID:        user.ID,
			Email:     user.Email,
			Name:      user.Name,
			Plan:      user.Plan,
			Credits:   user.Credits,
			CreatedAt: user.CreatedAt.Unix(),
		},
		UpdatedAt: time.Now().UTC().Unix(),
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"_id": sessionKey}, doc, opts); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Load(ctx context.Context) (*domain.User, error) {
	var doc sessionDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": sessionKey}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNoSession
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	if doc.SchemaVersion != schemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", domain.ErrNoSession, doc.SchemaVersion)
	}

	return &domain.User{
		ID:        doc.User.ID,
		Email:     doc.User.Email,
		Name:      doc.User.Name,
		Plan:      doc.User.Plan,
		Credits:   doc.User.Credits,
		CreatedAt: unixToTime(doc.User.CreatedAt),
	}, nil
}

func (r *SessionRepository) Clear(ctx context.Context) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": sessionKey}); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
