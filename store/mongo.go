package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/princinho/authgate/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	UsersCollection = "users"

	emailIndex    = "email_unique"
	usernameIndex = "username_unique"
)

type userDocument struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Username     string        `bson:"username"`
	Email        string        `bson:"email"`
	PasswordHash string        `bson:"passwordHash"`
	IsAdmin      bool          `bson:"isAdmin"`
	CreatedAt    time.Time     `bson:"createdAt"`
}

func (d userDocument) toModel() *models.User {
	return &models.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		IsAdmin:      d.IsAdmin,
		CreatedAt:    d.CreatedAt.UTC(),
	}
}

// MongoStore keeps identities in the users collection. IDs are ObjectID hex strings.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection(UsersCollection)}
}

// EnsureIndexes creates the unique email and username indexes. Safe to call on every start.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(emailIndex),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(usernameIndex),
		},
	})
	if err != nil {
		return mongoErr(ctx, "create user indexes", err)
	}
	return nil
}

func (s *MongoStore) Create(ctx context.Context, u *models.User) (*models.User, error) {
	doc := userDocument{
		ID:           bson.NewObjectID(),
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		IsAdmin:      u.IsAdmin,
		CreatedAt:    u.CreatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	// Mongo stores millisecond precision; truncate so the returned record matches a re-read.
	doc.CreatedAt = doc.CreatedAt.Truncate(time.Millisecond)

	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		if field, ok := duplicateKeyField(err); ok {
			return nil, DuplicateError{Field: field}
		}
		return nil, mongoErr(ctx, "insert user", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDocument
	if err := s.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, mongoErr(ctx, "find user", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) List(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, mongoErr(ctx, "list users", err)
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mongoErr(ctx, "decode users", err)
	}

	out := make([]models.User, 0, len(docs))
	for _, d := range docs {
		out = append(out, *d.toModel())
	}
	return out, nil
}

// ToggleAdmin negates isAdmin server-side with an update pipeline, so concurrent
// toggles never lose a write.
func (s *MongoStore) ToggleAdmin(ctx context.Context, id string) (*models.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	update := bson.A{
		bson.M{"$set": bson.M{"isAdmin": bson.M{"$not": bson.A{"$isAdmin"}}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc userDocument
	if err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, mongoErr(ctx, "toggle admin", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}

	res, err := s.col.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"passwordHash": hash}})
	if err != nil {
		return mongoErr(ctx, "update password", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func mongoErr(ctx context.Context, op string, err error) error {
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return wrapContextErr(ctx, op, err)
}

// duplicateKeyField reports whether err is an E11000 violation and which
// unique index it hit.
func duplicateKeyField(err error) (string, bool) {
	var messages []string

	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 || e.Code == 11001 {
				messages = append(messages, e.Message)
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 || e.Code == 11001 {
				messages = append(messages, e.Message)
			}
		}
	}
	if len(messages) == 0 && strings.Contains(err.Error(), "E11000 duplicate key error") {
		messages = append(messages, err.Error())
	}
	if len(messages) == 0 {
		return "", false
	}

	for _, msg := range messages {
		switch {
		case strings.Contains(msg, usernameIndex), strings.Contains(msg, "username:"):
			return "username", true
		case strings.Contains(msg, emailIndex), strings.Contains(msg, "email:"):
			return "email", true
		}
	}
	return "email", true
}
