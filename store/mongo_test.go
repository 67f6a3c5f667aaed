package store

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/princinho/authgate/database"
	"github.com/princinho/authgate/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func TestDuplicateKeyField(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		field string
		ok    bool
	}{
		{
			name: "username index",
			err: mongo.WriteException{WriteErrors: []mongo.WriteError{{
				Code:    11000,
				Message: `E11000 duplicate key error collection: authgate.users index: username_unique dup key: { username: "alice" }`,
			}}},
			field: "username",
			ok:    true,
		},
		{
			name: "email index",
			err: mongo.WriteException{WriteErrors: []mongo.WriteError{{
				Code:    11000,
				Message: `E11000 duplicate key error collection: authgate.users index: email_unique dup key: { email: "a@b.c" }`,
			}}},
			field: "email",
			ok:    true,
		},
		{
			name: "other write error",
			err:  mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 121, Message: "validation failed"}}},
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field, ok := duplicateKeyField(tt.err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.field, field)
		})
	}
}

func TestMongoStore_InvalidObjectID(t *testing.T) {
	s := &MongoStore{}

	_, err := s.FindByID(context.Background(), "not-hex")
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = s.ToggleAdmin(context.Background(), NewID())
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, s.UpdatePasswordHash(context.Background(), "", "h"), ErrInvalidID)
}

// TestMongoStore_Live runs against a real server when MONGODB_TEST_URI is set.
func TestMongoStore_Live(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := database.ConnectMongo(uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	require.NoError(t, database.MongoPinger(client).Ping(ctx))

	db := client.Database("authgate_test_" + NewID())
	t.Cleanup(func() { _ = db.Drop(context.Background()) })

	s := NewMongoStore(db)
	require.NoError(t, s.EnsureIndexes(ctx))

	alice, err := s.Create(ctx, newUser("alice"))
	require.NoError(t, err)

	_, err = s.Create(ctx, &models.User{Username: "alice", Email: "x@example.com", PasswordHash: "h"})
	field, ok := IsDuplicate(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "username", field)

	got, err := s.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ToggleAdmin(ctx, alice.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err = s.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, got.IsAdmin)

	require.NoError(t, s.UpdatePasswordHash(ctx, alice.ID, "rotated"))
	_, err = s.FindByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}
