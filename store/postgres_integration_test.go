//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/princinho/authgate/database"
	"github.com/princinho/authgate/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("authgate_test"),
		postgres.WithUsername("authgate"),
		postgres.WithPassword("authgate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.OpenPostgres(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, database.Migrate(ctx, db))

	return NewPostgresStore(db)
}

func TestPostgresStore_Integration(t *testing.T) {
	s := setupPostgresStore(t)
	ctx := context.Background()

	alice, err := s.Create(ctx, newUser("alice"))
	require.NoError(t, err)

	_, err = s.Create(ctx, &models.User{Username: "alice2", Email: "alice@example.com", PasswordHash: "h"})
	field, ok := IsDuplicate(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "email", field)

	_, err = s.Create(ctx, &models.User{Username: "alice", Email: "other@example.com", PasswordHash: "h"})
	field, ok = IsDuplicate(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "username", field)

	bob, err := s.Create(ctx, newUser("bob"))
	require.NoError(t, err)

	toggled, err := s.ToggleAdmin(ctx, bob.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsAdmin)

	require.NoError(t, s.UpdatePasswordHash(ctx, alice.ID, "rotated"))
	got, err := s.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "rotated", got.PasswordHash)

	users, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, alice.ID, users[0].ID)
	assert.Equal(t, bob.ID, users[1].ID)
}
