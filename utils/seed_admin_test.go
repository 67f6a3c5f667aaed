package utils

import (
	"context"
	"io"
	"testing"

	"github.com/princinho/authgate/models"
	"github.com/princinho/authgate/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func discardLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestSeedAdminUser(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemoryStore()
	hasher := NewPasswordHasher(bcrypt.MinCost)
	seed := AdminSeed{Email: " Root@Example.com", Password: "changeme"}

	created, err := SeedAdminUser(ctx, users, hasher, seed, discardLog())
	require.NoError(t, err)
	assert.True(t, created)

	admin, err := users.FindByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)
	assert.Equal(t, "admin", admin.Username)
	assert.True(t, hasher.Verify("changeme", admin.PasswordHash))

	// second run leaves the record alone
	created, err = SeedAdminUser(ctx, users, hasher, AdminSeed{Email: "root@example.com", Password: "different"}, discardLog())
	require.NoError(t, err)
	assert.False(t, created)

	again, err := users.FindByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, admin.PasswordHash, again.PasswordHash)
}

func TestSeedAdminUser_DoesNotPromoteExisting(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemoryStore()
	_, err := users.Create(ctx, &models.User{Username: "root", Email: "root@example.com", PasswordHash: "h"})
	require.NoError(t, err)

	created, err := SeedAdminUser(ctx, users, NewPasswordHasher(bcrypt.MinCost),
		AdminSeed{Email: "root@example.com", Password: "changeme"}, discardLog())
	require.NoError(t, err)
	assert.False(t, created)

	u, err := users.FindByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.False(t, u.IsAdmin)
}

func TestSeedAdminUser_RequiresCredentials(t *testing.T) {
	_, err := SeedAdminUser(context.Background(), store.NewMemoryStore(), NewPasswordHasher(bcrypt.MinCost),
		AdminSeed{Email: "root@example.com"}, discardLog())
	assert.Error(t, err)
}
