package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/princinho/authgate/models"
	"github.com/princinho/authgate/store"
	"github.com/sirupsen/logrus"
)

type AdminSeed struct {
	Email    string
	Username string
	Password string
}

// SeedAdminUser inserts an admin identity when none exists with seed.Email.
// An existing record is left untouched. Reports whether a record was created.
func SeedAdminUser(ctx context.Context, users store.CredentialStore, hasher *PasswordHasher, seed AdminSeed, log *logrus.Entry) (bool, error) {
	email := NormalizeEmail(seed.Email)
	username := NormalizeUsername(seed.Username)
	if email == "" || seed.Password == "" {
		return false, fmt.Errorf("missing ADMIN_EMAIL or ADMIN_PASSWORD")
	}
	if username == "" {
		username = "admin"
	}

	_, err := users.FindByEmail(ctx, email)
	if err == nil {
		log.WithField("email", email).Info("admin user already exists")
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("seed admin lookup: %w", err)
	}

	hash, err := hasher.Hash(seed.Password)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}

	_, err = users.Create(ctx, &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      true,
		CreatedAt:    time.Now().UTC(),
	})
	if field, ok := store.IsDuplicate(err); ok && field == "email" {
		// another instance seeded first
		log.WithField("email", email).Info("admin user already exists")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("seed admin insert: %w", err)
	}

	log.WithField("email", email).Info("admin user seeded")
	return true, nil
}
