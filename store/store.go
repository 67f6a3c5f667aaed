// Package store persists identities. Every backend enforces unique usernames
// and emails itself and flips the admin flag with a single atomic update.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/princinho/authgate/models"
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrInvalidID   = errors.New("invalid user id")
	ErrUnavailable = errors.New("store unavailable")
)

// DuplicateError reports a uniqueness violation on Field ("email" or "username").
type DuplicateError struct {
	Field string
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s", e.Field)
}

// IsDuplicate reports whether err is a DuplicateError and returns the field.
func IsDuplicate(err error) (string, bool) {
	var de DuplicateError
	if errors.As(err, &de) {
		return de.Field, true
	}
	return "", false
}

// CredentialStore is the persistence contract for identities.
type CredentialStore interface {
	// Create assigns the ID and stores u. Uniqueness violations return DuplicateError.
	Create(ctx context.Context, u *models.User) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	// List returns every identity ordered by creation time.
	List(ctx context.Context) ([]models.User, error)
	// ToggleAdmin flips isAdmin in one atomic update and returns the new record.
	ToggleAdmin(ctx context.Context, id string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id string, hash string) error
}

// wrapContextErr turns deadline and cancellation failures into ErrUnavailable.
func wrapContextErr(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
