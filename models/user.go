package models

import (
	"time"
)

// User is a registered identity. ID format depends on the store backend
// (ObjectID hex for mongo, ULID for postgres and memory).
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
}
