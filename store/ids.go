package store

import (
	"github.com/oklog/ulid/v2"
)

// NewID returns a fresh ULID string.
func NewID() string {
	return ulid.Make().String()
}

// ParseID validates a ULID string.
func ParseID(id string) (string, error) {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return "", ErrInvalidID
	}
	return parsed.String(), nil
}
