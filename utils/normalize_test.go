package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail("  Alice@Example.COM "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestNormalizeUsername(t *testing.T) {
	// decomposed e + combining acute composes to a single rune
	assert.Equal(t, "Ren\u00e9", NormalizeUsername(" Rene\u0301 "))
	assert.Equal(t, "Alice", NormalizeUsername("Alice"))
}
