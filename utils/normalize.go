package utils

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeEmail trims and lowercases an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	// Casers are stateful, so each call gets its own.
	return cases.Lower(language.Und).String(strings.TrimSpace(email))
}

// NormalizeUsername trims and converts to NFC so visually identical names
// compare equal. Case is preserved.
func NormalizeUsername(username string) string {
	return norm.NFC.String(strings.TrimSpace(username))
}
