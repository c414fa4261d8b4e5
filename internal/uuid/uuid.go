// Package uuid generates time-ordered identifiers for database primary keys.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New returns a new UUIDv7 string. UUIDv7 embeds a millisecond timestamp in
// its high bits, so freshly created rows sort in creation order, which keeps
// SQLite and Postgres primary-key indexes append-mostly.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source is exhausted; fall back
		// to a plain random UUID rather than returning an empty key.
		return googleuuid.New().String()
	}
	return id.String()
}

// Parse validates and normalizes a UUID string.
func Parse(s string) (string, error) {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// IsValid reports whether s is a well-formed UUID.
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
