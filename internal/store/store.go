package store

import "errors"

// User represents a registered chat user.
type User struct {
	Username     string
	PasswordHash string
}

var (
	// ErrUserExists is returned when creating or renaming onto a
	// username that already has a credential record.
	ErrUserExists = errors.New("user already exists")
	// ErrUnknownUser is returned when looking up or renaming a username
	// with no credential record.
	ErrUnknownUser = errors.New("user not found")
)

// CredentialStore handles user credential persistence. Implementations must
// be safe for concurrent use: Create and Rename are atomic check-and-mutate
// operations, and every mutation is flushed to durable storage before it
// returns.
type CredentialStore interface {
	// Lookup retrieves a user by username, case-sensitively.
	Lookup(username string) (*User, error)

	// Create inserts a new user. Returns ErrUserExists if the username
	// is taken.
	Create(username, passwordHash string) (*User, error)

	// Rename re-keys a user from oldName to newName, keeping the
	// password hash. Returns ErrUnknownUser if oldName is absent and
	// ErrUserExists if newName is taken.
	Rename(oldName, newName string) error

	// Len reports the number of registered users.
	Len() int

	// Close releases the underlying storage.
	Close() error
}
