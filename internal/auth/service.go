// Package auth provides the credential operations behind the
// authentication handshake: sign-up, login, and nickname changes. Each
// operation returns one of a closed set of sentinel errors so the
// connection handler can map outcomes to wire codes without inspecting
// error text.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beechat/beechat-server/internal/store"
)

var (
	// ErrInvalidUsername is returned when a username contains whitespace
	// or is empty.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrUserExists is returned when signing up or renaming onto a taken
	// username.
	ErrUserExists = errors.New("user already exists")
	// ErrUnknownUser is returned when logging in as a username with no
	// credential record.
	ErrUnknownUser = errors.New("user not found")
	// ErrWrongPassword is returned when login credentials do not match.
	// The caller may let the client retry.
	ErrWrongPassword = errors.New("wrong password")
)

// Service provides authentication operations over a credential store.
type Service struct {
	store store.CredentialStore
}

// NewService creates a new authentication service.
func NewService(credentials store.CredentialStore) *Service {
	return &Service{store: credentials}
}

// ValidateUsername checks the handshake constraints on a candidate name:
// non-empty and free of whitespace.
func ValidateUsername(username string) error {
	if username == "" || strings.ContainsAny(username, " \t") {
		return ErrInvalidUsername
	}
	return nil
}

// Register creates a new user with a hashed password. The store's atomic
// check-and-insert guarantees that two racing sign-ups for the same name
// admit at most one.
func (s *Service) Register(username, password string) (*store.User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.Create(username, hash)
	if err != nil {
		if errors.Is(err, store.ErrUserExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Exists reports whether a credential record exists for username.
func (s *Service) Exists(username string) bool {
	_, err := s.store.Lookup(username)
	return err == nil
}

// Login validates credentials against the store.
func (s *Service) Login(username, password string) (*store.User, error) {
	user, err := s.store.Lookup(username)
	if err != nil {
		if errors.Is(err, store.ErrUnknownUser) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := ComparePassword(user.PasswordHash, password); err != nil {
		return nil, ErrWrongPassword
	}
	return user, nil
}

// Rename re-keys a user's credential record, keeping the password hash.
func (s *Service) Rename(oldName, newName string) error {
	if err := ValidateUsername(newName); err != nil {
		return err
	}

	if err := s.store.Rename(oldName, newName); err != nil {
		switch {
		case errors.Is(err, store.ErrUserExists):
			return ErrUserExists
		case errors.Is(err, store.ErrUnknownUser):
			return ErrUnknownUser
		}
		return fmt.Errorf("rename user: %w", err)
	}
	return nil
}
