// Package credfile implements store.CredentialStore on top of a flat
// credential file: one user per line, username and password hash separated
// by a colon. The whole file is read once at open and rewritten on every
// mutation.
package credfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/beechat/beechat-server/internal/store"
)

// Store is the flat-file credential store.
type Store struct {
	mu    sync.RWMutex
	path  string
	users map[string]string // username -> password hash
}

// Open loads the credential file at path. A missing file is not an error;
// the store starts empty and the file is created on the first mutation.
func Open(path string) (*Store, error) {
	s := &Store{
		path:  path,
		users: make(map[string]string),
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("open credential file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		name, hash, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("parse credential file: malformed line %q", line)
		}
		s.users[name] = hash
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	return s, nil
}

// Lookup retrieves a user by username.
func (s *Store) Lookup(username string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash, ok := s.users[username]
	if !ok {
		return nil, store.ErrUnknownUser
	}
	return &store.User{Username: username, PasswordHash: hash}, nil
}

// Create inserts a new user and rewrites the file. The existence check and
// the insert happen under one lock so two racing sign-ups for the same name
// cannot both succeed.
func (s *Store) Create(username, passwordHash string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; ok {
		return nil, store.ErrUserExists
	}
	s.users[username] = passwordHash

	if err := s.flushLocked(); err != nil {
		delete(s.users, username)
		return nil, err
	}
	return &store.User{Username: username, PasswordHash: passwordHash}, nil
}

// Rename re-keys a user, keeping the password hash. The old slot is
// replaced, never duplicated.
func (s *Store) Rename(oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, ok := s.users[oldName]
	if !ok {
		return store.ErrUnknownUser
	}
	if _, taken := s.users[newName]; taken {
		return store.ErrUserExists
	}
	delete(s.users, oldName)
	s.users[newName] = hash

	if err := s.flushLocked(); err != nil {
		delete(s.users, newName)
		s.users[oldName] = hash
		return err
	}
	return nil
}

// Len reports the number of registered users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Close is a no-op for the flat-file store; every mutation is already
// flushed. Kept to satisfy store.CredentialStore.
func (s *Store) Close() error {
	return nil
}

// flushLocked rewrites the credential file from the in-memory map. Callers
// must hold the write lock. The rewrite goes through a temp file in the
// same directory followed by a rename, so a crash mid-write cannot leave a
// truncated credential file behind.
func (s *Store) flushLocked() error {
	names := make([]string, 0, len(s.users))
	for name := range s.users {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(s.users[name])
		b.WriteByte('\n')
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close credential file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace credential file: %w", err)
	}
	return nil
}
