// Package core holds the shared chat state: the registry of connected
// sessions and the broadcaster that fans messages out to them.
package core

import (
	"errors"
	"sort"
	"sync"
)

// Peer is a connected session as seen by the registry and broadcaster.
// Implementations must tolerate concurrent WriteLine calls.
type Peer interface {
	// WriteLine sends one line to the peer, flushed immediately.
	WriteLine(line string) error
}

// ErrNameTaken is returned when adding or renaming onto a username that is
// already connected.
var ErrNameTaken = errors.New("username already connected")

// ErrNotConnected is returned when the named user has no registry entry.
var ErrNotConnected = errors.New("user not connected")

// Registry is the process-wide table of currently connected, authenticated
// sessions keyed by username. A username appears at most once; all access
// goes through the registry's lock, never the raw map.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]Peer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{peers: make(map[string]Peer)}
}

// Add inserts a session under username. Returns ErrNameTaken if the name
// is already connected; the check and insert are atomic, so two racing
// logins for the same name admit at most one.
func (r *Registry) Add(username string, p Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.peers[username]; ok {
		return ErrNameTaken
	}
	r.peers[username] = p
	return nil
}

// Remove deletes the registry entry for username, if present.
func (r *Registry) Remove(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, username)
}

// Rename re-keys an entry from oldName to newName in one step: the old
// slot is replaced, never duplicated. Returns ErrNotConnected if oldName
// is absent and ErrNameTaken if newName is already connected.
func (r *Registry) Rename(oldName, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[oldName]
	if !ok {
		return ErrNotConnected
	}
	if _, taken := r.peers[newName]; taken {
		return ErrNameTaken
	}
	delete(r.peers, oldName)
	r.peers[newName] = p
	return nil
}

// Get returns the session for username.
func (r *Registry) Get(username string) (Peer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.peers[username]
	if !ok {
		return nil, ErrNotConnected
	}
	return p, nil
}

// Names returns the connected usernames in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.peers))
	for name := range r.peers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports the number of connected sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// snapshot copies the current peer set so fan-out can run without holding
// the registry lock. A join or leave during fan-out affects neither the
// iteration nor already-enumerated recipients.
func (r *Registry) snapshot() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	return peers
}
