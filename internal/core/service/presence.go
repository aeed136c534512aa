package service

import (
	"sort"
	"sync"

	"github.com/parley-im/parley/internal/core/domain"
)

// Registry is the process-wide mapping of userID to current connection. At
// most one entry per user exists at any instant; a new connection for the
// same user overwrites the previous entry without closing its socket.
type Registry struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]domain.ConnID
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[domain.UserID]domain.ConnID),
	}
}

// Register binds user to conn, replacing any prior binding. Last connect
// wins.
func (r *Registry) Register(user domain.UserID, conn domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[user] = conn
}

// UnregisterIfCurrent removes the entry only when it still points at conn,
// so a slow-closing stale connection can never evict a newer one. Reports
// whether an entry was removed.
func (r *Registry) UnregisterIfCurrent(user domain.UserID, conn domain.ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byUser[user]; !ok || cur != conn {
		return false
	}
	delete(r.byUser, user)
	return true
}

// Lookup returns the current connection for user, if any.
func (r *Registry) Lookup(user domain.UserID) (domain.ConnID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byUser[user]
	return conn, ok
}

// Snapshot returns every online user id, sorted for a stable wire payload.
func (r *Registry) Snapshot() []domain.UserID {
	r.mu.RLock()
	users := make([]domain.UserID, 0, len(r.byUser))
	for u := range r.byUser {
		users = append(users, u)
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}
