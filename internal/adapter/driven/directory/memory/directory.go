package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/parley-im/parley/internal/core/domain"
)

// Directory is an in-memory implementation of port.Membership and
// port.Directory, for development and tests. The production implementation
// lives in the CRUD service that owns the durable store.
type Directory struct {
	mu      sync.RWMutex
	members map[domain.ChatID]map[domain.UserID]struct{}
	users   map[domain.UserID]domain.DisplayInfo
}

func NewDirectory() *Directory {
	return &Directory{
		members: make(map[domain.ChatID]map[domain.UserID]struct{}),
		users:   make(map[domain.UserID]domain.DisplayInfo),
	}
}

// AddMember records user as an active participant of chat.
func (d *Directory) AddMember(chat domain.ChatID, user domain.UserID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.members[chat]
	if !ok {
		set = make(map[domain.UserID]struct{})
		d.members[chat] = set
	}
	set[user] = struct{}{}
}

// RemoveMember drops user from chat. Idempotent.
func (d *Directory) RemoveMember(chat domain.ChatID, user domain.UserID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if set, ok := d.members[chat]; ok {
		delete(set, user)
		if len(set) == 0 {
			delete(d.members, chat)
		}
	}
}

// SetUser stores display metadata for user.
func (d *Directory) SetUser(user domain.UserID, info domain.DisplayInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user] = info
}

func (d *Directory) IsMember(ctx context.Context, chat domain.ChatID, user domain.UserID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	set, ok := d.members[chat]
	if !ok {
		return false, nil
	}
	_, ok = set[user]
	return ok, nil
}

func (d *Directory) DisplayInfo(ctx context.Context, user domain.UserID) (domain.DisplayInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	info, ok := d.users[user]
	if !ok {
		return domain.DisplayInfo{}, fmt.Errorf("%w: user %s", domain.ErrNotFound, user)
	}
	return info, nil
}
