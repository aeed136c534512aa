package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/parley-im/parley/internal/core/domain"
	"github.com/parley-im/parley/internal/core/port"
	"github.com/rs/zerolog/log"
)

// Rooms multiplexes connections into named broadcast sets and performs
// fan-out. Rooms are ephemeral: a set exists only while at least one
// connection is subscribed. Fan-out is fire and forget; Rooms.Broadcast is
// also the seam where a cross-process fabric would be substituted.
type Rooms struct {
	members port.Membership

	mu     sync.RWMutex
	byRoom map[domain.RoomID]map[domain.ConnID]port.Client
	byConn map[domain.ConnID]map[domain.RoomID]struct{}
}

func NewRooms(members port.Membership) *Rooms {
	return &Rooms{
		members: members,
		byRoom:  make(map[domain.RoomID]map[domain.ConnID]port.Client),
		byConn:  make(map[domain.ConnID]map[domain.RoomID]struct{}),
	}
}

// Join subscribes c to the conversation room after a membership check. A
// failed check leaves the joined set untouched and surfaces an error to the
// caller; the connection stays open. Joining an already-joined room is a
// no-op success.
func (r *Rooms) Join(ctx context.Context, c port.Client, chat domain.ChatID) error {
	if chat == "" {
		return fmt.Errorf("%w: chatId required", domain.ErrNotFound)
	}
	if err := r.authorize(ctx, chat, c.UserID()); err != nil {
		return err
	}
	r.Subscribe(domain.ChatRoom(chat), c)
	log.Debug().
		Str("user_id", c.UserID().String()).
		Str("chat_id", chat.String()).
		Msg("Joined chat room")
	return nil
}

// Leave unsubscribes unconditionally. A user always may leave; no
// membership check, idempotent.
func (r *Rooms) Leave(c port.Client, chat domain.ChatID) {
	if chat == "" {
		return
	}
	r.Unsubscribe(domain.ChatRoom(chat), c.ID())
}

// TypingStart relays a typing indicator to every other subscriber of the
// conversation room. No state is retained and a stop is never inferred from
// inactivity.
func (r *Rooms) TypingStart(ctx context.Context, c port.Client, chat domain.ChatID) error {
	return r.typing(ctx, c, chat, domain.EventTypingStart)
}

// TypingStop relays the matching stop indicator.
func (r *Rooms) TypingStop(ctx context.Context, c port.Client, chat domain.ChatID) error {
	return r.typing(ctx, c, chat, domain.EventTypingStop)
}

func (r *Rooms) typing(ctx context.Context, c port.Client, chat domain.ChatID, event string) error {
	if chat == "" {
		return fmt.Errorf("%w: chatId required", domain.ErrNotFound)
	}
	if err := r.authorize(ctx, chat, c.UserID()); err != nil {
		return err
	}
	r.Broadcast(domain.ChatRoom(chat), event, domain.Typing{
		UserID: c.UserID(),
		ChatID: chat,
	}, c.ID())
	return nil
}

func (r *Rooms) authorize(ctx context.Context, chat domain.ChatID, user domain.UserID) error {
	ok, err := r.members.IsMember(ctx, chat, user)
	if err != nil {
		return fmt.Errorf("%w: membership lookup: %v", domain.ErrTransient, err)
	}
	if !ok {
		return fmt.Errorf("%w: user %s not in chat %s", domain.ErrUnauthorized, user, chat)
	}
	return nil
}

// Subscribe adds c to room, creating the room on first use.
func (r *Rooms) Subscribe(room domain.RoomID, c port.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribeLocked(room, c)
}

// SubscribeExclusive makes c the sole subscriber of room, displacing any
// prior subscribers without closing them. Used for the private user room so
// a superseded connection keeps its conversation-room subscriptions but
// stops receiving private traffic.
func (r *Rooms) SubscribeExclusive(room domain.RoomID, c port.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.byRoom[room] {
		if id != c.ID() {
			r.unsubscribeLocked(room, id)
		}
	}
	r.subscribeLocked(room, c)
}

// Unsubscribe removes conn from room, dropping the room once empty.
// Idempotent.
func (r *Rooms) Unsubscribe(room domain.RoomID, conn domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribeLocked(room, conn)
}

// Drop removes conn from every room it joined. Called on disconnect.
func (r *Rooms) Drop(conn domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for room := range r.byConn[conn] {
		r.unsubscribeLocked(room, conn)
	}
}

func (r *Rooms) subscribeLocked(room domain.RoomID, c port.Client) {
	set, ok := r.byRoom[room]
	if !ok {
		set = make(map[domain.ConnID]port.Client)
		r.byRoom[room] = set
	}
	set[c.ID()] = c

	joined, ok := r.byConn[c.ID()]
	if !ok {
		joined = make(map[domain.RoomID]struct{})
		r.byConn[c.ID()] = joined
	}
	joined[room] = struct{}{}
}

func (r *Rooms) unsubscribeLocked(room domain.RoomID, conn domain.ConnID) {
	if set, ok := r.byRoom[room]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(r.byRoom, room)
		}
	}
	if joined, ok := r.byConn[conn]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.byConn, conn)
		}
	}
}

// Broadcast delivers event to every current subscriber of room except
// exclude ("" excludes nobody) and returns the number of receivers. No
// acknowledgment, no retry; a subscriber mid-disconnect may miss the frame.
func (r *Rooms) Broadcast(room domain.RoomID, event string, payload any, exclude domain.ConnID) int {
	r.mu.RLock()
	targets := make([]port.Client, 0, len(r.byRoom[room]))
	for id, c := range r.byRoom[room] {
		if id == exclude {
			continue
		}
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(event, payload); err != nil {
			log.Warn().Err(err).
				Str("conn_id", c.ID().String()).
				Str("event", event).
				Msg("Error sending to room subscriber")
		}
	}
	return len(targets)
}
