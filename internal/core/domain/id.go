package domain

import (
	"github.com/google/uuid"
)

// UserID and ChatID are opaque identifiers minted by the surrounding system;
// the gateway never parses them.
type UserID string

type ChatID string

// ConnID identifies a single live socket. A user reconnecting gets a new one.
type ConnID string

func NewConnID() ConnID {
	return ConnID(uuid.New().String())
}

func (id UserID) String() string { return string(id) }
func (id ChatID) String() string { return string(id) }
func (id ConnID) String() string { return string(id) }

// RoomID names an ephemeral broadcast set. Two namespaces exist: one room per
// conversation and one private room per user.
type RoomID string

func ChatRoom(id ChatID) RoomID { return RoomID("chat:" + string(id)) }
func UserRoom(id UserID) RoomID { return RoomID("user:" + string(id)) }

func (r RoomID) String() string { return string(r) }
