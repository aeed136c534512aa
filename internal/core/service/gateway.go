package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/parley-im/parley/internal/core/domain"
	"github.com/parley-im/parley/internal/core/port"
	"github.com/rs/zerolog/log"
)

const joinErrorMessage = "Error joining chat"

// Gateway owns the connection lifecycle: it authenticates the handshake
// credential, wires an accepted connection into presence and rooms, routes
// inbound events, and tears everything down on disconnect. One Gateway
// serves the whole process.
type Gateway struct {
	verifier port.CredentialVerifier
	presence *Registry
	rooms    *Rooms
	relay    *Relay
	mirror   port.PresenceMirror // optional, may be nil

	mu      sync.RWMutex
	clients map[domain.ConnID]port.Client
}

func NewGateway(verifier port.CredentialVerifier, presence *Registry, rooms *Rooms, relay *Relay, mirror port.PresenceMirror) *Gateway {
	return &Gateway{
		verifier: verifier,
		presence: presence,
		rooms:    rooms,
		relay:    relay,
		mirror:   mirror,
		clients:  make(map[domain.ConnID]port.Client),
	}
}

// Authenticate resolves the handshake credential to a user identity. It is
// called exactly once per connection attempt, before any state exists for
// the connection.
func (g *Gateway) Authenticate(ctx context.Context, token string) (domain.UserID, error) {
	if token == "" {
		return "", domain.ErrUnauthenticated
	}
	return g.verifier.Verify(ctx, token)
}

// Connect registers an authenticated connection: presence entry (last
// connect wins), exclusive private-room binding, and a full online-user
// snapshot broadcast to every connection.
func (g *Gateway) Connect(ctx context.Context, c port.Client) {
	g.mu.Lock()
	g.clients[c.ID()] = c
	g.mu.Unlock()

	g.presence.Register(c.UserID(), c.ID())
	g.rooms.SubscribeExclusive(domain.UserRoom(c.UserID()), c)
	g.broadcastOnline()
	g.mirrorOnline(ctx, c.UserID())

	log.Info().
		Str("user_id", c.UserID().String()).
		Str("conn_id", c.ID().String()).
		Msg("Client connected")
}

// Disconnect tears down a closed connection. Room subscriptions always go;
// the presence entry is removed only if it still points at this connection,
// so a stale disconnect never un-presences a newer connection, and only a
// real presence change re-broadcasts the online snapshot.
func (g *Gateway) Disconnect(ctx context.Context, c port.Client) {
	g.mu.Lock()
	delete(g.clients, c.ID())
	g.mu.Unlock()

	g.rooms.Drop(c.ID())

	if g.presence.UnregisterIfCurrent(c.UserID(), c.ID()) {
		g.broadcastOnline()
		g.mirrorOffline(ctx, c.UserID())
		log.Info().
			Str("user_id", c.UserID().String()).
			Str("conn_id", c.ID().String()).
			Msg("Client disconnected")
		return
	}
	log.Debug().
		Str("user_id", c.UserID().String()).
		Str("conn_id", c.ID().String()).
		Msg("Stale connection closed, presence kept for newer connection")
}

// Dispatch routes one inbound event. Unknown event names are ignored, not
// errors. Per-event failures never close the connection; the transport may
// invoke Dispatch concurrently for events of the same connection as long as
// invocation order matches arrival order.
func (g *Gateway) Dispatch(ctx context.Context, c port.Client, env domain.Envelope) {
	switch env.Event {
	case domain.EventChatJoin:
		req, ok := decode[domain.RoomRequest](c, env)
		if !ok {
			return
		}
		err := g.rooms.Join(ctx, c, req.ChatID)
		if err != nil {
			log.Warn().Err(err).
				Str("user_id", c.UserID().String()).
				Msg("Chat join rejected")
		}
		g.ack(c, env, err)

	case domain.EventChatLeave:
		req, ok := decode[domain.RoomRequest](c, env)
		if !ok {
			return
		}
		g.rooms.Leave(c, req.ChatID)
		g.ack(c, env, nil)

	case domain.EventTypingStart:
		if req, ok := decode[domain.RoomRequest](c, env); ok {
			if err := g.rooms.TypingStart(ctx, c, req.ChatID); err != nil {
				log.Debug().Err(err).Msg("Dropping typing start")
			}
		}

	case domain.EventTypingStop:
		if req, ok := decode[domain.RoomRequest](c, env); ok {
			if err := g.rooms.TypingStop(ctx, c, req.ChatID); err != nil {
				log.Debug().Err(err).Msg("Dropping typing stop")
			}
		}

	case domain.EventGroupCallStarted:
		if p, ok := decode[domain.GroupCallPayload](c, env); ok {
			g.relay.GroupCallStarted(ctx, c, p)
		}

	case domain.EventGroupCallEnded:
		if p, ok := decode[domain.GroupCallPayload](c, env); ok {
			g.relay.GroupCallEnded(ctx, c, p)
		}

	default:
		if kind, ok := domain.CallKindForEvent(env.Event); ok {
			if p, ok := decode[domain.CallPayload](c, env); ok {
				g.relay.Relay(ctx, kind, c.UserID(), p)
			}
			return
		}
		log.Debug().
			Str("event", env.Event).
			Str("user_id", c.UserID().String()).
			Msg("Ignoring unknown event")
	}
}

// ack replies to an acknowledged request. Internal failure detail never
// reaches the client; joins fail with a fixed message.
func (g *Gateway) ack(c port.Client, env domain.Envelope, cause error) {
	if env.Ack == "" {
		return
	}
	msg := ""
	if cause != nil {
		msg = joinErrorMessage
	}
	if err := c.Ack(env.Ack, msg); err != nil {
		log.Warn().Err(err).Str("conn_id", c.ID().String()).Msg("Error sending ack")
	}
}

// broadcastOnline sends the full current online-user-id list to every live
// connection. Cheap enough to run on every connect and disconnect.
func (g *Gateway) broadcastOnline() {
	snapshot := g.presence.Snapshot()

	g.mu.RLock()
	targets := make([]port.Client, 0, len(g.clients))
	for _, c := range g.clients {
		targets = append(targets, c)
	}
	g.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(domain.EventOnlineUsers, snapshot); err != nil {
			log.Warn().Err(err).
				Str("conn_id", c.ID().String()).
				Msg("Error broadcasting online users")
		}
	}
}

func (g *Gateway) mirrorOnline(ctx context.Context, user domain.UserID) {
	if g.mirror == nil {
		return
	}
	if err := g.mirror.Online(ctx, user); err != nil {
		log.Warn().Err(err).Str("user_id", user.String()).Msg("Presence mirror online failed")
	}
}

func (g *Gateway) mirrorOffline(ctx context.Context, user domain.UserID) {
	if g.mirror == nil {
		return
	}
	if err := g.mirror.Offline(ctx, user); err != nil {
		log.Warn().Err(err).Str("user_id", user.String()).Msg("Presence mirror offline failed")
	}
}

func decode[T any](c port.Client, env domain.Envelope) (T, bool) {
	var v T
	if len(env.Data) == 0 {
		return v, true
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		log.Debug().Err(err).
			Str("event", env.Event).
			Str("conn_id", c.ID().String()).
			Msg("Ignoring malformed event payload")
		var zero T
		return zero, false
	}
	return v, true
}
