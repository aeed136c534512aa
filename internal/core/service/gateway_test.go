package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/parley-im/parley/internal/adapter/driven/directory/memory"
	"github.com/parley-im/parley/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	users map[string]domain.UserID
}

func (v stubVerifier) Verify(ctx context.Context, token string) (domain.UserID, error) {
	if u, ok := v.users[token]; ok {
		return u, nil
	}
	return "", domain.ErrUnauthenticated
}

type fakeMirror struct {
	mu      sync.Mutex
	online  []domain.UserID
	offline []domain.UserID
}

func (m *fakeMirror) Online(ctx context.Context, user domain.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online = append(m.online, user)
	return nil
}

func (m *fakeMirror) Offline(ctx context.Context, user domain.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = append(m.offline, user)
	return nil
}

type gatewayFixture struct {
	dir      *memory.Directory
	presence *Registry
	rooms    *Rooms
	gateway  *Gateway
	mirror   *fakeMirror
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	dir := memory.NewDirectory()
	presence := NewRegistry()
	rooms := NewRooms(dir)
	mirror := &fakeMirror{}
	verifier := stubVerifier{users: map[string]domain.UserID{
		"token-alice": "alice",
		"token-bob":   "bob",
	}}
	return &gatewayFixture{
		dir:      dir,
		presence: presence,
		rooms:    rooms,
		mirror:   mirror,
		gateway:  NewGateway(verifier, presence, rooms, NewRelay(dir, dir, rooms), mirror),
	}
}

func (f *gatewayFixture) connect(t *testing.T, conn domain.ConnID, user domain.UserID) *mockClient {
	t.Helper()
	c := newMockClient(conn, user)
	f.gateway.Connect(context.Background(), c)
	return c
}

func envelope(t *testing.T, event string, data any) domain.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return domain.Envelope{Event: event, Data: raw}
}

func TestGateway_AuthenticateRejectsMissingAndInvalidTokens(t *testing.T) {
	f := newGatewayFixture(t)

	_, err := f.gateway.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = f.gateway.Authenticate(context.Background(), "forged")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	user, err := f.gateway.Authenticate(context.Background(), "token-alice")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("alice"), user)
}

func TestGateway_ConnectBroadcastsSnapshotToEveryone(t *testing.T) {
	f := newGatewayFixture(t)

	alice := f.connect(t, "conn-a", "alice")
	bob := f.connect(t, "conn-b", "bob")

	// alice got a snapshot on her own connect and again on bob's.
	frames := alice.framesFor(domain.EventOnlineUsers)
	require.Len(t, frames, 2)
	assert.Equal(t, []domain.UserID{"alice"}, frames[0].payload)
	assert.Equal(t, []domain.UserID{"alice", "bob"}, frames[1].payload)

	require.Len(t, bob.framesFor(domain.EventOnlineUsers), 1)
	assert.Equal(t, []domain.UserID{"alice", "bob"}, f.presence.Snapshot())
	assert.Equal(t, []domain.UserID{"alice", "bob"}, f.mirror.online)
}

func TestGateway_ReconnectOverwritesPresenceWithoutClosingOldSocket(t *testing.T) {
	f := newGatewayFixture(t)

	old := f.connect(t, "conn-1", "alice")
	fresh := f.connect(t, "conn-2", "alice")

	conn, ok := f.presence.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, domain.ConnID("conn-2"), conn)
	assert.False(t, old.closed, "superseded connection is un-presenced, not closed")

	// Private-room traffic reaches only the newer connection.
	f.rooms.Broadcast(domain.UserRoom("alice"), domain.EventChatNew, "x", "")
	assert.Empty(t, old.framesFor(domain.EventChatNew))
	assert.Len(t, fresh.framesFor(domain.EventChatNew), 1)
}

func TestGateway_StaleDisconnectKeepsNewerPresence(t *testing.T) {
	f := newGatewayFixture(t)

	old := f.connect(t, "conn-1", "alice")
	fresh := f.connect(t, "conn-2", "alice")
	onlineBefore := len(fresh.framesFor(domain.EventOnlineUsers))

	f.gateway.Disconnect(context.Background(), old)

	conn, ok := f.presence.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, domain.ConnID("conn-2"), conn)
	// No presence change, so no snapshot re-broadcast and no mirror offline.
	assert.Len(t, fresh.framesFor(domain.EventOnlineUsers), onlineBefore)
	assert.Empty(t, f.mirror.offline)

	f.gateway.Disconnect(context.Background(), fresh)
	_, ok = f.presence.Lookup("alice")
	assert.False(t, ok)
	assert.Equal(t, []domain.UserID{"alice"}, f.mirror.offline)
}

func TestGateway_DispatchUnknownEventIgnored(t *testing.T) {
	f := newGatewayFixture(t)
	alice := f.connect(t, "conn-a", "alice")
	before := len(alice.frames())

	f.gateway.Dispatch(context.Background(), alice, domain.Envelope{Event: "totally:unknown"})

	assert.Len(t, alice.frames(), before)
}

func TestGateway_JoinAck(t *testing.T) {
	f := newGatewayFixture(t)
	f.dir.AddMember("C123", "alice")
	alice := f.connect(t, "conn-a", "alice")

	env := envelope(t, domain.EventChatJoin, domain.RoomRequest{ChatID: "C123"})
	env.Ack = "1"
	f.gateway.Dispatch(context.Background(), alice, env)

	ack, ok := alice.lastAck()
	require.True(t, ok)
	assert.Equal(t, sentAck{id: "1", errMsg: ""}, ack)

	// Not a member of this one.
	env = envelope(t, domain.EventChatJoin, domain.RoomRequest{ChatID: "C999"})
	env.Ack = "2"
	f.gateway.Dispatch(context.Background(), alice, env)

	ack, ok = alice.lastAck()
	require.True(t, ok)
	assert.Equal(t, sentAck{id: "2", errMsg: "Error joining chat"}, ack)
	assert.Empty(t, f.rooms.byRoom[domain.ChatRoom("C999")])
}

// Full call setup between two members of C123: invite arrives as
// call:incoming, the answer comes back with the sdp untouched.
func TestGateway_EndToEndCallScenario(t *testing.T) {
	f := newGatewayFixture(t)
	f.dir.AddMember("C123", "alice")
	f.dir.AddMember("C123", "bob")

	alice := f.connect(t, "conn-a", "alice")
	bob := f.connect(t, "conn-b", "bob")
	ctx := context.Background()

	env := envelope(t, domain.EventChatJoin, domain.RoomRequest{ChatID: "C123"})
	env.Ack = "1"
	f.gateway.Dispatch(ctx, alice, env)
	ack, ok := alice.lastAck()
	require.True(t, ok)
	require.Empty(t, ack.errMsg)

	f.gateway.Dispatch(ctx, alice, envelope(t, domain.EventCallInvite, domain.CallPayload{
		ChatID: "C123", ToUserID: "bob", Type: "video",
	}))

	incoming := bob.framesFor(domain.EventCallIncoming)
	require.Len(t, incoming, 1)
	assert.Equal(t, domain.UserID("alice"), incoming[0].payload.(domain.CallIncoming).FromUserID)

	f.gateway.Dispatch(ctx, bob, envelope(t, domain.EventCallAnswer, domain.CallPayload{
		ChatID: "C123", ToUserID: "alice", SDP: raw(`"v=0..."`),
	}))

	answers := alice.framesFor(domain.EventCallAnswer)
	require.Len(t, answers, 1)
	got := answers[0].payload.(domain.CallRelayed)
	assert.Equal(t, domain.UserID("bob"), got.FromUserID)
	assert.Equal(t, raw(`"v=0..."`), got.SDP)
}

// A non-member's offer into C123 must never reach the target.
func TestGateway_EndToEndOutsiderOfferDropped(t *testing.T) {
	f := newGatewayFixture(t)
	f.dir.AddMember("C123", "alice")
	f.dir.AddMember("C123", "bob")

	bob := f.connect(t, "conn-b", "bob")
	carol := f.connect(t, "conn-c", "carol")

	f.gateway.Dispatch(context.Background(), carol, envelope(t, domain.EventCallOffer, domain.CallPayload{
		ChatID: "C123", ToUserID: "bob", SDP: raw(`"v=0..."`),
	}))

	assert.Empty(t, bob.framesFor(domain.EventCallOffer))
}

func TestGateway_TypingDispatch(t *testing.T) {
	f := newGatewayFixture(t)
	f.dir.AddMember("C123", "alice")
	f.dir.AddMember("C123", "bob")

	alice := f.connect(t, "conn-a", "alice")
	bob := f.connect(t, "conn-b", "bob")
	ctx := context.Background()

	f.gateway.Dispatch(ctx, alice, envelope(t, domain.EventChatJoin, domain.RoomRequest{ChatID: "C123"}))
	f.gateway.Dispatch(ctx, bob, envelope(t, domain.EventChatJoin, domain.RoomRequest{ChatID: "C123"}))

	f.gateway.Dispatch(ctx, alice, envelope(t, domain.EventTypingStart, domain.RoomRequest{ChatID: "C123"}))

	assert.Empty(t, alice.framesFor(domain.EventTypingStart))
	require.Len(t, bob.framesFor(domain.EventTypingStart), 1)
}

func TestGateway_DisconnectDropsRoomSubscriptions(t *testing.T) {
	f := newGatewayFixture(t)
	f.dir.AddMember("C123", "alice")
	alice := f.connect(t, "conn-a", "alice")

	f.gateway.Dispatch(context.Background(), alice, envelope(t, domain.EventChatJoin, domain.RoomRequest{ChatID: "C123"}))
	require.NotEmpty(t, f.rooms.byConn[alice.ID()])

	f.gateway.Disconnect(context.Background(), alice)

	assert.Empty(t, f.rooms.byConn[alice.ID()])
	assert.Empty(t, f.rooms.byRoom)
}
