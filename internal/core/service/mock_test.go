package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/parley-im/parley/internal/core/domain"
)

// mockClient implements port.Client and records everything sent to it.
type mockClient struct {
	id     domain.ConnID
	userID domain.UserID

	mu      sync.Mutex
	sent    []sentFrame
	acks    []sentAck
	closed  bool
	sendErr error
}

type sentFrame struct {
	event   string
	payload any
}

type sentAck struct {
	id     string
	errMsg string
}

func newMockClient(id domain.ConnID, user domain.UserID) *mockClient {
	return &mockClient{id: id, userID: user}
}

func (m *mockClient) ID() domain.ConnID     { return m.id }
func (m *mockClient) UserID() domain.UserID { return m.userID }

func (m *mockClient) Send(event string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentFrame{event: event, payload: payload})
	return nil
}

func (m *mockClient) Ack(id string, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acks = append(m.acks, sentAck{id: id, errMsg: errMsg})
	return nil
}

func (m *mockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockClient) frames() []sentFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentFrame(nil), m.sent...)
}

func (m *mockClient) framesFor(event string) []sentFrame {
	var out []sentFrame
	for _, f := range m.frames() {
		if f.event == event {
			out = append(out, f)
		}
	}
	return out
}

func (m *mockClient) lastAck() (sentAck, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.acks) == 0 {
		return sentAck{}, false
	}
	return m.acks[len(m.acks)-1], true
}

// failingMembership simulates an unreachable membership store.
type failingMembership struct{}

func (failingMembership) IsMember(ctx context.Context, chat domain.ChatID, user domain.UserID) (bool, error) {
	return false, errors.New("store unreachable")
}

// failingDirectory simulates an unreachable profile lookup.
type failingDirectory struct{}

func (failingDirectory) DisplayInfo(ctx context.Context, user domain.UserID) (domain.DisplayInfo, error) {
	return domain.DisplayInfo{}, errors.New("store unreachable")
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }
