package http

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/parley-im/parley/internal/core/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// accessTokenCookie is the cookie the auth layer sets at login; part of
	// the client contract.
	accessTokenCookie = "accessToken"

	sendQueueSize = 256
	writeWait     = 5 * time.Second
)

func newUpgrader(allowedOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients send no Origin header.
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			if u.Host == r.Host {
				return true
			}
			return allowedOrigin != "" && origin == allowedOrigin
		},
	}
}

// bearerToken extracts the handshake credential: an explicit token query
// parameter takes precedence over the access-token cookie.
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if c, err := r.Cookie(accessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// wsClient implements port.Client over a gorilla websocket connection. All
// writes go through a bounded queue drained by a single pump goroutine; a
// full queue drops the frame rather than block the sender.
type wsClient struct {
	id     domain.ConnID
	userID domain.UserID
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	log    zerolog.Logger
}

func newWSClient(conn *websocket.Conn, userID domain.UserID) *wsClient {
	id := domain.NewConnID()
	return &wsClient{
		id:     id,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
		log: log.With().
			Str("conn_id", id.String()).
			Str("user_id", userID.String()).
			Logger(),
	}
}

func (c *wsClient) ID() domain.ConnID     { return c.id }
func (c *wsClient) UserID() domain.UserID { return c.userID }

func (c *wsClient) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.enqueue(domain.Envelope{Event: event, Data: data})
}

func (c *wsClient) Ack(id string, errMsg string) error {
	data, err := json.Marshal(domain.AckBody{Error: errMsg})
	if err != nil {
		return err
	}
	return c.enqueue(domain.Envelope{Event: domain.EventAck, Data: data, Ack: id})
}

func (c *wsClient) enqueue(env domain.Envelope) error {
	frame, err := json.Marshal(env)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return net.ErrClosed
	case c.send <- frame:
		return nil
	default:
		c.log.Warn().Str("event", env.Event).Msg("Send queue full, dropping frame")
		return nil
	}
}

func (c *wsClient) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// writePump is the connection's single writer.
func (c *wsClient) writePump() {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug().Err(err).Msg("Write failed, closing connection")
				_ = c.Close()
				return
			}
		}
	}
}

// ServeWS runs the authentication handshake, upgrades the transport and
// pumps inbound events into the gateway. The credential is verified before
// the upgrade so a rejected connection leaves no state behind.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	userID, err := h.Gateway.Authenticate(r.Context(), token)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Rejecting websocket handshake")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	client := newWSClient(conn, userID)
	go client.writePump()

	h.Gateway.Connect(r.Context(), client)

	defer func() {
		h.Gateway.Disconnect(r.Context(), client)
		_ = client.Close()
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				client.log.Debug().Err(err).Msg("Unexpected close error")
			}
			return
		}

		var env domain.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			client.log.Debug().Err(err).Msg("Ignoring malformed frame")
			continue
		}
		if env.Event == "" {
			continue
		}

		// One goroutine per event: a stalled external lookup blocks only
		// that event. Launch order preserves arrival order.
		go h.Gateway.Dispatch(r.Context(), client, env)
	}
}
