package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/lorrc/taskboard-backend/internal/core/domain"
)

const authorizeTimeout = 5 * time.Second

// RoomAuthorizer decides whether a user may join a room.
type RoomAuthorizer interface {
	CanJoinRoom(ctx context.Context, userID, room string) (bool, error)
}

// ClientConfig tunes a connection's buffers, keep-alive and inbound limits.
type ClientConfig struct {
	// Buffered outbound frames before the client counts as slow.
	SendBuffer int

	// Time allowed to write a message to the peer.
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration

	// Send pings to peer with this period. Must be less than PongWait.
	PingInterval time.Duration

	// Maximum message size allowed from peer.
	MaxMessageSize int64

	MessagesPerSecond float64
	MessageBurst      int
}

// DefaultClientConfig returns the settings used when none are configured.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		SendBuffer:        256,
		WriteWait:         10 * time.Second,
		PongWait:          60 * time.Second,
		PingInterval:      54 * time.Second,
		MaxMessageSize:    4096,
		MessagesPerSecond: 20,
		MessageBurst:      40,
	}
}

func (c ClientConfig) withDefaults() ClientConfig {
	d := DefaultClientConfig()
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = (c.PongWait * 9) / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.MessagesPerSecond <= 0 {
		c.MessagesPerSecond = d.MessagesPerSecond
	}
	if c.MessageBurst <= 0 {
		c.MessageBurst = d.MessageBurst
	}
	return c
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	// ID is assigned by the hub on Register.
	ID string

	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of encoded outbound frames.
	send chan []byte

	// session is the identity proven by the handshake token.
	session domain.Identity

	// identity and rooms are owned by the hub goroutine.
	identity domain.Identity
	rooms    map[string]struct{}

	authorizer RoomAuthorizer
	limiter    *rate.Limiter
	cfg        ClientConfig

	// closeOnce ensures the send channel is only closed once
	closeOnce sync.Once

	logger *slog.Logger
}

// NewClient creates a new WebSocket client. A nil authorizer lets every join through.
func NewClient(hub *Hub, conn *websocket.Conn, session domain.Identity, authorizer RoomAuthorizer, cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, cfg.SendBuffer),
		session:    session,
		identity:   session,
		rooms:      make(map[string]struct{}),
		authorizer: authorizer,
		limiter:    rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), cfg.MessageBurst),
		cfg:        cfg,
		logger:     logger.With("user_id", session.UserID),
	}
}

// closeSend safely closes the send channel exactly once
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// ReadPump pumps messages from the websocket connection to the hub.
// This method runs in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
			c.logger.Error("failed to set read deadline in pong handler", "error", err)
		}
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		c.handleIncomingMessage(message)
	}
}

// WritePump pumps messages from the hub to the websocket connection.
// This method runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}

			if !ok {
				// The hub closed the channel. Send close message.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug("failed to send close message", "error", err)
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// --- Incoming Message Handling ---

// handleIncomingMessage processes messages received from the client
func (c *Client) handleIncomingMessage(message []byte) {
	if !c.limiter.Allow() {
		c.logger.Warn("client message rate exceeded, dropping message", "conn_id", c.ID)
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("failed to unmarshal client message", "error", err)
		return
	}

	switch msg.Type {
	case MessageJoinTeam:
		c.handleRoom(msg, "teamId", domain.TeamRoom, true)

	case MessageLeaveTeam:
		c.handleRoom(msg, "teamId", domain.TeamRoom, false)

	case MessageJoinOrganization:
		c.handleRoom(msg, "organizationId", domain.OrganizationRoom, true)

	case MessageLeaveOrganization:
		c.handleRoom(msg, "organizationId", domain.OrganizationRoom, false)

	case MessageIdentify:
		var announced domain.Identity
		if err := json.Unmarshal(msg.Payload, &announced); err != nil {
			c.logger.Warn("failed to unmarshal identify payload", "error", err)
			return
		}
		c.hub.Announce(c, announced)

	case MessagePing:
		c.hub.pong(c)

	default:
		c.logger.Debug("received unknown message type", "type", msg.Type)
	}
}

func (c *Client) handleRoom(msg ClientMessage, field string, roomName func(string) string, join bool) {
	id := decodeID(msg.Payload, field)
	if id == "" {
		c.logger.Warn("missing room id", "type", msg.Type)
		return
	}
	room := roomName(id)

	if !join {
		c.hub.Leave(c, room)
		return
	}

	if reason, ok := c.authorize(room); !ok {
		c.logger.Info("room join denied", "room", room, "reason", reason)
		c.hub.deny(c, room, reason)
		return
	}
	c.hub.Join(c, room)
}

// authorize checks the session user against room membership.
func (c *Client) authorize(room string) (string, bool) {
	if c.authorizer == nil {
		return "", true
	}
	if c.session.UserID == "" {
		return DenyUnauthenticated, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), authorizeTimeout)
	defer cancel()

	ok, err := c.authorizer.CanJoinRoom(ctx, c.session.UserID, room)
	if err != nil {
		c.logger.Error("membership check failed", "room", room, "error", err)
		return DenyCheckFailed, false
	}
	if !ok {
		return DenyNotMember, false
	}
	return "", true
}
