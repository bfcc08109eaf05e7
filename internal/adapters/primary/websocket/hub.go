package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/lorrc/taskboard-backend/internal/core/domain"
	"github.com/lorrc/taskboard-backend/internal/core/ports"
	"github.com/lorrc/taskboard-backend/internal/infrastructure/metrics"
)

const defaultQueueSize = 1024

// ErrHubStopped is returned when the hub's event loop is no longer running.
var ErrHubStopped = errors.New("websocket hub stopped")

// Hub is the connection registry and room router. Every mutation and
// delivery runs on the goroutine executing Run.
type Hub struct {
	// connections maps connection IDs to live clients
	connections map[string]*Client

	// rooms maps room names to their local members
	rooms map[string]map[*Client]struct{}

	commands chan func()
	stopped  chan struct{}

	// bus carries presence events to other instances; nil means local only
	bus    ports.EventBus
	origin string

	metrics *metrics.Realtime
	logger  *slog.Logger
}

var _ ports.RoomRouter = (*Hub)(nil)

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithFanout routes hub-originated events through bus, stamped with origin.
func WithFanout(bus ports.EventBus, origin string) HubOption {
	return func(h *Hub) {
		h.bus = bus
		h.origin = origin
	}
}

// WithMetrics records hub gauges and counters on m.
func WithMetrics(m *metrics.Realtime) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// WithQueueSize sets how many pending commands the hub buffers before Deliver drops.
func WithQueueSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.commands = make(chan func(), n)
		}
	}
}

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		connections: make(map[string]*Client),
		rooms:       make(map[string]map[*Client]struct{}),
		commands:    make(chan func(), defaultQueueSize),
		stopped:     make(chan struct{}),
		logger:      logger.With("component", "websocket_hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes hub commands until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	h.logger.Info("hub started")
	for {
		select {
		case <-ctx.Done():
			close(h.stopped)
			for _, c := range h.connections {
				c.closeSend()
			}
			h.connections = make(map[string]*Client)
			h.rooms = make(map[string]map[*Client]struct{})
			h.logger.Info("hub stopped")
			return nil
		case cmd := <-h.commands:
			cmd()
		}
	}
}

// submit queues cmd, waiting for space. It reports false once the hub has stopped.
func (h *Hub) submit(cmd func()) bool {
	select {
	case <-h.stopped:
		return false
	default:
	}
	select {
	case h.commands <- cmd:
		return true
	case <-h.stopped:
		return false
	}
}

// query runs fn on the hub goroutine and waits for its result.
func query[T any](h *Hub, fn func() T) (T, error) {
	result := make(chan T, 1)
	var zero T
	if !h.submit(func() { result <- fn() }) {
		return zero, ErrHubStopped
	}
	select {
	case v := <-result:
		return v, nil
	case <-h.stopped:
		return zero, ErrHubStopped
	}
}

// Register adds a connection under a fresh ID with no rooms.
func (h *Hub) Register(c *Client) error {
	_, err := query(h, func() struct{} {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.rooms = make(map[string]struct{})
		h.connections[c.ID] = c
		h.metrics.SetConnections(len(h.connections))

		h.logger.Info("client registered",
			"conn_id", c.ID,
			"user_id", c.identity.UserID,
			"total_connections", len(h.connections),
		)
		return struct{}{}
	})
	return err
}

// Unregister removes a connection from the registry and every room it was in.
// Calling it more than once is harmless.
func (h *Hub) Unregister(c *Client) {
	h.submit(func() { h.unregister(c) })
}

// Announce records the display identity a client sent with identify.
func (h *Hub) Announce(c *Client, announced domain.Identity) {
	h.submit(func() {
		if _, ok := h.connections[c.ID]; !ok {
			return
		}
		c.identity = domain.MergeIdentity(c.session, announced)
		h.logger.Debug("client identified", "conn_id", c.ID, "user_id", c.identity.UserID)
	})
}

// Join adds c to room. Joining a room twice is a no-op.
func (h *Hub) Join(c *Client, room string) {
	h.submit(func() { h.join(c, room) })
}

// Leave removes c from room. Leaving a room c is not in is a no-op.
func (h *Hub) Leave(c *Client, room string) {
	h.submit(func() { h.leave(c, room) })
}

// Deliver queues env for delivery to the local members of its room.
// It never blocks; when the queue is full the envelope is dropped.
func (h *Hub) Deliver(env domain.Envelope) {
	select {
	case h.commands <- func() { h.deliver(env) }:
	default:
		h.metrics.Dropped("queue_full")
		h.logger.Warn("hub queue full, dropping event",
			"event", env.Event.Type,
			"room", env.Room,
		)
	}
}

// Emit sends event to every member of room on every instance.
func (h *Hub) Emit(ctx context.Context, room string, event domain.Event) error {
	env := domain.Envelope{Origin: h.origin, Room: room, Event: event}
	if h.bus != nil {
		return h.bus.Publish(ctx, env)
	}
	h.Deliver(env)
	return nil
}

// deny tells a single connection that its join was refused.
func (h *Hub) deny(c *Client, room, reason string) {
	h.metrics.JoinDenied()
	event, err := domain.NewEvent(domain.EventJoinDenied, domain.JoinDeniedPayload{Room: room, Reason: reason})
	if err != nil {
		return
	}
	h.submit(func() { h.sendDirect(c, event) })
}

// pong answers an application-level ping.
func (h *Hub) pong(c *Client) {
	h.submit(func() { h.sendDirect(c, domain.Event{Type: domain.EventPong}) })
}

// ConnectionCount returns the number of registered connections
func (h *Hub) ConnectionCount() int {
	n, _ := query(h, func() int { return len(h.connections) })
	return n
}

// RoomCount returns the number of rooms with at least one member
func (h *Hub) RoomCount() int {
	n, _ := query(h, func() int { return len(h.rooms) })
	return n
}

// RoomSize returns the number of local members of room
func (h *Hub) RoomSize(room string) int {
	n, _ := query(h, func() int { return len(h.rooms[room]) })
	return n
}

// RoomsOf returns the sorted rooms a connection is in.
func (h *Hub) RoomsOf(connID string) []string {
	rooms, _ := query(h, func() []string {
		c, ok := h.connections[connID]
		if !ok {
			return nil
		}
		out := make([]string, 0, len(c.rooms))
		for room := range c.rooms {
			out = append(out, room)
		}
		sort.Strings(out)
		return out
	})
	return rooms
}

func (h *Hub) unregister(c *Client) {
	if _, ok := h.connections[c.ID]; !ok {
		return
	}
	delete(h.connections, c.ID)

	for room := range c.rooms {
		h.removeFromRoom(c, room)
	}
	c.closeSend()

	h.metrics.SetConnections(len(h.connections))
	h.metrics.SetRooms(len(h.rooms))
	h.logger.Info("client unregistered",
		"conn_id", c.ID,
		"user_id", c.identity.UserID,
	)
}

func (h *Hub) join(c *Client, room string) {
	if _, ok := h.connections[c.ID]; !ok {
		return
	}
	if _, ok := c.rooms[room]; ok {
		return
	}

	members := h.rooms[room]
	if members == nil {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
	h.metrics.SetRooms(len(h.rooms))

	h.logger.Debug("client joined room", "conn_id", c.ID, "room", room)

	if kind, teamID := domain.ParseRoom(room); kind == domain.RoomTeam {
		h.presence(room, c.ID, domain.EventUserJoined, domain.UserJoinedPayload{
			UserID:   c.identity.UserID,
			UserName: c.identity.DisplayName(),
			TeamID:   teamID,
		})
	}
}

func (h *Hub) leave(c *Client, room string) {
	if _, ok := c.rooms[room]; !ok {
		return
	}
	h.removeFromRoom(c, room)
	h.metrics.SetRooms(len(h.rooms))
	h.logger.Debug("client left room", "conn_id", c.ID, "room", room)
}

// removeFromRoom drops c from room and announces userLeft for team rooms.
func (h *Hub) removeFromRoom(c *Client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}

	if kind, teamID := domain.ParseRoom(room); kind == domain.RoomTeam {
		h.presence(room, c.ID, domain.EventUserLeft, domain.UserLeftPayload{
			UserID: c.identity.UserID,
			TeamID: teamID,
		})
	}
}

// presence announces a membership change to the rest of room.
func (h *Hub) presence(room, actor string, kind domain.EventKind, payload any) {
	event, err := domain.NewEvent(kind, payload)
	if err != nil {
		h.logger.Error("failed to encode presence event", "event", kind, "error", err)
		return
	}
	env := domain.Envelope{Origin: h.origin, Room: room, Exclude: actor, Event: event}

	if h.bus == nil {
		h.deliver(env)
		return
	}
	if err := h.bus.Publish(context.Background(), env); err != nil {
		h.logger.Warn("failed to publish presence event", "event", kind, "room", room, "error", err)
	}
}

// deliver writes env to the send buffer of every member except env.Exclude.
// Members whose buffer is full are disconnected.
func (h *Hub) deliver(env domain.Envelope) {
	members := h.rooms[env.Room]
	if len(members) == 0 {
		return
	}

	frame, err := json.Marshal(env.Event)
	if err != nil {
		h.logger.Error("failed to encode event", "event", env.Event.Type, "error", err)
		return
	}

	var slow []*Client
	sent := 0
	for c := range members {
		if c.ID == env.Exclude {
			continue
		}
		select {
		case c.send <- frame:
			sent++
		default:
			slow = append(slow, c)
		}
	}
	h.metrics.Delivered(string(env.Event.Type), sent)

	for _, c := range slow {
		h.metrics.Dropped("slow_client")
		h.logger.Warn("client send buffer full, unregistering",
			"conn_id", c.ID,
			"user_id", c.identity.UserID,
		)
		h.unregister(c)
	}
}

func (h *Hub) sendDirect(c *Client, event domain.Event) {
	if _, ok := h.connections[c.ID]; !ok {
		return
	}
	frame, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
		h.logger.Debug("send buffer full, skipping direct message", "conn_id", c.ID, "event", event.Type)
	}
}
