// Package rtclient keeps a taskboard real-time connection alive and the
// server-side room set in step with what the application is showing.
//
// The server keeps no room membership across reconnects, so the client is
// the source of truth: after every (re)connect it announces its identity and
// joins every room the current View requires. Delivery is best effort; use
// OnReconnect to re-fetch the view over REST after a gap.
package rtclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

const (
	writeWait          = 10 * time.Second
	defaultEventBuffer = 64
)

var (
	// ErrClosed is returned by operations on a closed Client.
	ErrClosed = errors.New("rtclient: client closed")

	// ErrUnauthorized means the server refused the handshake credentials.
	// Reconnecting with the same token cannot succeed.
	ErrUnauthorized = errors.New("rtclient: handshake rejected")

	// ErrReconnectExhausted is returned by Run when the backoff policy stops.
	ErrReconnectExhausted = errors.New("rtclient: reconnect attempts exhausted")

	errAlreadyRunning = errors.New("rtclient: already running")
)

// Identity is announced after every connect. The server only uses it for
// display; the session token decides who the user is.
type Identity struct {
	UserID    string `json:"userId,omitempty"`
	UserName  string `json:"userName,omitempty"`
	UserEmail string `json:"userEmail,omitempty"`
}

func (i Identity) empty() bool {
	return i.UserID == "" && i.UserName == "" && i.UserEmail == ""
}

// Event is one server message.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("rtclient: %s event has no payload", e.Type)
	}
	return json.Unmarshal(e.Payload, v)
}

// View is what the application currently shows: one organization and any
// number of teams.
type View struct {
	OrganizationID string
	TeamIDs        []string
}

// Rooms returns the room names v requires, organization first.
func (v View) Rooms() []string {
	subs := v.subscriptions()
	rooms := make([]string, len(subs))
	for i, s := range subs {
		rooms[i] = s.room
	}
	return rooms
}

type subscription struct {
	room  string
	join  string
	leave string
	id    string
}

func (v View) subscriptions() []subscription {
	var subs []subscription
	if id := strings.TrimSpace(v.OrganizationID); id != "" {
		subs = append(subs, subscription{room: "org:" + id, join: "joinOrganization", leave: "leaveOrganization", id: id})
	}
	seen := make(map[string]struct{}, len(v.TeamIDs))
	for _, id := range v.TeamIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		subs = append(subs, subscription{room: "team:" + id, join: "joinTeam", leave: "leaveTeam", id: id})
	}
	return subs
}

func (v View) clone() View {
	v.TeamIDs = append([]string(nil), v.TeamIDs...)
	return v
}

// Options configures a Client. Only URL is required.
type Options struct {
	// URL of the socket endpoint, e.g. ws://localhost:8080/api/v1/ws.
	URL string

	// Token is sent as a Bearer credential on every handshake.
	Token    string
	Identity Identity
	View     View
	Header   http.Header
	Dialer   *websocket.Dialer

	// NewBackOff builds the reconnect policy. The default retries forever
	// with exponential delays capped at 30s.
	NewBackOff func() backoff.BackOff

	// OnEvent receives every server event on the Run goroutine. When nil,
	// events go to the Events channel instead.
	OnEvent func(Event)

	// OnStatus is called after every state change.
	OnStatus func(State)

	// OnReconnect is called after each successful reconnect, never after
	// the first connect.
	OnReconnect func()

	EventBuffer int
	Logger      *slog.Logger
}

// Client is a reconnecting subscriber to taskboard rooms.
type Client struct {
	opts   Options
	dialer *websocket.Dialer
	events chan Event
	logger *slog.Logger

	stateMu sync.Mutex
	state   State

	// mu guards conn and view and serialises writes.
	mu   sync.Mutex
	conn *websocket.Conn
	view View

	running   atomic.Bool
	closing   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// New validates opts and returns a disconnected Client.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errors.New("rtclient: URL is required")
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = defaultBackOff
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Client{
		opts:   opts,
		dialer: opts.Dialer,
		events: make(chan Event, opts.EventBuffer),
		logger: opts.Logger.With("component", "rtclient"),
		state:  StateDisconnected,
		view:   opts.View.clone(),
		done:   make(chan struct{}),
	}, nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Events delivers server events when Options.OnEvent is nil. It is closed
// when Run returns. Events are dropped while the buffer is full.
func (c *Client) Events() <-chan Event {
	return c.events
}

// State returns the current connectivity.
func (c *Client) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// View returns a copy of the current view.
func (c *Client) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.clone()
}

func (c *Client) transitionTo(next State) error {
	c.stateMu.Lock()
	if err := c.state.validateTransitionTo(next); err != nil {
		c.stateMu.Unlock()
		return err
	}
	c.state = next
	c.stateMu.Unlock()

	c.logger.Debug("state changed", "state", next)
	if c.opts.OnStatus != nil {
		c.opts.OnStatus(next)
	}
	return nil
}

func (c *Client) closed() bool {
	return c.closing.Load()
}

// Run connects and keeps the connection alive until ctx is cancelled or
// Close is called. It returns nil after Close, ctx.Err() on cancellation,
// and ErrUnauthorized or ErrReconnectExhausted when it gives up.
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errAlreadyRunning
	}
	defer close(c.events)

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	policy := c.opts.NewBackOff()
	policy.Reset()
	connects := 0

	for {
		if err := c.transitionTo(StateConnecting); err != nil {
			return c.stop(parent, nil)
		}

		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return c.stop(parent, nil)
			}
			if errors.Is(err, ErrUnauthorized) {
				c.logger.Error("server rejected credentials", "error", err)
				return c.stop(parent, err)
			}
			c.logger.Warn("connect failed", "error", err)
			_ = c.transitionTo(StateDisconnected)
			if err := c.wait(ctx, policy); err != nil {
				return c.stop(parent, err)
			}
			continue
		}
		policy.Reset()

		c.attach(conn)
		if err := c.transitionTo(StateConnected); err != nil {
			_ = conn.Close()
			return c.stop(parent, nil)
		}
		if connects > 0 && c.opts.OnReconnect != nil {
			c.opts.OnReconnect()
		}
		connects++

		err = c.readLoop(ctx, conn)
		c.detach(conn)
		if ctx.Err() != nil || c.closed() {
			return c.stop(parent, nil)
		}

		c.logger.Warn("connection lost", "error", err)
		_ = c.transitionTo(StateDisconnected)
		if err := c.wait(ctx, policy); err != nil {
			return c.stop(parent, err)
		}
	}
}

// stop settles Run's return value. A Close from the application wins over
// cancellation.
func (c *Client) stop(parent context.Context, err error) error {
	userClosed := c.closed()
	_ = c.Close()
	switch {
	case userClosed:
		return nil
	case err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return parent.Err()
	}
}

func (c *Client) wait(ctx context.Context, policy backoff.BackOff) error {
	delay := policy.NextBackOff()
	if delay == backoff.Stop {
		return ErrReconnectExhausted
	}
	c.logger.Debug("reconnecting", "delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := c.opts.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.opts.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, resp.Status)
		}
		return nil, err
	}
	return conn, nil
}

// attach makes conn current, announces the identity and joins every room
// of the current view. A failed write surfaces as a read error right after.
func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn = conn
	if !c.opts.Identity.empty() {
		if err := c.writeLocked("identify", c.opts.Identity); err != nil {
			c.logger.Warn("identify failed", "error", err)
			return
		}
	}
	for _, sub := range c.view.subscriptions() {
		if err := c.writeLocked(sub.join, sub.id); err != nil {
			c.logger.Warn("join failed", "room", sub.room, "error", err)
			return
		}
	}
}

func (c *Client) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var event Event
		if err := json.Unmarshal(data, &event); err != nil || event.Type == "" {
			c.logger.Warn("ignoring malformed event", "error", err)
			continue
		}
		c.dispatch(event)
	}
}

func (c *Client) dispatch(event Event) {
	if c.opts.OnEvent != nil {
		c.opts.OnEvent(event)
		return
	}
	select {
	case c.events <- event:
	default:
		c.logger.Warn("event buffer full, dropping event", "event", event.Type)
	}
}

type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

func (c *Client) writeLocked(kind string, payload any) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(outbound{Type: kind, Payload: payload})
}

// SetView replaces the view. While connected, rooms no longer required are
// left and new ones joined; otherwise the view is applied on the next
// connect. Write failures are only logged: the connection is going down and
// the next connect joins the new view.
func (c *Client) SetView(v View) error {
	if c.closed() {
		return ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	previous := c.view.subscriptions()
	c.view = v.clone()
	if c.conn == nil {
		return nil
	}

	next := c.view.subscriptions()
	keep := make(map[string]struct{}, len(next))
	for _, sub := range next {
		keep[sub.room] = struct{}{}
	}
	had := make(map[string]struct{}, len(previous))
	for _, sub := range previous {
		had[sub.room] = struct{}{}
		if _, ok := keep[sub.room]; ok {
			continue
		}
		if err := c.writeLocked(sub.leave, sub.id); err != nil {
			c.logger.Warn("leave failed", "room", sub.room, "error", err)
			return nil
		}
	}
	for _, sub := range next {
		if _, ok := had[sub.room]; ok {
			continue
		}
		if err := c.writeLocked(sub.join, sub.id); err != nil {
			c.logger.Warn("join failed", "room", sub.room, "error", err)
			return nil
		}
	}
	return nil
}

// Close leaves every room, closes the connection and stops Run. It is safe
// to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closing.Store(true)

		c.mu.Lock()
		if conn := c.conn; conn != nil {
			for _, sub := range c.view.subscriptions() {
				if err := c.writeLocked(sub.leave, sub.id); err != nil {
					break
				}
			}
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()
		close(c.done)

		if err := c.transitionTo(StateClosed); err != nil {
			c.logger.Debug("close transition skipped", "error", err)
		}
	})
	return nil
}
