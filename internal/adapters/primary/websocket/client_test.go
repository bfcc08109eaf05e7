package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/taskboard-backend/internal/core/domain"
)

type fakeAuthorizer struct {
	allowed map[string]bool
	err     error
	calls   int
}

func (f *fakeAuthorizer) CanJoinRoom(_ context.Context, userID, room string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.allowed[userID+"|"+room], nil
}

func newAuthorizedClient(t *testing.T, h *Hub, identity domain.Identity, auth RoomAuthorizer) *Client {
	t.Helper()
	c := NewClient(h, nil, identity, auth, ClientConfig{}, testLogger())
	require.NoError(t, h.Register(c))
	return c
}

func TestDecodeID(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"bare string", `"team-1"`, "team-1"},
		{"padded string", `"  team-1 "`, "team-1"},
		{"number", `42`, "42"},
		{"object", `{"teamId":"team-1"}`, "team-1"},
		{"object with number", `{"teamId":7}`, "7"},
		{"wrong field", `{"organizationId":"o"}`, ""},
		{"nested object", `{"teamId":{"teamId":"x"}}`, ""},
		{"null", `null`, ""},
		{"bool", `true`, ""},
		{"empty", ``, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeID(json.RawMessage(tt.payload), "teamId"))
		})
	}
}

func TestClient_JoinAndLeaveMessages(t *testing.T) {
	h := startHub(t)
	c := newAuthorizedClient(t, h, domain.Identity{UserID: "u1"}, nil)

	c.handleIncomingMessage([]byte(`{"type":"joinTeam","payload":"t1"}`))
	c.handleIncomingMessage([]byte(`{"type":"joinOrganization","payload":{"organizationId":"o1"}}`))
	assert.Equal(t, []string{"org:o1", "team:t1"}, h.RoomsOf(c.ID))

	c.handleIncomingMessage([]byte(`{"type":"leaveTeam","payload":{"teamId":"t1"}}`))
	c.handleIncomingMessage([]byte(`{"type":"leaveOrganization","payload":"o1"}`))
	assert.Empty(t, h.RoomsOf(c.ID))
}

func TestClient_IgnoresMalformedMessages(t *testing.T) {
	h := startHub(t)
	c := newAuthorizedClient(t, h, domain.Identity{UserID: "u1"}, nil)

	for _, raw := range []string{
		`not json`,
		`{"type":"joinTeam"}`,
		`{"type":"joinTeam","payload":""}`,
		`{"type":"joinOrganization","payload":{"teamId":"t1"}}`,
		`{"type":"identify","payload":"nope"}`,
		`{"type":"dance"}`,
	} {
		c.handleIncomingMessage([]byte(raw))
	}

	assert.Empty(t, h.RoomsOf(c.ID))
	assertNoEvent(t, c)
}

func TestClient_Ping(t *testing.T) {
	h := startHub(t)
	c := newAuthorizedClient(t, h, domain.Identity{UserID: "u1"}, nil)

	c.handleIncomingMessage([]byte(`{"type":"ping"}`))

	assert.Equal(t, domain.EventPong, nextEvent(t, c).Type)
}

func TestClient_AuthorizedJoins(t *testing.T) {
	t.Run("member joins", func(t *testing.T) {
		h := startHub(t)
		auth := &fakeAuthorizer{allowed: map[string]bool{"u1|team:t1": true}}
		c := newAuthorizedClient(t, h, domain.Identity{UserID: "u1"}, auth)

		c.handleIncomingMessage([]byte(`{"type":"joinTeam","payload":"t1"}`))

		assert.Equal(t, []string{"team:t1"}, h.RoomsOf(c.ID))
		assertNoEvent(t, c)
	})

	t.Run("non-member is denied", func(t *testing.T) {
		h := startHub(t)
		auth := &fakeAuthorizer{allowed: map[string]bool{}}
		c := newAuthorizedClient(t, h, domain.Identity{UserID: "u1"}, auth)

		c.handleIncomingMessage([]byte(`{"type":"joinOrganization","payload":"o1"}`))

		ev := nextEvent(t, c)
		require.Equal(t, domain.EventJoinDenied, ev.Type)
		var denied domain.JoinDeniedPayload
		require.NoError(t, json.Unmarshal(ev.Payload, &denied))
		assert.Equal(t, domain.JoinDeniedPayload{Room: "org:o1", Reason: DenyNotMember}, denied)
		assert.Empty(t, h.RoomsOf(c.ID))
	})

	t.Run("anonymous connection is denied without a lookup", func(t *testing.T) {
		h := startHub(t)
		auth := &fakeAuthorizer{}
		c := newAuthorizedClient(t, h, domain.Identity{}, auth)

		c.handleIncomingMessage([]byte(`{"type":"identify","payload":{"userId":"u1"}}`))
		c.handleIncomingMessage([]byte(`{"type":"joinTeam","payload":"t1"}`))

		var denied domain.JoinDeniedPayload
		require.NoError(t, json.Unmarshal(nextEvent(t, c).Payload, &denied))
		assert.Equal(t, DenyUnauthenticated, denied.Reason)
		assert.Zero(t, auth.calls)
	})

	t.Run("lookup failure is denied", func(t *testing.T) {
		h := startHub(t)
		auth := &fakeAuthorizer{err: errors.New("db down")}
		c := newAuthorizedClient(t, h, domain.Identity{UserID: "u1"}, auth)

		c.handleIncomingMessage([]byte(`{"type":"joinTeam","payload":"t1"}`))

		var denied domain.JoinDeniedPayload
		require.NoError(t, json.Unmarshal(nextEvent(t, c).Payload, &denied))
		assert.Equal(t, DenyCheckFailed, denied.Reason)
	})
}

func TestClient_RateLimit(t *testing.T) {
	h := startHub(t)
	c := NewClient(h, nil, domain.Identity{UserID: "u1"}, nil, ClientConfig{MessagesPerSecond: 0.001, MessageBurst: 1}, testLogger())
	require.NoError(t, h.Register(c))

	c.handleIncomingMessage([]byte(`{"type":"joinTeam","payload":"t1"}`))
	c.handleIncomingMessage([]byte(`{"type":"joinTeam","payload":"t2"}`))

	assert.Equal(t, []string{"team:t1"}, h.RoomsOf(c.ID))
}

func TestClientConfig_Defaults(t *testing.T) {
	cfg := ClientConfig{PongWait: 10 * time.Second, PingInterval: 20 * time.Second}.withDefaults()

	assert.Equal(t, 256, cfg.SendBuffer)
	assert.Less(t, cfg.PingInterval, cfg.PongWait)
}
