package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	wsAdapter "github.com/lorrc/taskboard-backend/internal/adapters/primary/websocket"
	"github.com/lorrc/taskboard-backend/internal/adapters/secondary/bus"
	"github.com/lorrc/taskboard-backend/internal/auth"
	"github.com/lorrc/taskboard-backend/internal/core/domain"
	"github.com/lorrc/taskboard-backend/internal/core/mocks"
	"github.com/lorrc/taskboard-backend/internal/core/services"
)

// liveStack runs the real hub, bus, publisher and services over mocked storage.
type liveStack struct {
	server  *httptest.Server
	hub     *wsAdapter.Hub
	tokens  *auth.TokenManager
	taskRep *mocks.MockTaskRepository
	members *mocks.MockMembershipRepository
}

func newLiveStack(t *testing.T, requireAuth bool) *liveStack {
	t.Helper()
	logger := testLogger()

	eventBus := bus.NewLocal(nil)
	hub := startHub(t, wsAdapter.WithFanout(eventBus, "test-instance"))
	eventBus.Subscribe(hub.Deliver)

	s := &liveStack{
		hub:     hub,
		tokens:  auth.NewTokenManager(testSecret, time.Hour),
		taskRep: mocks.NewMockTaskRepository(),
		members: mocks.NewMockMembershipRepository(),
	}

	membership := services.NewMembershipService(s.members, 16, time.Minute)
	publisher := services.NewPublisher(eventBus, "test-instance", logger)
	taskService := services.NewTaskService(s.taskRep, membership, publisher)

	errs := NewErrorHandler(logger)
	router := NewRouter(RouterConfig{
		Logger: logger,
		Tokens: s.tokens,
		Auth:   NewAuthHandler(mocks.NewMockAuthService(), s.tokens, errs, logger),
		Tasks:  NewTaskHandler(taskService, errs, logger),
		Epics:  NewEpicHandler(mocks.NewMockEpicService(), errs, logger),
		WebSocket: NewWebSocketHandler(hub, s.tokens, membership, WebSocketConfig{
			AllowedOrigins: []string{"app.example.com"},
			RequireAuth:    requireAuth,
		}, logger),
		AllowedOrigins: []string{"app.example.com"},
	})

	s.server = httptest.NewServer(router)
	t.Cleanup(s.server.Close)
	return s
}

func (s *liveStack) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := s.tokens.GenerateToken(userID, "o-1", "User "+userID, userID+"@example.com")
	require.NoError(t, err)
	return token
}

func (s *liveStack) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/api/v1/ws"
	if token != "" {
		url += "?token=" + token
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(wsAdapter.ClientMessage{Type: msgType, Payload: raw}))
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev domain.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, frame, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame: %s", frame)
}

func (s *liveStack) waitRoomSize(t *testing.T, room string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return s.hub.RoomSize(room) == n }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_TaskUpdateFansOutToTeamAndOrgRooms(t *testing.T) {
	s := newLiveStack(t, true)
	s.members.On("IsTeamMember", mock.Anything, mock.Anything, "t-1").Return(true, nil)
	s.members.On("IsOrganizationMember", mock.Anything, mock.Anything, "o-1").Return(true, nil)

	teamConn := s.dial(t, s.token(t, "u-team"))
	orgConn := s.dial(t, s.token(t, "u-org"))
	idleConn := s.dial(t, s.token(t, "u-idle"))

	send(t, teamConn, "joinTeam", "t-1")
	send(t, orgConn, "joinOrganization", map[string]string{"organizationId": "o-1"})
	s.waitRoomSize(t, domain.TeamRoom("t-1"), 1)
	s.waitRoomSize(t, domain.OrganizationRoom("o-1"), 1)

	existing := &domain.Task{ID: "t1", OrganizationID: "o-1", TeamID: "t-1", Title: "Ship", Status: domain.TaskStatusTodo, CreatedBy: "u-team"}
	s.taskRep.On("GetByID", mock.Anything, "t1").Return(existing, nil)
	s.taskRep.On("Update", mock.Anything, mock.Anything).Return(func(_ context.Context, task *domain.Task) *domain.Task { return task }, nil)

	req, err := stdhttp.NewRequest(stdhttp.MethodPatch, s.server.URL+"/api/v1/tasks/t1", strings.NewReader(`{"status":"DONE"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+s.token(t, "u-actor"))
	resp, err := stdhttp.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)

	teamEvent := readEvent(t, teamConn)
	orgEvent := readEvent(t, orgConn)
	assert.Equal(t, domain.EventTaskUpdated, teamEvent.Type)
	assert.JSONEq(t, string(teamEvent.Payload), string(orgEvent.Payload))

	var payload domain.TaskUpdatedPayload
	require.NoError(t, json.Unmarshal(teamEvent.Payload, &payload))
	assert.Equal(t, domain.TaskUpdatedPayload{
		ID:             "t1",
		TeamID:         "t-1",
		OrganizationID: "o-1",
		Status:         domain.TaskStatusDone,
		UpdatedBy:      "u-actor",
	}, payload)

	expectSilence(t, idleConn)
}

func TestWebSocket_PresenceBetweenTeamMembers(t *testing.T) {
	s := newLiveStack(t, true)
	s.members.On("IsTeamMember", mock.Anything, mock.Anything, "42").Return(true, nil)

	a := s.dial(t, s.token(t, "alice"))
	b := s.dial(t, s.token(t, "bob"))

	send(t, a, "joinTeam", "42")
	s.waitRoomSize(t, domain.TeamRoom("42"), 1)
	send(t, b, "joinTeam", map[string]string{"teamId": "42"})

	joined := readEvent(t, a)
	require.Equal(t, domain.EventUserJoined, joined.Type)
	var jp domain.UserJoinedPayload
	require.NoError(t, json.Unmarshal(joined.Payload, &jp))
	assert.Equal(t, domain.UserJoinedPayload{UserID: "bob", UserName: "User bob", TeamID: "42"}, jp)
	expectSilence(t, b)

	send(t, b, "leaveTeam", "42")
	left := readEvent(t, a)
	require.Equal(t, domain.EventUserLeft, left.Type)
	var lp domain.UserLeftPayload
	require.NoError(t, json.Unmarshal(left.Payload, &lp))
	assert.Equal(t, domain.UserLeftPayload{UserID: "bob", TeamID: "42"}, lp)
}

func TestWebSocket_JoinDeniedForNonMember(t *testing.T) {
	s := newLiveStack(t, true)
	s.members.On("IsTeamMember", mock.Anything, "mallory", "t-1").Return(false, nil)

	conn := s.dial(t, s.token(t, "mallory"))
	send(t, conn, "joinTeam", "t-1")

	ev := readEvent(t, conn)
	require.Equal(t, domain.EventJoinDenied, ev.Type)
	var denied domain.JoinDeniedPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &denied))
	assert.Equal(t, domain.TeamRoom("t-1"), denied.Room)
	assert.Equal(t, wsAdapter.DenyNotMember, denied.Reason)
	assert.Zero(t, s.hub.RoomSize(domain.TeamRoom("t-1")))
}

func TestWebSocket_Handshake(t *testing.T) {
	s := newLiveStack(t, true)
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/api/v1/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)

	header := stdhttp.Header{}
	header.Set("Origin", "https://evil.example.net")
	_, resp, err = websocket.DefaultDialer.Dial(url+"?token="+s.token(t, "u1"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, stdhttp.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://app.example.com")
	header.Set("Authorization", "Bearer "+s.token(t, "u1"))
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestWebSocket_AnonymousWhenAuthOptional(t *testing.T) {
	s := newLiveStack(t, false)

	conn := s.dial(t, "")
	send(t, conn, "joinTeam", "open-team")
	s.waitRoomSize(t, domain.TeamRoom("open-team"), 1)
	s.members.AssertNotCalled(t, "IsTeamMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestWebSocket_PingPong(t *testing.T) {
	s := newLiveStack(t, true)
	conn := s.dial(t, s.token(t, "u1"))

	send(t, conn, "ping", nil)
	assert.Equal(t, domain.EventPong, readEvent(t, conn).Type)
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"app.example.com", "*.example.org", "https://exact.example.net"}
	tests := []struct {
		origin string
		want   bool
	}{
		{"https://app.example.com", true},
		{"https://board.example.org", true},
		{"https://example.org", true},
		{"https://exact.example.net", true},
		{"http://exact.example.net", false},
		{"https://evil.example.com", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.want, OriginAllowed(tt.origin, allowed))
		})
	}
	assert.True(t, OriginAllowed("https://anything.dev", []string{"*"}))
}

func TestSocketCORSPreflight(t *testing.T) {
	s := newLiveStack(t, true)

	req, err := stdhttp.NewRequest(stdhttp.MethodOptions, s.server.URL+"/api/v1/ws", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", stdhttp.MethodPost)
	resp, err := stdhttp.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), stdhttp.MethodPost)
}

func TestSocketPostIsRejected(t *testing.T) {
	s := newLiveStack(t, true)

	req, err := stdhttp.NewRequest(stdhttp.MethodPost, s.server.URL+"/api/v1/ws", strings.NewReader("{}"))
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err := stdhttp.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, stdhttp.StatusBadRequest, resp.StatusCode)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "websocket upgrade requires GET", body.Error)
	assert.Equal(t, "BAD_REQUEST", body.Code)
}
