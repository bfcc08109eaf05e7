package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	wsAdapter "github.com/lorrc/taskboard-backend/internal/adapters/primary/websocket"
	"github.com/lorrc/taskboard-backend/internal/auth"
	"github.com/lorrc/taskboard-backend/internal/core/mocks"
)

const testSecret = "test-secret"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// apiFixture wires handlers over mocked services.
type apiFixture struct {
	tasks   *mocks.MockTaskService
	epics   *mocks.MockEpicService
	authSvc *mocks.MockAuthService
	tokens  *auth.TokenManager
	handler stdhttp.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := testLogger()
	f := &apiFixture{
		tasks:   mocks.NewMockTaskService(),
		epics:   mocks.NewMockEpicService(),
		authSvc: mocks.NewMockAuthService(),
		tokens:  auth.NewTokenManager(testSecret, time.Hour),
	}
	errs := NewErrorHandler(logger)
	f.handler = NewRouter(RouterConfig{
		Logger: logger,
		Tokens: f.tokens,
		Auth:   NewAuthHandler(f.authSvc, f.tokens, errs, logger),
		Tasks:  NewTaskHandler(f.tasks, errs, logger),
		Epics:  NewEpicHandler(f.epics, errs, logger),
		Health: NewHealthHandler(nil, nil, "test"),
	})
	return f
}

func (f *apiFixture) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := f.tokens.GenerateToken(userID, "o-1", "Test User", "test@example.com")
	require.NoError(t, err)
	return token
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, reader).WithContext(context.Background())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func startHub(t *testing.T, opts ...wsAdapter.HubOption) *wsAdapter.Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := wsAdapter.NewHub(testLogger(), opts...)
	done := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func newRecorder() *httptest.ResponseRecorder { return httptest.NewRecorder() }

func newRequest(method, path string) *stdhttp.Request {
	return httptest.NewRequest(method, path, nil)
}
