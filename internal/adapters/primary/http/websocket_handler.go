package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	mw "github.com/lorrc/taskboard-backend/internal/adapters/primary/http/middleware"
	wsAdapter "github.com/lorrc/taskboard-backend/internal/adapters/primary/websocket"
	"github.com/lorrc/taskboard-backend/internal/core/domain"
	"github.com/lorrc/taskboard-backend/internal/infrastructure/logging"
)

// WebSocketHandler handles WebSocket connection upgrades
type WebSocketHandler struct {
	hub        *wsAdapter.Hub
	tokens     mw.TokenValidator
	authorizer wsAdapter.RoomAuthorizer
	cfg        WebSocketConfig
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// WebSocketConfig holds configuration for the WebSocket handler
type WebSocketConfig struct {
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
	IsDevelopment   bool

	// RequireAuth rejects handshakes without a session token. When false,
	// anonymous connections may join any room.
	RequireAuth bool

	Client wsAdapter.ClientConfig
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *wsAdapter.Hub,
	tokens mw.TokenValidator,
	authorizer wsAdapter.RoomAuthorizer,
	cfg WebSocketConfig,
	logger *slog.Logger,
) *WebSocketHandler {
	handler := &WebSocketHandler{
		hub:        hub,
		tokens:     tokens,
		authorizer: authorizer,
		cfg:        cfg,
		logger:     logger.With("handler", "websocket"),
	}

	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     handler.makeOriginChecker(),
	}

	return handler
}

// makeOriginChecker creates an origin checking function based on configuration
func (h *WebSocketHandler) makeOriginChecker() func(r *http.Request) bool {
	allowedOrigins := h.cfg.AllowedOrigins

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// In development mode, allow all origins (but log a warning)
		if h.cfg.IsDevelopment {
			if origin != "" {
				h.logger.Warn("allowing websocket connection in development mode",
					"origin", origin,
					"remote_addr", r.RemoteAddr,
				)
			}
			return true
		}

		// No origin header (same-origin request or non-browser client)
		if origin == "" {
			return true
		}

		if OriginAllowed(origin, allowedOrigins) {
			return true
		}

		h.logger.Warn("websocket connection rejected due to origin",
			"origin", origin,
			"remote_addr", r.RemoteAddr,
			"allowed_origins", allowedOrigins,
		)
		return false
	}
}

// OriginAllowed matches an Origin header against hosts, full origins and
// "*.example.com" wildcards.
func OriginAllowed(origin string, allowed []string) bool {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := parsed.Host

	for _, a := range allowed {
		switch {
		case a == "*":
			return true
		case strings.HasPrefix(a, "*."):
			suffix := a[1:] // keep ".example.com"
			if strings.HasSuffix(host, suffix) || host == a[2:] {
				return true
			}
		case strings.Contains(a, "://"):
			if strings.EqualFold(strings.TrimSuffix(a, "/"), origin) {
				return true
			}
		case host == a:
			return true
		}
	}
	return false
}

// sessionToken reads the handshake token from the query string or the
// Authorization header. Browsers cannot set headers on a socket handshake.
func sessionToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	token, _ := mw.BearerToken(r.Header.Get("Authorization"))
	return token
}

// ServeHTTP handles WebSocket connection requests
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// 1. Authenticate the connection
	var session domain.Identity
	authorizer := h.authorizer

	tokenString := sessionToken(r)
	switch {
	case tokenString != "":
		claims, err := h.tokens.ValidateToken(tokenString)
		if err != nil {
			h.logger.WarnContext(ctx, "websocket connection rejected: invalid token",
				"remote_addr", r.RemoteAddr,
				"error", err,
			)
			WriteJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Invalid or expired token", Code: "UNAUTHORIZED"})
			return
		}
		session = domain.Identity{UserID: claims.UserID, UserName: claims.Name, UserEmail: claims.Email}
	case h.cfg.RequireAuth:
		h.logger.WarnContext(ctx, "websocket connection rejected: missing token",
			"remote_addr", r.RemoteAddr,
		)
		WriteJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Missing authentication token", Code: "UNAUTHORIZED"})
		return
	default:
		authorizer = nil
	}

	// 2. Upgrade the connection
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.logger.WarnContext(ctx, "failed to upgrade websocket connection",
			"user_id", session.UserID,
			"error", err,
		)
		return
	}

	// 3. Create and register the new client
	client := wsAdapter.NewClient(h.hub, conn, session, authorizer, h.cfg.Client, h.logger)
	if err := h.hub.Register(client); err != nil {
		h.logger.WarnContext(ctx, "hub refused websocket connection", "error", err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}

	ctx = logging.WithConnID(ctx, client.ID)
	h.logger.InfoContext(ctx, "websocket connection established",
		"user_id", session.UserID,
		"remote_addr", r.RemoteAddr,
	)

	// 4. Start the I/O pumps in new goroutines
	go client.WritePump()
	go client.ReadPump()
}
