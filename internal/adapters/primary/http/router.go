package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	mw "github.com/lorrc/taskboard-backend/internal/adapters/primary/http/middleware"
)

// RouterConfig collects the handlers and middleware mounted by NewRouter.
// Nil limiters and a nil Metrics handler are skipped.
type RouterConfig struct {
	Logger *slog.Logger
	Tokens mw.TokenValidator

	Auth      *AuthHandler
	Tasks     *TaskHandler
	Epics     *EpicHandler
	WebSocket *WebSocketHandler
	Health    *HealthHandler
	Metrics   http.Handler

	GeneralLimiter *mw.RateLimiter
	AuthLimiter    *mw.RateLimiter

	// AllowedOrigins is the cross-origin accept list for the socket handshake.
	AllowedOrigins []string
	IsDevelopment  bool
}

// NewRouter builds the HTTP surface of the service.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(cfg.Logger))
	r.Use(mw.RecoveryLogger(cfg.Logger))

	// Health check endpoints (outside /api/v1 for standard probe paths)
	if cfg.Health != nil {
		cfg.Health.RegisterRoutes(r)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.GeneralLimiter != nil {
			r.Use(cfg.GeneralLimiter.Middleware)
		}

		// Public auth routes with stricter rate limiting
		r.Group(func(r chi.Router) {
			if cfg.AuthLimiter != nil {
				r.Use(cfg.AuthLimiter.Middleware)
			}
			r.Route("/auth", cfg.Auth.RegisterRoutes)
		})

		// WebSocket route (Authentication is handled inside the handler)
		if cfg.WebSocket != nil {
			ws := r.With(socketCORS(cfg.AllowedOrigins, cfg.IsDevelopment))
			ws.Get("/ws", cfg.WebSocket.ServeHTTP)
			ws.Options("/ws", func(w http.ResponseWriter, r *http.Request) {})
			ws.Post("/ws", rejectSocketPost)
		}

		// Protected REST routes
		r.Group(func(r chi.Router) {
			r.Use(mw.JWTMiddleware(cfg.Tokens))
			r.Route("/teams", cfg.Tasks.RegisterTeamRoutes)
			r.Route("/tasks", cfg.Tasks.RegisterRoutes)
			r.Route("/epics", cfg.Epics.RegisterRoutes)
		})
	})

	return r
}

// rejectSocketPost answers POST on the handshake path with a 400.
func rejectSocketPost(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{
		Error: "websocket upgrade requires GET",
		Code:  "BAD_REQUEST",
	})
}

// socketCORS answers cross-origin checks on the handshake path.
func socketCORS(allowed []string, allowAll bool) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return allowAll || OriginAllowed(origin, allowed)
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
