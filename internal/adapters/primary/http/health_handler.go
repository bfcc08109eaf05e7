package http

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	probeTimeout    = 5 * time.Second
)

// Pinger is satisfied by the database pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RealtimeStats exposes the connection registry counters.
type RealtimeStats interface {
	ConnectionCount() int
	RoomCount() int
}

// HealthHandler serves the liveness, readiness and diagnostic probes.
type HealthHandler struct {
	db       Pinger
	realtime RealtimeStats
	started  time.Time
	version  string
}

// NewHealthHandler creates a health handler. realtime may be nil.
func NewHealthHandler(db Pinger, realtime RealtimeStats, version string) *HealthHandler {
	return &HealthHandler{db: db, realtime: realtime, started: time.Now(), version: version}
}

// RealtimeStatus summarizes the socket layer of this instance.
type RealtimeStatus struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

// Check is the outcome of one dependency probe.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthResponse is the body of every health endpoint.
type HealthResponse struct {
	Status     string           `json:"status"`
	Timestamp  string           `json:"timestamp"`
	Version    string           `json:"version,omitempty"`
	Uptime     string           `json:"uptime,omitempty"`
	Checks     map[string]Check `json:"checks,omitempty"`
	Goroutines int              `json:"goroutines,omitempty"`
	HeapBytes  uint64           `json:"heap_bytes,omitempty"`
	Realtime   *RealtimeStatus  `json:"realtime,omitempty"`
}

func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HandleHealth)
		r.Get("/live", h.HandleLiveness)
		r.Get("/ready", h.HandleReadiness)
	})
}

// HandleLiveness answers as long as the process serves HTTP.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    statusHealthy,
		Timestamp: now(),
	})
}

// HandleReadiness fails while the database is unreachable.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	resp := h.probe(r.Context())
	WriteJSON(w, statusCodeFor(resp.Status), resp)
}

// HandleHealth adds runtime and socket counters to the readiness result.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := h.probe(r.Context())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	resp.Goroutines = runtime.NumGoroutine()
	resp.HeapBytes = mem.HeapAlloc

	if h.realtime != nil {
		resp.Realtime = &RealtimeStatus{
			Connections: h.realtime.ConnectionCount(),
			Rooms:       h.realtime.RoomCount(),
		}
	}
	WriteJSON(w, statusCodeFor(resp.Status), resp)
}

func (h *HealthHandler) probe(ctx context.Context) HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	db := pingCheck(ctx, h.db)
	return HealthResponse{
		Status:    db.Status,
		Timestamp: now(),
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Checks:    map[string]Check{"database": db},
	}
}

func pingCheck(ctx context.Context, p Pinger) Check {
	if p == nil {
		return Check{Status: statusUnhealthy, Message: "not configured"}
	}
	start := time.Now()
	err := p.Ping(ctx)
	check := Check{Status: statusHealthy, Latency: time.Since(start).String()}
	if err != nil {
		check.Status = statusUnhealthy
		check.Message = err.Error()
	}
	return check
}

func statusCodeFor(status string) int {
	if status == statusHealthy {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
