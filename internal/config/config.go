package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment and an
// optional .env file.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	WebSocket  WebSocketConfig
	Bus        BusConfig
	Membership MembershipConfig
	Metrics    MetricsConfig
	Logging    LoggingConfig
	App        AppConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// JWTConfig signs the session tokens accepted by REST and the socket handshake.
type JWTConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	AuthRPS           float64 // applied to /auth only
	AuthBurst         int
}

// WebSocketConfig holds real-time socket configuration
type WebSocketConfig struct {
	// AllowedOrigins is the handshake accept list (REALTIME_ALLOWED_ORIGIN).
	AllowedOrigins    []string
	RequireAuth       bool
	ReadBufferSize    int
	WriteBufferSize   int
	SendBuffer        int
	PingInterval      time.Duration
	PongWait          time.Duration
	MaxMessageSize    int64
	MessagesPerSecond float64
	MessageBurst      int
	HubQueueSize      int
}

// BusConfig selects the event bus shared between instances.
type BusConfig struct {
	Driver     string // local, zmq
	PubAddr    string // proxy XSUB endpoint
	SubAddr    string // proxy XPUB endpoint
	InstanceID string
}

// MembershipConfig tunes the membership answer cache.
type MembershipConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

// Bus drivers.
const (
	BusLocal = "local"
	BusZMQ   = "zmq"
)

// Load reads the configuration. It does not validate; commands that need
// the database and token settings call Validate.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: ignoring .env: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:            str("SERVER_PORT", ":8080"),
			ReadTimeout:     dur("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    dur("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     dur("SERVER_IDLE_TIMEOUT", time.Minute),
			ShutdownTimeout: dur("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxConns:        int32(integer("DB_MAX_CONNS", 25)),
			MinConns:        int32(integer("DB_MIN_CONNS", 2)),
			ConnMaxLifetime: dur("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: dur("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		JWT: JWTConfig{
			Secret:         os.Getenv("JWT_SECRET"),
			AccessTokenTTL: dur("JWT_ACCESS_TOKEN_TTL", time.Hour),
		},
		RateLimit: RateLimitConfig{
			Enabled:           boolean("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: float("RATE_LIMIT_RPS", 10),
			BurstSize:         integer("RATE_LIMIT_BURST", 20),
			AuthRPS:           float("RATE_LIMIT_AUTH_RPS", 1),
			AuthBurst:         integer("RATE_LIMIT_AUTH_BURST", 5),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins:    list("REALTIME_ALLOWED_ORIGIN"),
			RequireAuth:       boolean("WS_REQUIRE_AUTH", true),
			ReadBufferSize:    integer("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize:   integer("WS_WRITE_BUFFER_SIZE", 1024),
			SendBuffer:        integer("WS_SEND_BUFFER", 256),
			PingInterval:      dur("WS_PING_INTERVAL", 54*time.Second),
			PongWait:          dur("WS_PONG_WAIT", time.Minute),
			MaxMessageSize:    int64(integer("WS_MAX_MESSAGE_SIZE", 4096)),
			MessagesPerSecond: float("WS_MESSAGES_PER_SECOND", 20),
			MessageBurst:      integer("WS_MESSAGE_BURST", 40),
			HubQueueSize:      integer("WS_HUB_QUEUE_SIZE", 1024),
		},
		Bus: BusConfig{
			Driver:     strings.ToLower(str("BUS_DRIVER", BusLocal)),
			PubAddr:    str("BUS_PUB_ADDR", "tcp://127.0.0.1:5570"),
			SubAddr:    str("BUS_SUB_ADDR", "tcp://127.0.0.1:5571"),
			InstanceID: os.Getenv("BUS_INSTANCE_ID"),
		},
		Membership: MembershipConfig{
			CacheSize: integer("MEMBERSHIP_CACHE_SIZE", 4096),
			CacheTTL:  dur("MEMBERSHIP_CACHE_TTL", time.Minute),
		},
		Metrics: MetricsConfig{
			Enabled:   boolean("METRICS_ENABLED", true),
			Namespace: str("METRICS_NAMESPACE", "taskboard"),
		},
		Logging: LoggingConfig{
			Level:  str("LOG_LEVEL", "info"),
			Format: str("LOG_FORMAT", "json"),
		},
		App: AppConfig{
			Name:        str("APP_NAME", "taskboard"),
			Version:     str("APP_VERSION", "dev"),
			Environment: str("APP_ENV", "development"),
		},
	}, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Database.URL == "" {
		fail("DATABASE_URL is required")
	}
	if c.JWT.Secret == "" {
		fail("JWT_SECRET is required")
	}
	if c.IsProduction() {
		if len(c.JWT.Secret) < 32 {
			fail("JWT_SECRET must be at least 32 characters in production")
		}
		if len(c.WebSocket.AllowedOrigins) == 0 {
			fail("REALTIME_ALLOWED_ORIGIN must be set in production")
		}
	}
	if c.Database.MinConns > c.Database.MaxConns {
		fail("DB_MIN_CONNS cannot be greater than DB_MAX_CONNS")
	}
	if c.WebSocket.PingInterval >= c.WebSocket.PongWait {
		fail("WS_PING_INTERVAL must be shorter than WS_PONG_WAIT")
	}

	switch c.Bus.Driver {
	case BusLocal:
	case BusZMQ:
		if c.Bus.PubAddr == "" || c.Bus.SubAddr == "" {
			fail("BUS_PUB_ADDR and BUS_SUB_ADDR are required for the zmq bus")
		}
	default:
		fail("BUS_DRIVER %q is not one of %s, %s", c.Bus.Driver, BusLocal, BusZMQ)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	return nil
}

func (c *Config) IsDevelopment() bool { return c.App.Environment == "development" }

func (c *Config) IsProduction() bool { return c.App.Environment == "production" }

// String is safe to log: the token secret is omitted and database
// credentials are masked.
func (c *Config) String() string {
	return fmt.Sprintf("env=%s addr=%s db=%s bus=%s rate_limit=%t metrics=%t",
		c.App.Environment, c.Server.Port, redactURL(c.Database.URL),
		c.Bus.Driver, c.RateLimit.Enabled, c.Metrics.Enabled)
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return "[REDACTED]"
	}
	u.User = url.User("REDACTED")
	return u.String()
}

// lookup parses key with parse, falling back to def when the variable is
// unset or malformed.
func lookup[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		log.Printf("config: %s=%q is invalid, using default: %v", key, raw, err)
		return def
	}
	return v
}

func str(key, def string) string {
	return lookup(key, def, func(s string) (string, error) { return s, nil })
}

func integer(key string, def int) int { return lookup(key, def, strconv.Atoi) }

func boolean(key string, def bool) bool { return lookup(key, def, strconv.ParseBool) }

func dur(key string, def time.Duration) time.Duration {
	return lookup(key, def, time.ParseDuration)
}

func float(key string, def float64) float64 {
	return lookup(key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

// list splits a comma separated variable, dropping blanks.
func list(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
