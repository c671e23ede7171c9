package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// DevelopmentSecret is the JWT_SECRET default. Validate refuses it outside development.
const DevelopmentSecret = "development-insecure-secret-change-me"

// Config holds the server configuration.
// Priority: environment variables > .env file > envDefault tags.
type Config struct {
	Addr         string `env:"CHAT_ADDR" envDefault:":8008"`
	DatabasePath string `env:"CHAT_DB_PATH" envDefault:"chat.db"`

	// Tokens
	JWTSecret   string        `env:"JWT_SECRET" envDefault:"development-insecure-secret-change-me"`
	JWTIssuer   string        `env:"JWT_ISSUER" envDefault:"chat-realtime-api"`
	JWTAudience string        `env:"JWT_AUDIENCE" envDefault:"chat-clients"`
	TokenTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	// Browser origins allowed for CORS and the websocket upgrade
	AllowedOrigins []string `env:"CHAT_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	// Logging
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogDevelopment bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`

	// Live channel
	SendBuffer      int           `env:"WS_SEND_BUFFER" envDefault:"64"`
	PingInterval    time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	PongWait        time.Duration `env:"WS_PONG_WAIT" envDefault:"60s"`
	WriteWait       time.Duration `env:"WS_WRITE_WAIT" envDefault:"5s"`
	MaxMessageBytes int64         `env:"WS_MAX_MESSAGE_BYTES" envDefault:"1048576"`

	MetricsEnabled  bool          `env:"METRICS_ENABLED" envDefault:"true"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads an optional .env file, then parses the environment into Config.
func Load() (*Config, error) {
	// A missing .env is fine; containers pass plain environment variables.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return cfg, nil
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("CHAT_ADDR is required")
	}
	if c.DatabasePath == "" {
		return errors.New("CHAT_DB_PATH is required")
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 characters")
	}
	if c.JWTSecret == DevelopmentSecret && !c.LogDevelopment {
		return errors.New("JWT_SECRET must be set when LOG_DEVELOPMENT is false")
	}
	if c.TokenTTL <= 0 {
		return errors.Errorf("JWT_TTL must be > 0, got %s", c.TokenTTL)
	}
	if c.SendBuffer < 1 {
		return errors.Errorf("WS_SEND_BUFFER must be > 0, got %d", c.SendBuffer)
	}
	if c.PingInterval <= 0 || c.PongWait <= 0 || c.WriteWait <= 0 {
		return errors.New("WS_PING_INTERVAL, WS_PONG_WAIT and WS_WRITE_WAIT must be > 0")
	}
	// Pings must go out before the peer's read deadline lapses.
	if c.PingInterval >= c.PongWait {
		return errors.Errorf("WS_PING_INTERVAL (%s) must be shorter than WS_PONG_WAIT (%s)", c.PingInterval, c.PongWait)
	}
	if c.MaxMessageBytes < 512 {
		return errors.Errorf("WS_MAX_MESSAGE_BYTES must be >= 512, got %d", c.MaxMessageBytes)
	}
	for i, o := range c.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			c.AllowedOrigins[i] = o
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.Errorf("CHAT_ALLOWED_ORIGINS entry %q is not an origin", o)
		}
		c.AllowedOrigins[i] = strings.TrimRight(o, "/")
	}
	return nil
}

// OriginAllowed reports whether a browser Origin header value may talk to the server.
func (c *Config) OriginAllowed(origin string) bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// ClientConfig configures the terminal client in cmd/client.
type ClientConfig struct {
	ServerURL string        `env:"CHAT_SERVER_URL" envDefault:"http://localhost:8008"`
	Email     string        `env:"CHAT_EMAIL,notEmpty"`
	Password  string        `env:"CHAT_PASSWORD,notEmpty"`
	Timeout   time.Duration `env:"CHAT_HTTP_TIMEOUT" envDefault:"10s"`
}

// LoadClient parses the client configuration the same way Load does.
func LoadClient() (*ClientConfig, error) {
	_ = godotenv.Load()

	cfg := &ClientConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse client config")
	}
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.Errorf("CHAT_SERVER_URL must be an http(s) URL, got %q", cfg.ServerURL)
	}
	return cfg, nil
}
