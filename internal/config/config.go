package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Client holds the settings of the chat client and its session core.
type Client struct {
	Env      string `env:"CHAT_ENV" envDefault:"development"`
	LogLevel string `env:"CHAT_LOG_LEVEL" envDefault:"info"`

	APIURL string `env:"CHAT_API_URL" envDefault:"http://localhost:3005/api"`
	WSURL  string `env:"CHAT_WS_URL" envDefault:"ws://localhost:7070/ws"`

	// IdentityStore is a file://, sqlite:// or redis:// URL. Empty means
	// a JSON file under the user's home directory.
	IdentityStore string `env:"CHAT_IDENTITY_STORE"`

	// Reconnect turns automatic reconnection on or off.
	Reconnect         bool          `env:"CHAT_RECONNECT" envDefault:"true"`
	ReconnectAttempts int           `env:"CHAT_RECONNECT_ATTEMPTS" envDefault:"5"`
	ReconnectDelay    time.Duration `env:"CHAT_RECONNECT_DELAY" envDefault:"3s"`
	HeartbeatInterval time.Duration `env:"CHAT_HEARTBEAT_INTERVAL" envDefault:"30s"`
	HistoryDelay      time.Duration `env:"CHAT_HISTORY_DELAY" envDefault:"100ms"`
	HandshakeTimeout  time.Duration `env:"CHAT_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	HTTPTimeout       time.Duration `env:"CHAT_HTTP_TIMEOUT" envDefault:"30s"`

	// MetricsAddr enables a Prometheus listener when set, e.g. ":9100".
	MetricsAddr string `env:"CHAT_METRICS_ADDR"`
}

// Server holds the settings of the development chat server.
type Server struct {
	Env      string `env:"CHAT_ENV" envDefault:"development"`
	LogLevel string `env:"CHAT_LOG_LEVEL" envDefault:"info"`

	Addr            string `env:"CHAT_SERVER_ADDR" envDefault:":7070"`
	HistoryDir      string `env:"CHAT_HISTORY_DIR" envDefault:"./chat_history"`
	MaxUsersPerRoom int    `env:"CHAT_MAX_USERS_PER_ROOM" envDefault:"50"`
	HistoryLimit    int    `env:"CHAT_HISTORY_LIMIT" envDefault:"100"`
}

// LoadClient reads client settings from the environment. A .env file in
// the working directory is applied first when present.
func LoadClient() (*Client, error) {
	_ = godotenv.Load()

	cfg := &Client{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse client env")
	}
	if cfg.IdentityStore == "" {
		cfg.IdentityStore = DefaultIdentityStore()
	}
	if cfg.ReconnectAttempts < 0 {
		return nil, errors.Errorf("CHAT_RECONNECT_ATTEMPTS must not be negative, got %d", cfg.ReconnectAttempts)
	}
	return cfg, nil
}

// LoadServer reads development server settings from the environment.
func LoadServer() (*Server, error) {
	_ = godotenv.Load()

	cfg := &Server{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse server env")
	}
	if cfg.MaxUsersPerRoom <= 0 {
		return nil, errors.Errorf("CHAT_MAX_USERS_PER_ROOM must be positive, got %d", cfg.MaxUsersPerRoom)
	}
	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Client) IsDevelopment() bool {
	return c.Env == "development"
}

// IsDevelopment returns true if running in development mode.
func (c *Server) IsDevelopment() bool {
	return c.Env == "development"
}

// DefaultIdentityStore points at ~/.roomchat/user.json, falling back to
// the working directory when the home directory is unknown.
func DefaultIdentityStore() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return "file://" + filepath.Join(home, ".roomchat", "user.json")
}
