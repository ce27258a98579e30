// Package config loads the server configuration from the environment and
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/cyberinferno/termninja/store/redisstore"
	"github.com/cyberinferno/termninja/utils"
)

var (
	ErrParsingConfig = errors.New("config: failed to parse environment")
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config is the complete server configuration.
type Config struct {
	Port        int    `env:"TERMNINJA_PORT" envDefault:"3000"`
	PlayerCount int    `env:"TERMNINJA_PLAYER_COUNT" envDefault:"1"`
	ServerName  string `env:"TERMNINJA_SERVER_NAME" envDefault:"Termninja"`
	Description string `env:"TERMNINJA_DESCRIPTION"`
	// Auth enables the optional play token prompt.
	Auth              bool          `env:"TERMNINJA_AUTH" envDefault:"true"`
	HeartbeatInterval time.Duration `env:"TERMNINJA_HEARTBEAT_INTERVAL" envDefault:"2m"`
	TokenCacheTTL     time.Duration `env:"TERMNINJA_TOKEN_CACHE_TTL" envDefault:"30s"`
	ShutdownTimeout   time.Duration `env:"TERMNINJA_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	MetricsAddr    string `env:"TERMNINJA_METRICS_ADDR"`
	DiscordWebhook string `env:"TERMNINJA_DISCORD_WEBHOOK"`

	AutoReload  bool
	ReloadDir   string        `env:"TERMNINJA_RELOAD_DIR" envDefault:"."`
	ReloadDelay time.Duration `env:"TERMNINJA_RELOAD_DELAY" envDefault:"2s"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	// StoreDSN is the database path for sqlite or the URL for redis.
	StoreDSN string `env:"STORE_DSN"`
	Redis    redisstore.Config

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogDir    string `env:"LOG_DIR"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load reads the given .env files (".env" when none are named), then parses
// the process environment. Missing .env files are ignored and variables
// already set in the environment win.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}

	return parse(env.Options{})
}

// FromMap parses cfg from the given variables instead of the process
// environment.
func FromMap(vars map[string]string) (Config, error) {
	if vars == nil {
		vars = map[string]string{}
	}

	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}

	if cfg.StoreDriver == DriverRedis && cfg.StoreDSN != "" {
		cfg.Redis.ConnectionURL = cfg.StoreDSN
	}

	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.PlayerCount < 1:
		return fmt.Errorf("%w: player count must be at least 1, got %d", ErrInvalidConfig, c.PlayerCount)
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("%w: port out of range: %d", ErrInvalidConfig, c.Port)
	case c.HeartbeatInterval <= 0:
		return fmt.Errorf("%w: heartbeat interval must be positive", ErrInvalidConfig)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("%w: shutdown timeout must be positive", ErrInvalidConfig)
	case utils.Slugify(c.ServerName) == "":
		return fmt.Errorf("%w: server name %q has no registration slug", ErrInvalidConfig, c.ServerName)
	}

	switch c.StoreDriver {
	case DriverMemory, DriverRedis:
	case DriverSQLite:
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: sqlite driver needs STORE_DSN", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.StoreDriver)
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.LogFormat)
	}

	return nil
}

// ListenAddr is the acceptor's bind address.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}
