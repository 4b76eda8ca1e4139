package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "WALKY"

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Rooms  RoomsConfig  `mapstructure:"rooms"`
	Limits LimitsConfig `mapstructure:"limits"`
	Store  StoreConfig  `mapstructure:"store"`
	Log    LogConfig    `mapstructure:"log"`
	Client ClientConfig `mapstructure:"client"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	StaticDir       string        `mapstructure:"static_dir"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type RoomsConfig struct {
	Default     string `mapstructure:"default"`
	MaxRooms    int    `mapstructure:"max_rooms"`
	MaxRoomSize int    `mapstructure:"max_room_size"`
	SendBuffer  int    `mapstructure:"send_buffer"`
}

type LimitsConfig struct {
	MaxMessageSize         int           `mapstructure:"max_message_size"`
	MessagesPerSecond      float64       `mapstructure:"messages_per_second"`
	Burst                  int           `mapstructure:"burst"`
	CursorInterval         time.Duration `mapstructure:"cursor_interval"`
	IPConnectionsPerMinute int           `mapstructure:"ip_connections_per_minute"`
	IPBurst                int           `mapstructure:"ip_burst"`
}

type StoreConfig struct {
	// Driver is "memory" or "toml"
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type ClientConfig struct {
	ReconnectDelay       time.Duration `mapstructure:"reconnect_delay"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.static_dir", "./public")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("rooms.default", "default")
	v.SetDefault("rooms.max_rooms", 100)
	v.SetDefault("rooms.max_room_size", 50)
	v.SetDefault("rooms.send_buffer", 256)

	v.SetDefault("limits.max_message_size", 64*1024)
	v.SetDefault("limits.messages_per_second", 120.0)
	v.SetDefault("limits.burst", 60)
	v.SetDefault("limits.cursor_interval", 33*time.Millisecond)
	v.SetDefault("limits.ip_connections_per_minute", 10)
	v.SetDefault("limits.ip_burst", 5)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.path", "./data/canvases.toml")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("client.reconnect_delay", 3*time.Second)
	v.SetDefault("client.max_reconnect_attempts", 5)
}

// Load reads an optional .env file, then the config file at path (or
// walkypainty.{toml,yaml} in the working directory when path is empty), then
// WALKY_* environment overrides such as WALKY_SERVER_ADDR.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("walkypainty")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Rooms.Default == "" {
		errs = append(errs, errors.New("rooms.default is required"))
	}
	if c.Rooms.MaxRooms < 0 || c.Rooms.MaxRoomSize < 0 {
		errs = append(errs, errors.New("room limits cannot be negative"))
	}
	if c.Rooms.SendBuffer < 1 {
		errs = append(errs, errors.New("rooms.send_buffer must be positive"))
	}
	if c.Limits.MaxMessageSize < 0 || c.Limits.MessagesPerSecond < 0 || c.Limits.Burst < 0 {
		errs = append(errs, errors.New("message limits cannot be negative"))
	}
	if c.Limits.CursorInterval < 0 {
		errs = append(errs, errors.New("limits.cursor_interval cannot be negative"))
	}
	switch c.Store.Driver {
	case "memory":
	case "toml":
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the toml driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	if c.Client.ReconnectDelay <= 0 || c.Client.MaxReconnectAttempts < 1 {
		errs = append(errs, errors.New("client reconnect settings must be positive"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
