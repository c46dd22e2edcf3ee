// Package config はサーバーの設定を読み込みます。
// 埋め込みのデフォルト値、任意の YAML ファイル、環境変数の順に上書きします。
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"engulf/server/application"
	"engulf/server/domain"
	"engulf/utils"
)

//go:embed defaults.yaml
var defaultsYAML []byte

var ErrInvalidConfig = errors.New("config: invalid value")

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	Game    GameConfig    `yaml:"game"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Port            int           `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
	Room            string        `yaml:"room"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type SessionConfig struct {
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
	WriteQueue   int           `yaml:"write_queue"`
	PubSubBuffer int           `yaml:"pubsub_buffer"`
}

type GameConfig struct {
	TickInterval      time.Duration `yaml:"tick_interval"`
	StepInterval      float64       `yaml:"step_interval"` // 秒
	MaxDelta          float64       `yaml:"max_delta"`     // 秒
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
	PlayerSpeed       float64       `yaml:"player_speed"`
	SizeMin           int           `yaml:"size_min"`
	SizeMax           int           `yaml:"size_max"`
}

// Load は設定を読み込みます。path が空の場合はデフォルト値と環境変数のみを使います。
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// ファイルに書かれた項目だけが上書きされる
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = utils.GetEnvDefault("ADDR", c.Server.Addr)
	c.Server.Port = utils.GetEnvInt("PORT", c.Server.Port)
	c.Server.LogLevel = utils.GetEnvDefault("LOG_LEVEL", c.Server.LogLevel)
	c.Session.IdleTimeout = utils.GetEnvDuration("IDLE_TIMEOUT", c.Session.IdleTimeout)
	c.Game.BroadcastInterval = utils.GetEnvDuration("BROADCAST_INTERVAL", c.Game.BroadcastInterval)
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.Room == "" {
		return fmt.Errorf("%w: server.room is empty", ErrInvalidConfig)
	}
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("%w: server.log_level %q", ErrInvalidConfig, c.Server.LogLevel)
	}
	if c.Session.WriteQueue <= 0 || c.Session.PubSubBuffer <= 0 {
		return fmt.Errorf("%w: session queues must be positive", ErrInvalidConfig)
	}
	if c.Game.TickInterval <= 0 {
		return fmt.Errorf("%w: game.tick_interval %v", ErrInvalidConfig, c.Game.TickInterval)
	}
	if err := c.Application().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ListenAddr は host:port 形式のアドレスです。
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.Addr, strconv.Itoa(c.Server.Port))
}

func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.Server.LogLevel))
	return level, err
}

func (c *Config) Endpoint() domain.EndpointConfig {
	return domain.EndpointConfig{
		IdleTimeout:    c.Session.IdleTimeout,
		PingInterval:   c.Session.PingInterval,
		WriteQueueSize: c.Session.WriteQueue,
	}
}

// Application はゲームの設定に変換します。Clock と Rand は既定値のままです。
func (c *Config) Application() application.Config {
	return application.Config{
		BroadcastInterval: c.Game.BroadcastInterval,
		MaxDelta:          c.Game.MaxDelta,
		StepInterval:      c.Game.StepInterval,
		SizeMin:           c.Game.SizeMin,
		SizeMax:           c.Game.SizeMax,
		Speed:             c.Game.PlayerSpeed,
	}
}
