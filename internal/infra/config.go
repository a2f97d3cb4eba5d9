package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"token_market/internal/domain"

	"gopkg.in/yaml.v3"
)

const (
	defaultInboxSize  = 1024
	defaultListenAddr = "localhost:8080"
	defaultLogDir     = "logs"
)

// Config holds every application setting.
// Values loaded by LoadConfig can be overridden through environment variables.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Ledger struct {
		Administrator    string `yaml:"administrator"`
		ExchangeIdentity string `yaml:"exchange_identity"`
	} `yaml:"ledger"`

	Server struct {
		ListenAddr      string `yaml:"listen_addr"`
		ReadBufferSize  int    `yaml:"read_buffer_size"`
		WriteBufferSize int    `yaml:"write_buffer_size"`
	} `yaml:"server"`

	Engine struct {
		InboxSize int    `yaml:"inbox_size"`
		DumpPath  string `yaml:"dump_path"`
	} `yaml:"engine"`

	Storage struct {
		Path          string `yaml:"path"` // empty: per-user config directory
		SnapshotEvery uint64 `yaml:"snapshot_every"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the YAML file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, domain.ErrConfigNotFound)
		}
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML, applies env overrides and defaults, then validates.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = defaultListenAddr
	}
	if c.Engine.InboxSize == 0 {
		c.Engine.InboxSize = defaultInboxSize
	}
	if c.Engine.DumpPath == "" {
		c.Engine.DumpPath = "panic_dump.json"
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = defaultLogDir
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	admin := strings.TrimSpace(c.Ledger.Administrator)
	if admin == "" {
		return &domain.ConfigError{Field: "ledger.administrator", Err: domain.ErrInvalidIdentity}
	}

	exchange := strings.TrimSpace(c.Ledger.ExchangeIdentity)
	if exchange == "" {
		return &domain.ConfigError{Field: "ledger.exchange_identity", Err: domain.ErrInvalidIdentity}
	}
	if exchange == admin {
		return &domain.ConfigError{Field: "ledger.exchange_identity", Err: errors.New("must differ from administrator")}
	}

	if c.Engine.InboxSize < 0 {
		return &domain.ConfigError{Field: "engine.inbox_size", Err: errors.New("must be positive")}
	}
	if c.Server.ReadBufferSize < 0 || c.Server.WriteBufferSize < 0 {
		return &domain.ConfigError{Field: "server", Err: errors.New("buffer sizes must not be negative")}
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return &domain.ConfigError{Field: "logging.level", Err: fmt.Errorf("unknown level %q", c.Logging.Level)}
	}

	return nil
}

// overrideWithEnv overrides settings with environment variables when present.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("MARKET_ADMINISTRATOR"); v != "" {
		cfg.Ledger.Administrator = v
	}
	if v := os.Getenv("MARKET_EXCHANGE_IDENTITY"); v != "" {
		cfg.Ledger.ExchangeIdentity = v
	}
	if v := os.Getenv("MARKET_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("MARKET_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("MARKET_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
