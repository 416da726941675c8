package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"arb_go/internal/domain"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// VenueConfig holds connection settings for one venue.
type VenueConfig struct {
	WSURL           string `yaml:"ws_url" toml:"ws_url"`
	RestURL         string `yaml:"rest_url" toml:"rest_url"`
	CredentialsFile string `yaml:"credentials_file" toml:"credentials_file"`
	Asset           string `yaml:"asset" toml:"asset"`
	TimeoutMS       int    `yaml:"timeout_ms" toml:"timeout_ms"`
}

// Config holds every setting of the watcher.
// LoadConfig overlays the file on DefaultConfig, then applies environment overrides.
type Config struct {
	App struct {
		Name    string `yaml:"name" toml:"name"`
		Version string `yaml:"version" toml:"version"`
	} `yaml:"app" toml:"app"`

	Venues struct {
		Binance VenueConfig `yaml:"binance" toml:"binance"`
		Kraken  VenueConfig `yaml:"kraken" toml:"kraken"`
	} `yaml:"venues" toml:"venues"`

	Pipeline struct {
		ChannelSize   int   `yaml:"channel_size" toml:"channel_size"`
		BufferSize    int   `yaml:"buffer_size" toml:"buffer_size"`
		ClockOffsetMS int64 `yaml:"clock_offset_ms" toml:"clock_offset_ms"`
		Reconnect     bool  `yaml:"reconnect" toml:"reconnect"`
	} `yaml:"pipeline" toml:"pipeline"`

	Poller struct {
		Venue       string `yaml:"venue" toml:"venue"`
		Method      string `yaml:"method" toml:"method"`
		Currency    string `yaml:"currency" toml:"currency"`
		IntervalSec int    `yaml:"interval_sec" toml:"interval_sec"`
	} `yaml:"poller" toml:"poller"`

	Strategy struct {
		Fast          string          `yaml:"fast" toml:"fast"`
		Slow          string          `yaml:"slow" toml:"slow"`
		TradeSize     decimal.Decimal `yaml:"trade_size" toml:"trade_size"`
		Gap           decimal.Decimal `yaml:"gap" toml:"gap"`
		Fee           decimal.Decimal `yaml:"fee" toml:"fee"`
		MaxTimeDiffMS uint64          `yaml:"max_time_diff_ms" toml:"max_time_diff_ms"`
		IntervalMS    int             `yaml:"interval_ms" toml:"interval_ms"`
	} `yaml:"strategy" toml:"strategy"`

	Metrics struct {
		Addr string `yaml:"addr" toml:"addr"`
	} `yaml:"metrics" toml:"metrics"`

	Logging struct {
		Level string `yaml:"level" toml:"level"`
		Dir   string `yaml:"dir" toml:"dir"`
	} `yaml:"logging" toml:"logging"`

	StateDumpPath string `yaml:"state_dump_path" toml:"state_dump_path"`
}

// DefaultConfig returns the observed production constants.
func DefaultConfig() Config {
	var cfg Config
	cfg.App.Name = "arb_go"
	cfg.App.Version = "0.1.0"

	cfg.Venues.Binance = VenueConfig{
		WSURL:           "wss://stream.binance.com:9443/stream",
		RestURL:         "https://api.binance.com",
		CredentialsFile: "configs/binance_api_key",
		Asset:           "PEPE/USDT",
		TimeoutMS:       5000,
	}
	cfg.Venues.Kraken = VenueConfig{
		WSURL:           "wss://ws.kraken.com",
		RestURL:         "https://api.kraken.com",
		CredentialsFile: "configs/kraken_api_key",
		Asset:           "PEPE/USD",
		TimeoutMS:       5000,
	}

	cfg.Pipeline.ChannelSize = 100
	cfg.Pipeline.BufferSize = 100
	cfg.Pipeline.ClockOffsetMS = 36880
	cfg.Pipeline.Reconnect = true

	cfg.Poller.Venue = string(domain.VenueKraken)
	cfg.Poller.Method = "Balance"
	cfg.Poller.Currency = "USDT"
	cfg.Poller.IntervalSec = 30

	cfg.Strategy.Fast = string(domain.VenueBinance)
	cfg.Strategy.Slow = string(domain.VenueKraken)
	cfg.Strategy.TradeSize = decimal.RequireFromString("0.01")
	cfg.Strategy.Gap = decimal.RequireFromString("0.00001")
	cfg.Strategy.Fee = decimal.RequireFromString("0.0026")
	cfg.Strategy.MaxTimeDiffMS = 100
	cfg.Strategy.IntervalMS = 10

	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return cfg
}

// LoadConfig reads the config file (YAML, or TOML for a .toml extension) over the defaults.
// A .env file in the working directory is loaded first when present.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	// Missing .env is fine.
	_ = godotenv.Load()

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	for name, v := range map[string]VenueConfig{"binance": c.Venues.Binance, "kraken": c.Venues.Kraken} {
		if !hasPrefix(v.WSURL, "ws://") && !hasPrefix(v.WSURL, "wss://") {
			return &domain.ConfigError{Field: name + ".ws_url", Err: fmt.Errorf("invalid url %q", v.WSURL)}
		}
		if !hasPrefix(v.RestURL, "http://") && !hasPrefix(v.RestURL, "https://") {
			return &domain.ConfigError{Field: name + ".rest_url", Err: fmt.Errorf("invalid url %q", v.RestURL)}
		}
		if v.Asset == "" {
			return &domain.ConfigError{Field: name + ".asset", Err: errors.New("asset is required")}
		}
		if v.TimeoutMS <= 0 {
			return &domain.ConfigError{Field: name + ".timeout_ms", Err: errors.New("must be positive")}
		}
	}

	if c.Pipeline.ChannelSize <= 0 {
		return &domain.ConfigError{Field: "pipeline.channel_size", Err: errors.New("must be positive")}
	}
	if c.Pipeline.BufferSize <= 0 {
		return &domain.ConfigError{Field: "pipeline.buffer_size", Err: errors.New("must be positive")}
	}

	if _, err := domain.ParseVenue(c.Poller.Venue); err != nil {
		return &domain.ConfigError{Field: "poller.venue", Err: err}
	}
	if c.Poller.Currency == "" {
		return &domain.ConfigError{Field: "poller.currency", Err: errors.New("currency is required")}
	}
	if c.Poller.IntervalSec <= 0 {
		return &domain.ConfigError{Field: "poller.interval_sec", Err: errors.New("must be positive")}
	}

	fast, err := domain.ParseVenue(c.Strategy.Fast)
	if err != nil {
		return &domain.ConfigError{Field: "strategy.fast", Err: err}
	}
	slow, err := domain.ParseVenue(c.Strategy.Slow)
	if err != nil {
		return &domain.ConfigError{Field: "strategy.slow", Err: err}
	}
	if fast == slow {
		return &domain.ConfigError{Field: "strategy.slow", Err: errors.New("fast and slow venues must differ")}
	}
	if c.Strategy.TradeSize.LessThanOrEqual(decimal.Zero) || c.Strategy.TradeSize.GreaterThan(decimal.NewFromInt(1)) {
		return &domain.ConfigError{Field: "strategy.trade_size", Err: errors.New("must be in (0, 1]")}
	}
	if c.Strategy.Gap.IsNegative() || c.Strategy.Fee.IsNegative() {
		return &domain.ConfigError{Field: "strategy.gap", Err: errors.New("gap and fee must be non-negative")}
	}
	if c.Strategy.MaxTimeDiffMS == 0 {
		return &domain.ConfigError{Field: "strategy.max_time_diff_ms", Err: errors.New("must be positive")}
	}
	if c.Strategy.IntervalMS <= 0 {
		return &domain.ConfigError{Field: "strategy.interval_ms", Err: errors.New("must be positive")}
	}

	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv overwrites config values from environment variables that are set.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("ARB_BINANCE_CREDENTIALS"); v != "" {
		cfg.Venues.Binance.CredentialsFile = v
	}
	if v := os.Getenv("ARB_KRAKEN_CREDENTIALS"); v != "" {
		cfg.Venues.Kraken.CredentialsFile = v
	}
	if v := os.Getenv("ARB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ARB_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("ARB_CLOCK_OFFSET_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Pipeline.ClockOffsetMS = n
		}
	}
}
