package infra

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"arb_go/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_YAMLOverDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
pipeline:
  buffer_size: 50
strategy:
  gap: "0.02"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Pipeline.BufferSize != 50 {
		t.Errorf("buffer_size = %d, want 50", cfg.Pipeline.BufferSize)
	}
	if cfg.Pipeline.ChannelSize != 100 || cfg.Pipeline.ClockOffsetMS != 36880 {
		t.Errorf("defaults lost: %+v", cfg.Pipeline)
	}
	if cfg.Strategy.Gap.String() != "0.02" || cfg.Strategy.Fee.String() != "0.0026" {
		t.Errorf("gap=%s fee=%s", cfg.Strategy.Gap, cfg.Strategy.Fee)
	}
}

func TestLoadConfig_TOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[poller]
venue = "BINANCE"
method = "account"
currency = "USDT"
interval_sec = 10
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Poller.Venue != "BINANCE" || cfg.Poller.Method != "account" || cfg.Poller.IntervalSec != 10 {
		t.Errorf("unexpected poller config %+v", cfg.Poller)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("ARB_CLOCK_OFFSET_MS", "1000")
	t.Setenv("ARB_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(writeFile(t, "config.yaml", "app:\n  name: test\n"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Pipeline.ClockOffsetMS != 1000 || cfg.Logging.Level != "debug" {
		t.Errorf("env overrides not applied: offset=%d level=%s", cfg.Pipeline.ClockOffsetMS, cfg.Logging.Level)
	}
}

func TestLoadConfig_NotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, domain.ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad ws url", func(c *Config) { c.Venues.Kraken.WSURL = "http://x" }, "kraken.ws_url"},
		{"zero buffer", func(c *Config) { c.Pipeline.BufferSize = 0 }, "pipeline.buffer_size"},
		{"unknown poll venue", func(c *Config) { c.Poller.Venue = "BITGET" }, "poller.venue"},
		{"same legs", func(c *Config) { c.Strategy.Slow = c.Strategy.Fast }, "strategy.slow"},
		{"zero max diff", func(c *Config) { c.Strategy.MaxTimeDiffMS = 0 }, "strategy.max_time_diff_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			var ce *domain.ConfigError
			if err := cfg.Validate(); !errors.As(err, &ce) || ce.Field != tt.field {
				t.Errorf("expected ConfigError on %s, got %v", tt.field, err)
			}
		})
	}

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug").String() != "DEBUG" || ParseLevel("bogus").String() != "INFO" {
		t.Error("unexpected level mapping")
	}
}
