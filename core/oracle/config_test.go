package oracle

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate(default) = %v", err)
	}
	if len(cfg.Servers) != 7 || cfg.FastModeServerCount != 4 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(cfg *Config)
	}{
		{"duplicate server", func(cfg *Config) { cfg.Servers = []string{"a", "b", "a"} }},
		{"empty server", func(cfg *Config) { cfg.Servers = []string{"a", ""} }},
		{"zero timeout", func(cfg *Config) { cfg.Timeout = 0 }},
		{"zero min sources", func(cfg *Config) { cfg.MinSources = 0 }},
		{"negative outlier deviation", func(cfg *Config) { cfg.MaxOutlierDeviation = -time.Millisecond }},
		{"negative disagreement", func(cfg *Config) { cfg.MaxDisagreement = -time.Millisecond }},
		{"zero fast mode count", func(cfg *Config) { cfg.FastModeServerCount = 0 }},
		{"negative concurrency", func(cfg *Config) { cfg.Concurrency = -1 }},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.modify(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate() = nil, want error", tt.name)
		}
	}

	cfg := DefaultConfig()
	cfg.Servers = nil
	if err := cfg.Validate(); !errors.Is(err, ErrNoServers) {
		t.Errorf("Validate(no servers) = %v, want %v", err, ErrNoServers)
	}
}

func TestConfigValidateClampsFastModeCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Servers = []string{"a", "b"}
	cfg.FastModeServerCount = 5
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if cfg.FastModeServerCount != 2 {
		t.Errorf("FastModeServerCount = %d, want 2", cfg.FastModeServerCount)
	}
}
