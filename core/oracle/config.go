package oracle

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoServers   = errors.New("no servers configured")
	ErrInvalidMode = errors.New("invalid mode")
)

var DefaultServers = []string{
	"time.cloudflare.com",
	"time.google.com",
	"time.apple.com",
	"time.windows.com",
	"time.nist.gov",
	"0.pool.ntp.org",
	"1.pool.ntp.org",
}

const (
	DefaultTimeout             = 2 * time.Second
	DefaultMinSources          = 3
	DefaultMaxOutlierDeviation = 500 * time.Millisecond
	DefaultMaxDisagreement     = 100 * time.Millisecond
	DefaultFastModeServerCount = 4
)

// Config is read-only once an Oracle has been created from it.
type Config struct {
	Servers             []string
	Timeout             time.Duration
	MinSources          int
	MaxOutlierDeviation time.Duration
	MaxDisagreement     time.Duration
	FastModeServerCount int

	// Concurrency bounds the number of queries in flight. Zero means one
	// goroutine per server.
	Concurrency int
}

func DefaultConfig() Config {
	return Config{
		Servers:             append([]string(nil), DefaultServers...),
		Timeout:             DefaultTimeout,
		MinSources:          DefaultMinSources,
		MaxOutlierDeviation: DefaultMaxOutlierDeviation,
		MaxDisagreement:     DefaultMaxDisagreement,
		FastModeServerCount: DefaultFastModeServerCount,
	}
}

// Validate checks cfg and clamps FastModeServerCount to the number of
// servers.
func (cfg *Config) Validate() error {
	if len(cfg.Servers) == 0 {
		return ErrNoServers
	}
	seen := make(map[string]struct{}, len(cfg.Servers))
	for _, s := range cfg.Servers {
		if s == "" {
			return errors.New("empty server address")
		}
		if _, ok := seen[s]; ok {
			return fmt.Errorf("duplicate server %q", s)
		}
		seen[s] = struct{}{}
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("invalid timeout: %v", cfg.Timeout)
	}
	if cfg.MinSources < 1 {
		return fmt.Errorf("invalid minimum number of sources: %d", cfg.MinSources)
	}
	if cfg.MaxOutlierDeviation < 0 {
		return fmt.Errorf("invalid outlier deviation: %v", cfg.MaxOutlierDeviation)
	}
	if cfg.MaxDisagreement < 0 {
		return fmt.Errorf("invalid disagreement threshold: %v", cfg.MaxDisagreement)
	}
	if cfg.FastModeServerCount < 1 {
		return fmt.Errorf("invalid fast mode server count: %d", cfg.FastModeServerCount)
	}
	if cfg.FastModeServerCount > len(cfg.Servers) {
		cfg.FastModeServerCount = len(cfg.Servers)
	}
	if cfg.Concurrency < 0 {
		return fmt.Errorf("invalid concurrency: %d", cfg.Concurrency)
	}
	return nil
}
