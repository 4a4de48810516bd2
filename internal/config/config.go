// Package config resolves the server's runtime configuration from defaults,
// environment variables, and flags, in that order of increasing priority.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adrianmoss/rkv/internal/constants"
)

// Config holds the tunables for a Server.
type Config struct {
	// BindAddr is the "host:port" the listener binds to.
	BindAddr string

	// LoopTimeout bounds how long the reactor blocks in epoll_wait before
	// it re-checks timers and runs an active-expire sampling pass.
	LoopTimeout time.Duration

	// TTLSampleSize is the number of keys examined per active-expire pass.
	TTLSampleSize int

	// QuicklistNodeCap is the maximum number of elements held in a single
	// quicklist node; a push onto a full end node starts a new node.
	QuicklistNodeCap int

	// MaxOutboundBytes is the high-water mark for a connection's pending
	// write buffer; exceeding it closes the connection (back-pressure).
	MaxOutboundBytes int64
}

// DefaultConfig returns the baseline configuration, matching the constants
// a bare `rkv-server` invocation with no flags or env vars would use.
func DefaultConfig() *Config {
	return &Config{
		BindAddr:         constants.DefaultBindAddr,
		LoopTimeout:      constants.DefaultLoopTimeoutMs * time.Millisecond,
		TTLSampleSize:    constants.DefaultTTLSampleSize,
		QuicklistNodeCap: constants.DefaultQuicklistNodeCap,
		MaxOutboundBytes: constants.DefaultMaxOutboundBytes,
	}
}

// Validate checks the configuration for obviously broken values.
func (c *Config) Validate() error {
	if c.BindAddr == "" {
		return fmt.Errorf("config: BindAddr must not be empty")
	}
	if c.LoopTimeout <= 0 {
		return fmt.Errorf("config: LoopTimeout must be positive, got %s", c.LoopTimeout)
	}
	if c.TTLSampleSize <= 0 {
		return fmt.Errorf("config: TTLSampleSize must be positive, got %d", c.TTLSampleSize)
	}
	if c.QuicklistNodeCap <= 0 {
		return fmt.Errorf("config: QuicklistNodeCap must be positive, got %d", c.QuicklistNodeCap)
	}
	if c.MaxOutboundBytes <= 0 {
		return fmt.Errorf("config: MaxOutboundBytes must be positive, got %d", c.MaxOutboundBytes)
	}
	return nil
}

// Environment variable names consulted by FromEnv.
const (
	EnvBindAddr         = "RKV_BIND"
	EnvLoopTimeoutMs    = "RKV_LOOP_TIMEOUT_MS"
	EnvTTLSampleSize    = "RKV_TTL_SAMPLE_SIZE"
	EnvQuicklistNodeCap = "RKV_QUICKLIST_NODE_CAP"
	EnvMaxOutboundBytes = "RKV_MAX_OUTBOUND_BYTES"
)

// FromEnv starts from DefaultConfig and overrides any field whose
// corresponding RKV_* environment variable is set.
func FromEnv() (*Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv(EnvBindAddr); ok {
		cfg.BindAddr = v
	}
	if v, ok := os.LookupEnv(EnvLoopTimeoutMs); ok {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid %s=%q: %w", EnvLoopTimeoutMs, v, err)
		}
		cfg.LoopTimeout = time.Duration(ms) * time.Millisecond
	}
	if v, ok := os.LookupEnv(EnvTTLSampleSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid %s=%q: %w", EnvTTLSampleSize, v, err)
		}
		cfg.TTLSampleSize = n
	}
	if v, ok := os.LookupEnv(EnvQuicklistNodeCap); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid %s=%q: %w", EnvQuicklistNodeCap, v, err)
		}
		cfg.QuicklistNodeCap = n
	}
	if v, ok := os.LookupEnv(EnvMaxOutboundBytes); ok {
		n, err := ParseByteSize(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid %s=%q: %w", EnvMaxOutboundBytes, v, err)
		}
		cfg.MaxOutboundBytes = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseByteSize parses a size string like "64M", "1G", "512K", or a bare
// number of bytes.
func ParseByteSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1 << 10
		numStr = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1 << 20
		numStr = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1 << 30
		numStr = strings.TrimSuffix(s, "G")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, err
	}
	return num * multiplier, nil
}
