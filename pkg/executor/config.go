package executor

import (
	"errors"
	"time"
)

const (
	DefaultRetries          = 3
	DefaultTimeout          = 10 * time.Second
	DefaultBaseDelay        = time.Second
	DefaultConnectivityWait = 10 * time.Second
)

// Config holds the retry policy applied to every invocation unless
// overridden per call.
type Config struct {
	// Retries is the total number of attempts, the first one included.
	Retries int `mapstructure:"retries"`
	// Timeout bounds each individual attempt.
	Timeout time.Duration `mapstructure:"timeout"`
	// BaseDelay is the first backoff; each later one doubles.
	BaseDelay time.Duration `mapstructure:"base_delay"`
	// ConnectivityWait bounds how long a retry waits for the network to return.
	ConnectivityWait time.Duration `mapstructure:"connectivity_wait"`
}

// DefaultConfig returns three attempts, 10s per attempt, 1s base delay and a
// 10s connectivity wait.
func DefaultConfig() *Config {
	return &Config{
		Retries:          DefaultRetries,
		Timeout:          DefaultTimeout,
		BaseDelay:        DefaultBaseDelay,
		ConnectivityWait: DefaultConnectivityWait,
	}
}

// Validate checks the policy is usable.
func (c *Config) Validate() error {
	if c.Retries < 1 {
		return errors.New("retries must be at least 1")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.BaseDelay < 0 {
		return errors.New("base delay cannot be negative")
	}
	if c.ConnectivityWait < 0 {
		return errors.New("connectivity wait cannot be negative")
	}
	return nil
}

// CallOption overrides the policy for a single invocation.
type CallOption func(*Config)

// WithRetries sets the total attempts for one call. Values below 1 are ignored.
func WithRetries(n int) CallOption {
	return func(c *Config) {
		if n >= 1 {
			c.Retries = n
		}
	}
}

// WithTimeout sets the per-attempt timeout for one call. Non-positive values are ignored.
func WithTimeout(d time.Duration) CallOption {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithBaseDelay sets the first backoff for one call. Negative values are ignored.
func WithBaseDelay(d time.Duration) CallOption {
	return func(c *Config) {
		if d >= 0 {
			c.BaseDelay = d
		}
	}
}
