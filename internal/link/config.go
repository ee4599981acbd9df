package link

import (
	"time"

	"github.com/danmuck/peaklink/internal/protocol/frame"
)

const (
	KindTCP    = "tcp"
	KindSerial = "serial"
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines how to reach the instrument and how hard to try.
type Config struct {
	Kind        string
	Address     string
	Serial      PortOptions
	DialTimeout time.Duration
	// MaxAttempts of 0 retries until the context is cancelled.
	MaxAttempts int
	Backoff     BackoffConfig
	Limits      frame.Limits
}

func DefaultConfig() Config {
	return Config{
		Kind:        KindTCP,
		Address:     "127.0.0.1:7411",
		DialTimeout: 5 * time.Second,
		MaxAttempts: 5,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
		Limits: frame.DefaultLimits(),
	}
}
