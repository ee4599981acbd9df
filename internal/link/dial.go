package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/danmuck/peaklink/internal/observability"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownKind   = errors.New("link: unknown link kind")
	ErrMissingTarget = errors.New("link: missing address")
)

// Dialer opens links with retry. Zero-valued hooks use the real network and
// serial drivers.
type Dialer struct {
	Config     Config
	OpenSerial SerialOpener
	DialTCP    func(ctx context.Context, address string) (net.Conn, error)
	Rand       *rand.Rand
}

// Dial opens the link described by cfg.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	return Dialer{Config: cfg}.Dial(ctx)
}

// Dial tries to open the link until it succeeds, MaxAttempts is exhausted,
// or ctx is done.
func (d Dialer) Dial(ctx context.Context) (*Conn, error) {
	cfg := d.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := d.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	var lastErr error
	for attempt := 1; cfg.MaxAttempts <= 0 || attempt <= cfg.MaxAttempts; attempt++ {
		rwc, err := d.open(ctx)
		observability.RecordConnectAttempt(cfg.Address, err == nil)
		if err == nil {
			log.Info().Str("link", cfg.Address).Str("kind", cfg.Kind).Int("attempt", attempt).Msg("link open")
			return NewConn(cfg.Address, rwc, cfg.Limits), nil
		}
		lastErr = err
		delay := cfg.Backoff.Delay(attempt, rng)
		log.Warn().Err(err).Str("link", cfg.Address).Int("attempt", attempt).Dur("retry_in", delay).Msg("link open failed")
		if err := sleepContext(ctx, delay); err != nil {
			return nil, fmt.Errorf("link: dial %s: %w", cfg.Address, err)
		}
	}
	return nil, fmt.Errorf("link: dial %s: giving up after %d attempts: %w", cfg.Address, cfg.MaxAttempts, lastErr)
}

func (d Dialer) open(ctx context.Context) (io.ReadWriteCloser, error) {
	cfg := d.Config
	switch cfg.Kind {
	case KindSerial:
		mode, err := cfg.Serial.SerialMode()
		if err != nil {
			return nil, err
		}
		opener := d.OpenSerial
		if opener == nil {
			opener = openSerialPort
		}
		return opener(cfg.Address, mode)
	case KindTCP:
		dctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		if d.DialTCP != nil {
			return d.DialTCP(dctx, cfg.Address)
		}
		var nd net.Dialer
		return nd.DialContext(dctx, "tcp", cfg.Address)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// Validate checks the static parts of cfg.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return ErrMissingTarget
	}
	switch c.Kind {
	case KindTCP:
		if c.DialTimeout <= 0 {
			return fmt.Errorf("link: dial timeout must be positive")
		}
	case KindSerial:
		if _, err := c.Serial.Normalize(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
	if c.Limits.MaxPeaks == 0 {
		return fmt.Errorf("link: max peaks must be positive")
	}
	return nil
}
