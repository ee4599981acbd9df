// Package sim is a software stand-in for the peak-detection instrument. It
// speaks the host protocol over TCP: it takes filter configs, starts and
// stops on command, and streams Data messages while started.
package sim

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/peaklink/internal/link"
	"github.com/danmuck/peaklink/internal/protocol"
	"github.com/danmuck/peaklink/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Addr      string
	Interval  time.Duration
	BatchSize int
	Seed      int64
	Filter    protocol.FilterConfig
	Limits    frame.Limits
}

func DefaultConfig() Config {
	return Config{
		Addr:      "127.0.0.1:7411",
		Interval:  100 * time.Millisecond,
		BatchSize: 16,
		Seed:      1,
		Filter: protocol.FilterConfig{
			PThresh: 1_000_000,
			TDead:   100,
			K:       20,
			L:       50,
			M:       2_000_000,
		},
		Limits: frame.DefaultLimits(),
	}
}

// Instrument serves any number of hosts; each connection gets its own
// generator and run state.
type Instrument struct {
	cfg     Config
	clients atomic.Int64

	mu    sync.Mutex
	conns map[*link.Conn]struct{}
}

func New(cfg Config) *Instrument {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Limits.MaxPeaks == 0 {
		cfg.Limits = frame.DefaultLimits()
	}
	return &Instrument{cfg: cfg, conns: make(map[*link.Conn]struct{})}
}

func (i *Instrument) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", i.cfg.Addr)
	if err != nil {
		return err
	}
	return i.Serve(ctx, ln)
}

// Serve accepts hosts on ln until ctx is done.
func (i *Instrument) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	log.Info().Str("addr", ln.Addr().String()).Msg("sim listening")
	go func() {
		<-ctx.Done()
		i.closeAll()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go i.handleConn(ctx, conn)
	}
}

func (i *Instrument) Clients() int64 {
	return i.clients.Load()
}

func (i *Instrument) handleConn(ctx context.Context, nc net.Conn) {
	remote := nc.RemoteAddr().String()
	c := link.NewConn(remote, nc, i.cfg.Limits)
	i.track(c)
	defer i.untrack(c)
	defer c.Close()

	active := i.clients.Add(1)
	log.Info().Str("remote", remote).Int64("active_clients", active).Msg("sim host connected")
	defer func() {
		remaining := i.clients.Add(-1)
		log.Info().Str("remote", remote).Int64("active_clients", remaining).Msg("sim host disconnected")
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s := &session{
		conn:  c,
		gen:   NewGenerator(i.cfg.Seed, i.cfg.Filter),
		batch: i.cfg.BatchSize,
	}
	go s.emit(ctx, cancel, i.cfg.Interval)

	if err := c.Run(ctx, s.handle); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Str("remote", remote).Msg("sim session ended")
	}
}

func (i *Instrument) track(c *link.Conn) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.conns[c] = struct{}{}
}

func (i *Instrument) untrack(c *link.Conn) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.conns, c)
}

func (i *Instrument) closeAll() {
	i.mu.Lock()
	defer i.mu.Unlock()
	for c := range i.conns {
		_ = c.Close()
	}
}

type session struct {
	conn  *link.Conn
	gen   *Generator
	batch int

	// mu orders status acks against Data sends: nothing follows a Stop ack
	// and nothing precedes a Start ack.
	mu      sync.Mutex
	running bool
}

// handle applies one host command and acknowledges it with the current status.
func (s *session) handle(m protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch v := m.(type) {
	case protocol.ConfigMessage:
		s.gen.SetFilter(v.Config)
		log.Info().Str("remote", s.conn.Name()).Stringer("filter", v.Config).Msg("sim filter configured")
	case protocol.StatusMessage:
		s.running = v.Status == protocol.StatusStart
		log.Info().Str("remote", s.conn.Name()).Stringer("status", v.Status).Msg("sim status")
	case protocol.DataMessage:
		log.Warn().Str("remote", s.conn.Name()).Int("peaks", len(v.Peaks)).Msg("sim ignoring data from host")
		return nil
	}
	status := protocol.StatusStop
	if s.running {
		status = protocol.StatusStart
	}
	return s.conn.Send(protocol.StatusMessage{Status: status})
}

func (s *session) emit(ctx context.Context, cancel context.CancelFunc, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := s.sendBatch(); err != nil {
			if !errors.Is(err, link.ErrClosed) {
				log.Warn().Err(err).Str("remote", s.conn.Name()).Msg("sim send")
			}
			cancel()
			return
		}
	}
}

func (s *session) sendBatch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	peaks, err := s.gen.Batch(s.batch)
	if err != nil {
		return err
	}
	return s.conn.Send(protocol.DataMessage{Peaks: peaks})
}
