package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/peaklink/internal/config"
	"github.com/danmuck/peaklink/internal/link"
	"github.com/danmuck/peaklink/internal/observability"
	"github.com/danmuck/peaklink/internal/protocol"
	"github.com/danmuck/peaklink/internal/store"
	"github.com/rs/zerolog/log"
)

// linkFlags are shared by every command that talks to the instrument.
type linkFlags struct {
	configPath string
	addr       string
	kind       string
	attempts   int
}

func (f *linkFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "config file (defaults apply when empty)")
	fs.StringVar(&f.addr, "addr", "", "override link address (host:port or serial device)")
	fs.StringVar(&f.kind, "kind", "", "override link kind: tcp | serial")
	fs.IntVar(&f.attempts, "attempts", -1, "override connect attempts (0 retries forever)")
}

func (f *linkFlags) load() (config.Config, error) {
	cfg := config.DefaultConfig()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if v := strings.TrimSpace(f.addr); v != "" {
		cfg.Link.Address = v
	}
	if v := strings.TrimSpace(f.kind); v != "" {
		cfg.Link.Kind = strings.ToLower(v)
	}
	if f.attempts >= 0 {
		cfg.Link.MaxAttempts = f.attempts
	}
	return cfg, cfg.Validate()
}

// filterFlags override single filter parameters on top of the config file.
type filterFlags struct {
	pthresh, tdead, k, l, m uint64
}

func (f *filterFlags) register(fs *flag.FlagSet) {
	fs.Uint64Var(&f.pthresh, "pthresh", 0, "override filter pthresh")
	fs.Uint64Var(&f.tdead, "tdead", 0, "override filter tdead")
	fs.Uint64Var(&f.k, "k", 0, "override filter k")
	fs.Uint64Var(&f.l, "l", 0, "override filter l")
	fs.Uint64Var(&f.m, "m", 0, "override filter m")
}

func (f *filterFlags) apply(fs *flag.FlagSet, cfg *protocol.FilterConfig) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "pthresh":
			cfg.PThresh = f.pthresh
		case "tdead":
			cfg.TDead = f.tdead
		case "k":
			cfg.K = f.k
		case "l":
			cfg.L = f.l
		case "m":
			cfg.M = f.m
		}
	})
}

var errAcked = errors.New("acknowledged")

// awaitStatus waits for the next Status message, skipping Data.
func awaitStatus(ctx context.Context, conn *link.Conn, wait time.Duration) (protocol.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	var got protocol.Status
	err := conn.Run(ctx, func(m protocol.Message) error {
		if s, ok := m.(protocol.StatusMessage); ok {
			got = s.Status
			return errAcked
		}
		return nil
	})
	switch {
	case errors.Is(err, errAcked):
		return got, nil
	case err == nil:
		return 0, fmt.Errorf("link closed before status ack: %w", io.ErrUnexpectedEOF)
	default:
		return 0, fmt.Errorf("waiting for status ack: %w", err)
	}
}

// runCommand handles config, start and stop: send one message, then report
// the instrument's status ack.
func runCommand(ctx context.Context, name string, args []string, out io.Writer) error {
	fs := newFlagSet(name)
	var lf linkFlags
	lf.register(fs)
	var ff filterFlags
	if name == "config" {
		ff.register(fs)
	}
	wait := fs.Duration("wait", 2*time.Second, "how long to wait for the status ack (0 skips)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := lf.load()
	if err != nil {
		return err
	}
	ff.apply(fs, &cfg.Filter)

	conn, err := link.Dial(ctx, cfg.Link)
	if err != nil {
		return err
	}
	defer conn.Close()

	var msg protocol.Message
	switch name {
	case "config":
		msg = protocol.ConfigMessage{Config: cfg.Filter}
	case "start":
		msg = protocol.StatusMessage{Status: protocol.StatusStart}
	default:
		msg = protocol.StatusMessage{Status: protocol.StatusStop}
	}
	if err := conn.Send(msg); err != nil {
		return err
	}
	fmt.Fprintf(out, "sent %v\n", msg)

	if *wait <= 0 {
		return nil
	}
	status, err := awaitStatus(ctx, conn, *wait)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "instrument status %v\n", status)
	return nil
}

// listenState is the snapshot served on /status.
type listenState struct {
	mu       sync.Mutex
	link     string
	runID    string
	status   string
	messages uint64
	peaks    uint64
	lastSeen time.Time
}

func (s *listenState) observe(m protocol.Message) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages++
	s.lastSeen = time.Now().UTC()
	switch v := m.(type) {
	case protocol.DataMessage:
		s.peaks += uint64(len(v.Peaks))
	case protocol.StatusMessage:
		s.status = v.Status.String()
	}
	return s.peaks
}

func (s *listenState) snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{
		"link":      s.link,
		"run_id":    s.runID,
		"status":    s.status,
		"messages":  s.messages,
		"peaks":     s.peaks,
		"last_seen": s.lastSeen,
	}
}

var errDone = errors.New("peak count reached")

func runListen(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("listen")
	var lf linkFlags
	lf.register(fs)
	var ff filterFlags
	ff.register(fs)
	record := fs.String("record", "", "sqlite file to record into (overrides [record] path)")
	metricsAddr := fs.String("metrics", "", "HTTP listen address for /metrics and /status (overrides [metrics] addr)")
	start := fs.Bool("start", true, "send the filter config and start before listening")
	count := fs.Uint64("count", 0, "stop after this many peaks (0 runs until interrupted)")
	quiet := fs.Bool("quiet", false, "do not print individual peaks")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := lf.load()
	if err != nil {
		return err
	}
	ff.apply(fs, &cfg.Filter)
	if *record != "" {
		cfg.Record.Path = *record
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := &listenState{link: cfg.Link.Address, status: "unknown"}
	var (
		db    *store.Store
		runID string
	)
	if cfg.Record.Path != "" {
		db, err = store.Open(cfg.Record.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		started, err := db.BeginRun(ctx, cfg.Link.Address)
		if err != nil {
			return err
		}
		runID = started.ID
		state.runID = runID
		defer func() {
			if err := db.EndRun(context.Background(), runID); err != nil {
				log.Warn().Err(err).Str("run", runID).Msg("end run")
			}
		}()
		fmt.Fprintf(out, "recording run %s to %s\n", runID, cfg.Record.Path)
	}

	if cfg.Metrics.Addr != "" {
		srvCfg := observability.ServerConfig{
			Node:        "peakctl",
			Addr:        cfg.Metrics.Addr,
			CorsOrigins: cfg.Metrics.CorsOrigins,
			Status:      state.snapshot,
		}
		go func() {
			if err := observability.Serve(ctx, srvCfg); err != nil {
				log.Error().Err(err).Str("addr", srvCfg.Addr).Msg("http endpoint failed")
			}
		}()
	}

	recordMsg := func(direction string, m protocol.Message) error {
		if db == nil {
			return nil
		}
		return db.Record(ctx, runID, direction, m)
	}

	conn, err := link.Dial(ctx, cfg.Link)
	if err != nil {
		return err
	}
	defer conn.Close()

	send := func(m protocol.Message) error {
		if err := conn.Send(m); err != nil {
			return err
		}
		return recordMsg(observability.DirectionTx, m)
	}
	if *start {
		if err := send(protocol.ConfigMessage{Config: cfg.Filter}); err != nil {
			return err
		}
		if err := send(protocol.StatusMessage{Status: protocol.StatusStart}); err != nil {
			return err
		}
	}

	err = conn.Run(ctx, func(m protocol.Message) error {
		peaks := state.observe(m)
		if err := recordMsg(observability.DirectionRx, m); err != nil {
			return err
		}
		switch v := m.(type) {
		case protocol.DataMessage:
			if !*quiet {
				for _, p := range v.Peaks {
					fmt.Fprintln(out, p)
				}
			}
		default:
			fmt.Fprintln(out, m)
		}
		if *count > 0 && peaks >= *count {
			return errDone
		}
		return nil
	})

	switch {
	case errors.Is(err, errDone):
		if *start {
			if err := send(protocol.StatusMessage{Status: protocol.StatusStop}); err != nil {
				return err
			}
		}
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	default:
		return err
	}
}
