package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/peaklink/internal/logging"
	"github.com/danmuck/peaklink/internal/sim"
	"github.com/rs/zerolog/log"
)

func main() {
	logging.ConfigureRuntime("peaksim")
	cfg := sim.DefaultConfig()
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "TCP listen address")
	flag.DurationVar(&cfg.Interval, "interval", cfg.Interval, "time between data messages while started")
	flag.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "peaks per data message")
	flag.Int64Var(&cfg.Seed, "seed", time.Now().UnixNano(), "generator seed")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("addr", cfg.Addr).Dur("interval", cfg.Interval).Int("batch", cfg.BatchSize).Msg("peaksim starting")
	if err := sim.New(cfg).ListenAndServe(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "peaksim: %v\n", err)
		os.Exit(1)
	}
}
