package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type fileConfig struct {
	Link    fileLink    `toml:"link"`
	Filter  fileFilter  `toml:"filter"`
	Record  fileRecord  `toml:"record"`
	Metrics fileMetrics `toml:"metrics"`
}

type fileLink struct {
	Kind        string      `toml:"kind"`
	Address     string      `toml:"address"`
	DialTimeout string      `toml:"dial_timeout"`
	MaxAttempts int         `toml:"max_attempts"`
	MaxPeaks    uint64      `toml:"max_peaks"`
	Backoff     fileBackoff `toml:"backoff"`
	Serial      fileSerial  `toml:"serial"`
}

type fileBackoff struct {
	Initial    string  `toml:"initial"`
	Multiplier float64 `toml:"multiplier"`
	Max        string  `toml:"max"`
	Jitter     bool    `toml:"jitter"`
}

type fileSerial struct {
	BaudRate int    `toml:"baud_rate"`
	DataBits int    `toml:"data_bits"`
	StopBits int    `toml:"stop_bits"`
	Parity   string `toml:"parity"`
}

type fileFilter struct {
	PThresh uint64 `toml:"pthresh"`
	TDead   uint64 `toml:"tdead"`
	K       uint64 `toml:"k"`
	L       uint64 `toml:"l"`
	M       uint64 `toml:"m"`
}

type fileRecord struct {
	Path string `toml:"path"`
}

type fileMetrics struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

func (raw fileConfig) apply(meta toml.MetaData, cfg Config) (Config, error) {
	l := raw.Link
	if meta.IsDefined("link", "kind") {
		cfg.Link.Kind = strings.ToLower(strings.TrimSpace(l.Kind))
	}
	if meta.IsDefined("link", "address") {
		cfg.Link.Address = strings.TrimSpace(l.Address)
	}
	if meta.IsDefined("link", "dial_timeout") {
		d, err := parseDuration("link.dial_timeout", l.DialTimeout)
		if err != nil {
			return Config{}, err
		}
		cfg.Link.DialTimeout = d
	}
	if meta.IsDefined("link", "max_attempts") {
		cfg.Link.MaxAttempts = l.MaxAttempts
	}
	if meta.IsDefined("link", "max_peaks") {
		cfg.Link.Limits.MaxPeaks = l.MaxPeaks
	}

	if meta.IsDefined("link", "backoff", "initial") {
		d, err := parseDuration("link.backoff.initial", l.Backoff.Initial)
		if err != nil {
			return Config{}, err
		}
		cfg.Link.Backoff.InitialDelay = d
	}
	if meta.IsDefined("link", "backoff", "multiplier") {
		cfg.Link.Backoff.Multiplier = l.Backoff.Multiplier
	}
	if meta.IsDefined("link", "backoff", "max") {
		d, err := parseDuration("link.backoff.max", l.Backoff.Max)
		if err != nil {
			return Config{}, err
		}
		cfg.Link.Backoff.MaxDelay = d
	}
	if meta.IsDefined("link", "backoff", "jitter") {
		cfg.Link.Backoff.Jitter = l.Backoff.Jitter
	}

	if meta.IsDefined("link", "serial", "baud_rate") {
		cfg.Link.Serial.BaudRate = l.Serial.BaudRate
	}
	if meta.IsDefined("link", "serial", "data_bits") {
		cfg.Link.Serial.DataBits = l.Serial.DataBits
	}
	if meta.IsDefined("link", "serial", "stop_bits") {
		cfg.Link.Serial.StopBits = l.Serial.StopBits
	}
	if meta.IsDefined("link", "serial", "parity") {
		cfg.Link.Serial.Parity = strings.TrimSpace(l.Serial.Parity)
	}

	f := raw.Filter
	if meta.IsDefined("filter", "pthresh") {
		cfg.Filter.PThresh = f.PThresh
	}
	if meta.IsDefined("filter", "tdead") {
		cfg.Filter.TDead = f.TDead
	}
	if meta.IsDefined("filter", "k") {
		cfg.Filter.K = f.K
	}
	if meta.IsDefined("filter", "l") {
		cfg.Filter.L = f.L
	}
	if meta.IsDefined("filter", "m") {
		cfg.Filter.M = f.M
	}

	if meta.IsDefined("record", "path") {
		cfg.Record.Path = strings.TrimSpace(raw.Record.Path)
	}
	if meta.IsDefined("metrics", "addr") {
		cfg.Metrics.Addr = strings.TrimSpace(raw.Metrics.Addr)
	}
	if meta.IsDefined("metrics", "cors_origins") {
		cfg.Metrics.CorsOrigins = normalizeOrigins(raw.Metrics.CorsOrigins)
	}
	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	var out []string
	for _, origin := range in {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDuration(key, v string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

// toFile is the inverse of apply: it renders every field of cfg.
func toFile(cfg Config) fileConfig {
	return fileConfig{
		Link: fileLink{
			Kind:        cfg.Link.Kind,
			Address:     cfg.Link.Address,
			DialTimeout: cfg.Link.DialTimeout.String(),
			MaxAttempts: cfg.Link.MaxAttempts,
			MaxPeaks:    cfg.Link.Limits.MaxPeaks,
			Backoff: fileBackoff{
				Initial:    cfg.Link.Backoff.InitialDelay.String(),
				Multiplier: cfg.Link.Backoff.Multiplier,
				Max:        cfg.Link.Backoff.MaxDelay.String(),
				Jitter:     cfg.Link.Backoff.Jitter,
			},
			Serial: fileSerial{
				BaudRate: cfg.Link.Serial.BaudRate,
				DataBits: cfg.Link.Serial.DataBits,
				StopBits: cfg.Link.Serial.StopBits,
				Parity:   cfg.Link.Serial.Parity,
			},
		},
		Filter: fileFilter{
			PThresh: cfg.Filter.PThresh,
			TDead:   cfg.Filter.TDead,
			K:       cfg.Filter.K,
			L:       cfg.Filter.L,
			M:       cfg.Filter.M,
		},
		Record:  fileRecord{Path: cfg.Record.Path},
		Metrics: fileMetrics{
			Addr:        cfg.Metrics.Addr,
			CorsOrigins: cfg.Metrics.CorsOrigins,
		},
	}
}
