// Package config loads peaklink settings from TOML. Keys missing from the
// file keep the values of DefaultConfig.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/peaklink/internal/link"
	"github.com/danmuck/peaklink/internal/protocol"
)

var ErrInvalidConfig = errors.New("config: invalid")

// Config is the full host-side configuration.
type Config struct {
	Link    link.Config
	Filter  protocol.FilterConfig
	Record  RecordConfig
	Metrics MetricsConfig
}

// RecordConfig selects where captured peaks are stored. An empty Path
// disables recording.
type RecordConfig struct {
	Path string
}

// MetricsConfig selects where the HTTP endpoint listens. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr        string
	CorsOrigins []string
}

func DefaultConfig() Config {
	return Config{
		Link: link.DefaultConfig(),
		Filter: protocol.FilterConfig{
			PThresh: 1_000_000,
			TDead:   100,
			K:       20,
			L:       50,
			M:       2_000_000,
		},
	}
}

// Load reads path and overlays every key it defines onto DefaultConfig.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalidConfig, path, strings.Join(keys, ", "))
	}

	cfg, err := raw.apply(meta, DefaultConfig())
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	if err := c.Link.Validate(); err != nil {
		return fmt.Errorf("%w: [link]: %w", ErrInvalidConfig, err)
	}
	if c.Metrics.Addr != "" && !strings.Contains(c.Metrics.Addr, ":") {
		return fmt.Errorf("%w: [metrics] addr %q must be host:port", ErrInvalidConfig, c.Metrics.Addr)
	}
	for _, origin := range c.Metrics.CorsOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("%w: [metrics] cors origin %q must be an http(s) URL", ErrInvalidConfig, origin)
		}
	}
	return nil
}
