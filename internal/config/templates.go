package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Template returns a commented starter config.
func Template() string {
	return peaklinkTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(peaklinkTemplate), 0o600)
}

// Render encodes cfg as TOML that Load reads back to the same value.
func Render(cfg Config) ([]byte, error) {
	out, err := toml.Marshal(toFile(cfg))
	if err != nil {
		return nil, fmt.Errorf("config render failed: %w", err)
	}
	return out, nil
}

const peaklinkTemplate = `# peaklink host configuration

[link]
kind = "tcp"                # tcp | serial
address = "127.0.0.1:7411"  # host:port, or a device path for serial
dial_timeout = "5s"
max_attempts = 5            # 0 retries until interrupted
max_peaks = 65536           # largest Data message accepted

[link.backoff]
initial = "250ms"
multiplier = 2.0
max = "5s"
jitter = true

[link.serial]
baud_rate = 115200
data_bits = 8
stop_bits = 1
parity = "N"

[filter]
pthresh = 1000000
tdead = 100
k = 20
l = 50
m = 2000000

[record]
path = ""                   # sqlite file; empty disables recording

[metrics]
addr = ""                   # e.g. "127.0.0.1:9411"; empty disables
cors_origins = []
`
