package sim

import (
	"math/rand"
	"sync"

	"github.com/danmuck/peaklink/internal/protocol"
)

// Generator produces a deterministic stream of synthetic peaks shaped by the
// current filter config. Peaks leave it in the sensor-native layout.
type Generator struct {
	mu        sync.Mutex
	rng       *rand.Rand
	filter    protocol.FilterConfig
	timestamp uint64
	cycle     uint32
}

func NewGenerator(seed int64, filter protocol.FilterConfig) *Generator {
	return &Generator{
		rng:    rand.New(rand.NewSource(seed)),
		filter: filter,
	}
}

func (g *Generator) SetFilter(cfg protocol.FilterConfig) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.filter = cfg
}

func (g *Generator) Filter() protocol.FilterConfig {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.filter
}

// NextRaw returns the next peak as a 12-byte native record. Peaks are at
// least TDead apart and never below PThresh, before native truncation.
func (g *Generator) NextRaw() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return protocol.EncodeRawPeak(g.next())
}

func (g *Generator) next() protocol.MeasuredPeak {
	g.timestamp += g.filter.TDead + 1 + uint64(g.rng.Intn(1000))
	g.cycle++
	return protocol.MeasuredPeak{
		Timestamp:  g.timestamp,
		PeakHeight: uint32(g.filter.PThresh + uint64(g.rng.Int63n(1<<20))),
		Speed:      uint16(g.rng.Intn(1 << 10)),
		Cycle:      g.cycle,
	}
}

// Batch returns n peaks decoded from their native records.
func (g *Generator) Batch(n int) ([]protocol.MeasuredPeak, error) {
	raw := make([]byte, 0, n*protocol.RawPeakSize)
	for i := 0; i < n; i++ {
		raw = append(raw, g.NextRaw()...)
	}
	return protocol.DecodeRawPeaks(raw)
}
