package protocol

import "github.com/danmuck/peaklink/internal/protocol/wire"

// Append writes the canonical 18-byte record to dst.
func (p MeasuredPeak) Append(dst []byte) []byte {
	dst = wire.AppendU64(dst, p.Timestamp)
	dst = wire.AppendU32(dst, p.PeakHeight)
	dst = wire.AppendU16(dst, p.Speed)
	return wire.AppendU32(dst, p.Cycle)
}

// Encode returns the canonical 18-byte record.
func (p MeasuredPeak) Encode() []byte {
	return p.Append(make([]byte, 0, PeakSize))
}

// DecodePeak reads one canonical record from the front of buf.
func DecodePeak(buf []byte) (MeasuredPeak, int, error) {
	if len(buf) < PeakSize {
		return MeasuredPeak{}, 0, shortBuffer(PeakSize, len(buf))
	}
	c := wire.NewCursor(buf)
	p := MeasuredPeak{
		Timestamp:  c.U64(),
		PeakHeight: c.U32(),
		Speed:      c.U16(),
		Cycle:      c.U32(),
	}
	return p, c.Offset(), nil
}

// Append writes the 40-byte record to dst.
func (c FilterConfig) Append(dst []byte) []byte {
	dst = wire.AppendU64(dst, c.PThresh)
	dst = wire.AppendU64(dst, c.TDead)
	dst = wire.AppendU64(dst, c.K)
	dst = wire.AppendU64(dst, c.L)
	return wire.AppendU64(dst, c.M)
}

func (c FilterConfig) Encode() []byte {
	return c.Append(make([]byte, 0, FilterConfigSize))
}

// DecodeFilterConfig reads one 40-byte record from the front of buf.
func DecodeFilterConfig(buf []byte) (FilterConfig, int, error) {
	if len(buf) < FilterConfigSize {
		return FilterConfig{}, 0, shortBuffer(FilterConfigSize, len(buf))
	}
	c := wire.NewCursor(buf)
	cfg := FilterConfig{
		PThresh: c.U64(),
		TDead:   c.U64(),
		K:       c.U64(),
		L:       c.U64(),
		M:       c.U64(),
	}
	return cfg, c.Offset(), nil
}

// Append writes the status byte to dst. Only StatusStart and StatusStop are
// meaningful on the wire.
func (s Status) Append(dst []byte) []byte {
	return append(dst, byte(s))
}

func (s Status) Encode() []byte {
	return s.Append(make([]byte, 0, StatusSize))
}

// DecodeStatus reads one status byte from the front of buf.
func DecodeStatus(buf []byte) (Status, int, error) {
	if len(buf) < StatusSize {
		return 0, 0, shortBuffer(StatusSize, len(buf))
	}
	s := Status(buf[0])
	if !s.Valid() {
		return 0, 0, invalidDiscriminant("status", buf[0])
	}
	return s, StatusSize, nil
}
