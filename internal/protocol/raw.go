package protocol

import "fmt"

// The sensor-native record is a little-endian bit stream: bit n lives in
// byte n/8 at position n%8. Fields are packed back to back, so cycle and
// speed share byte 7 and speed and peak height share byte 8.
//
//	bits  0..39  timestamp
//	bits 40..57  cycle
//	bits 58..67  speed
//	bits 68..95  peak height
type rawField struct {
	name   string
	offset uint
	width  uint
}

var (
	rawTimestamp  = rawField{name: "timestamp", offset: 0, width: 40}
	rawCycle      = rawField{name: "cycle", offset: 40, width: 18}
	rawSpeed      = rawField{name: "speed", offset: 58, width: 10}
	rawPeakHeight = rawField{name: "peak_height", offset: 68, width: 28}
)

// readBits extracts width bits starting at bit offset, least significant
// bit first, crossing byte boundaries as needed.
func readBits(buf []byte, offset, width uint) uint64 {
	var v uint64
	for i := uint(0); i < width; i++ {
		bit := offset + i
		if buf[bit/8]>>(bit%8)&1 != 0 {
			v |= 1 << i
		}
	}
	return v
}

func writeBits(buf []byte, offset, width uint, v uint64) {
	for i := uint(0); i < width; i++ {
		bit := offset + i
		if v>>i&1 != 0 {
			buf[bit/8] |= 1 << (bit % 8)
		}
	}
}

func (f rawField) read(buf []byte) uint64 {
	return readBits(buf, f.offset, f.width)
}

func (f rawField) write(buf []byte, v uint64) {
	writeBits(buf, f.offset, f.width, v)
}

// DecodeRawPeak unpacks one 12-byte sensor-native record. Any other length is
// a caller bug and yields ErrInvalidRawLength.
func DecodeRawPeak(raw []byte) (MeasuredPeak, error) {
	if len(raw) != RawPeakSize {
		return MeasuredPeak{}, fmt.Errorf("%w: got %d want %d", ErrInvalidRawLength, len(raw), RawPeakSize)
	}
	return MeasuredPeak{
		Timestamp:  rawTimestamp.read(raw),
		Cycle:      uint32(rawCycle.read(raw)),
		Speed:      uint16(rawSpeed.read(raw)),
		PeakHeight: uint32(rawPeakHeight.read(raw)),
	}, nil
}

// MustDecodeRawPeak is DecodeRawPeak for callers that guarantee the length by
// construction. It panics on a wrong length.
func MustDecodeRawPeak(raw []byte) MeasuredPeak {
	p, err := DecodeRawPeak(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// DecodeRawPeaks unpacks a run of back-to-back sensor-native records.
func DecodeRawPeaks(raw []byte) ([]MeasuredPeak, error) {
	if len(raw)%RawPeakSize != 0 {
		return nil, fmt.Errorf("%w: %d is not a multiple of %d", ErrInvalidRawLength, len(raw), RawPeakSize)
	}
	peaks := make([]MeasuredPeak, 0, len(raw)/RawPeakSize)
	for off := 0; off < len(raw); off += RawPeakSize {
		peaks = append(peaks, MustDecodeRawPeak(raw[off:off+RawPeakSize]))
	}
	return peaks, nil
}

// EncodeRawPeak packs p into the sensor-native layout. Field bits above the
// native widths are dropped. The instrument never receives this format; it
// exists for simulators and fixtures.
func EncodeRawPeak(p MeasuredPeak) []byte {
	raw := make([]byte, RawPeakSize)
	rawTimestamp.write(raw, p.Timestamp)
	rawCycle.write(raw, uint64(p.Cycle))
	rawSpeed.write(raw, uint64(p.Speed))
	rawPeakHeight.write(raw, uint64(p.PeakHeight))
	return raw
}

// Native reports p with every field truncated to its sensor-native width.
func (p MeasuredPeak) Native() MeasuredPeak {
	return MeasuredPeak{
		Timestamp:  p.Timestamp & mask(rawTimestamp.width),
		PeakHeight: p.PeakHeight & uint32(mask(rawPeakHeight.width)),
		Speed:      p.Speed & uint16(mask(rawSpeed.width)),
		Cycle:      p.Cycle & uint32(mask(rawCycle.width)),
	}
}

func mask(width uint) uint64 {
	return 1<<width - 1
}
