package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// ts=0x0dc7864a8c cycle=0x29d56 speed=0x3b3 height=0x3373647, packed by hand.
var (
	sampleRaw = []byte{
		0x8c, 0x4a, 0x86, 0xc7, 0x0d, // timestamp
		0x56, 0x9d,                   // cycle 0..15
		0xce,                         // speed 0..5 | cycle 16..17
		0x7e,                         // height 0..3 | speed 6..9
		0x64, 0x73, 0x33,             // height 4..27
	}
	sampleRawPeak = MeasuredPeak{
		Timestamp:  0x0dc7864a8c,
		Cycle:      0x29d56,
		Speed:      0x3b3,
		PeakHeight: 0x3373647,
	}
)

func TestDecodeRawPeakVector(t *testing.T) {
	got, err := DecodeRawPeak(sampleRaw)
	if err != nil {
		t.Fatalf("decode raw: %v", err)
	}
	if diff := cmp.Diff(sampleRawPeak, got); diff != "" {
		t.Fatalf("raw peak mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRawPeakFieldsIsolated(t *testing.T) {
	cases := []struct {
		name string
		raw  []byte
		want MeasuredPeak
	}{
		{
			name: "timestamp",
			raw:  []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0, 0, 0, 0, 0, 0, 0},
			want: MeasuredPeak{Timestamp: 0xff_ffff_ffff},
		},
		{
			name: "timestamp_byte_order",
			raw:  []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0, 0, 0, 0, 0, 0, 0},
			want: MeasuredPeak{Timestamp: 0x05_0403_0201},
		},
		{
			name: "cycle",
			raw:  []byte{0, 0, 0, 0, 0, 0xff, 0xff, 0x03, 0, 0, 0, 0},
			want: MeasuredPeak{Cycle: 0x3ffff},
		},
		{
			name: "cycle_high_bits",
			raw:  []byte{0, 0, 0, 0, 0, 0, 0, 0x02, 0, 0, 0, 0},
			want: MeasuredPeak{Cycle: 1 << 17},
		},
		{
			name: "speed",
			raw:  []byte{0, 0, 0, 0, 0, 0, 0, 0xfc, 0x0f, 0, 0, 0},
			want: MeasuredPeak{Speed: 0x3ff},
		},
		{
			name: "speed_low_bit",
			raw:  []byte{0, 0, 0, 0, 0, 0, 0, 0x04, 0, 0, 0, 0},
			want: MeasuredPeak{Speed: 1},
		},
		{
			name: "speed_high_nibble",
			raw:  []byte{0, 0, 0, 0, 0, 0, 0, 0, 0x01, 0, 0, 0},
			want: MeasuredPeak{Speed: 1 << 6},
		},
		{
			name: "peak_height",
			raw:  []byte{0, 0, 0, 0, 0, 0, 0, 0, 0xf0, 0xff, 0xff, 0xff},
			want: MeasuredPeak{PeakHeight: 0xfff_ffff},
		},
		{
			name: "peak_height_low_nibble",
			raw:  []byte{0, 0, 0, 0, 0, 0, 0, 0, 0x10, 0, 0, 0},
			want: MeasuredPeak{PeakHeight: 1},
		},
		{
			name: "peak_height_byte_9",
			raw:  []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0x01, 0, 0},
			want: MeasuredPeak{PeakHeight: 1 << 4},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeRawPeak(tc.raw)
			if err != nil {
				t.Fatalf("decode raw: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRawFieldTableCoversRecord(t *testing.T) {
	fields := []rawField{rawTimestamp, rawCycle, rawSpeed, rawPeakHeight}
	next := uint(0)
	for _, f := range fields {
		if f.offset != next {
			t.Fatalf("field %s starts at bit %d, want %d", f.name, f.offset, next)
		}
		next += f.width
	}
	if next != RawPeakSize*8 {
		t.Fatalf("layout covers %d bits, want %d", next, RawPeakSize*8)
	}
}

func TestDecodeRawPeakWrongLength(t *testing.T) {
	for _, l := range []int{0, 11, 13, 18} {
		_, err := DecodeRawPeak(make([]byte, l))
		if !errors.Is(err, ErrInvalidRawLength) {
			t.Fatalf("len %d: expected ErrInvalidRawLength, got %v", l, err)
		}
	}
}

func TestMustDecodeRawPeakPanicsOnWrongLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	MustDecodeRawPeak(make([]byte, 11))
}

func TestEncodeRawPeakInvertsDecode(t *testing.T) {
	raw := EncodeRawPeak(sampleRawPeak)
	if !bytes.Equal(raw, sampleRaw) {
		t.Fatalf("encode raw mismatch:\n got=% x\nwant=% x", raw, sampleRaw)
	}

	wide := MeasuredPeak{Timestamp: ^uint64(0), PeakHeight: ^uint32(0), Speed: ^uint16(0), Cycle: ^uint32(0)}
	got := MustDecodeRawPeak(EncodeRawPeak(wide))
	want := MeasuredPeak{Timestamp: 0xff_ffff_ffff, PeakHeight: 0xfff_ffff, Speed: 0x3ff, Cycle: 0x3ffff}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("masked round trip (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, wide.Native()); diff != "" {
		t.Fatalf("native mask (-want +got):\n%s", diff)
	}
}

func TestDecodeRawPeaks(t *testing.T) {
	second := MeasuredPeak{Timestamp: 7, Cycle: 3, Speed: 2, PeakHeight: 1}
	buf := append(append([]byte{}, sampleRaw...), EncodeRawPeak(second)...)
	peaks, err := DecodeRawPeaks(buf)
	if err != nil {
		t.Fatalf("decode raw peaks: %v", err)
	}
	if diff := cmp.Diff([]MeasuredPeak{sampleRawPeak, second}, peaks); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if _, err := DecodeRawPeaks(buf[:20]); !errors.Is(err, ErrInvalidRawLength) {
		t.Fatalf("expected ErrInvalidRawLength, got %v", err)
	}
}

func TestRawPeakFeedsCanonicalRecord(t *testing.T) {
	p := MustDecodeRawPeak(sampleRaw)
	got, n, err := DecodePeak(p.Encode())
	if err != nil || n != PeakSize {
		t.Fatalf("decode canonical: n=%d err=%v", n, err)
	}
	if got != sampleRawPeak {
		t.Fatalf("got %v want %v", got, sampleRawPeak)
	}
}
