package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var (
	samplePeak = MeasuredPeak{
		Timestamp:  59182041740,
		PeakHeight: 53950023,
		Speed:      947,
		Cycle:      40278,
	}
	samplePeakBytes = []byte{
		0, 0, 0, 0x0d, 0xc7, 0x86, 0x4a, 0x8c,
		0x03, 0x37, 0x36, 0x47,
		0x03, 0xb3,
		0, 0, 0x9d, 0x56,
	}
	sampleConfig = FilterConfig{
		PThresh: 1_000_000,
		TDead:   100,
		K:       20,
		L:       50,
		M:       2_000_000,
	}
	sampleConfigBytes = []byte{
		0, 0, 0, 0, 0, 15, 66, 64,
		0, 0, 0, 0, 0, 0, 0, 100,
		0, 0, 0, 0, 0, 0, 0, 20,
		0, 0, 0, 0, 0, 0, 0, 50,
		0, 0, 0, 0, 0, 30, 132, 128,
	}
)

func TestFilterConfigEncodeVector(t *testing.T) {
	got := sampleConfig.Encode()
	if len(got) != FilterConfigSize {
		t.Fatalf("expected %d bytes, got %d", FilterConfigSize, len(got))
	}
	if !bytes.Equal(got, sampleConfigBytes) {
		t.Fatalf("encode mismatch:\n got=% x\nwant=% x", got, sampleConfigBytes)
	}
}

func TestMeasuredPeakEncodeVector(t *testing.T) {
	got := samplePeak.Encode()
	if len(got) != PeakSize {
		t.Fatalf("expected %d bytes, got %d", PeakSize, len(got))
	}
	if !bytes.Equal(got, samplePeakBytes) {
		t.Fatalf("encode mismatch:\n got=% x\nwant=% x", got, samplePeakBytes)
	}
}

func TestStatusEncode(t *testing.T) {
	if got := StatusStart.Encode(); !bytes.Equal(got, []byte{0}) {
		t.Fatalf("start encoded as % x", got)
	}
	if got := StatusStop.Encode(); !bytes.Equal(got, []byte{1}) {
		t.Fatalf("stop encoded as % x", got)
	}
}

func TestPeakRoundTrip(t *testing.T) {
	peaks := []MeasuredPeak{
		{},
		samplePeak,
		{Timestamp: ^uint64(0), PeakHeight: ^uint32(0), Speed: ^uint16(0), Cycle: ^uint32(0)},
	}
	for _, want := range peaks {
		got, n, err := DecodePeak(want.Encode())
		if err != nil {
			t.Fatalf("decode %v: %v", want, err)
		}
		if n != PeakSize {
			t.Fatalf("consumed %d, want %d", n, PeakSize)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("peak mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestFilterConfigRoundTrip(t *testing.T) {
	got, n, err := DecodeFilterConfig(sampleConfig.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != FilterConfigSize {
		t.Fatalf("consumed %d, want %d", n, FilterConfigSize)
	}
	if diff := cmp.Diff(sampleConfig, got); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	for _, want := range []Status{StatusStart, StatusStop} {
		got, n, err := DecodeStatus(want.Encode())
		if err != nil {
			t.Fatalf("decode %v: %v", want, err)
		}
		if got != want || n != StatusSize {
			t.Fatalf("got=%v n=%d want=%v n=%d", got, n, want, StatusSize)
		}
	}
}

func TestDecodeStatusInvalidDiscriminant(t *testing.T) {
	_, _, err := DecodeStatus([]byte{2})
	if !errors.Is(err, ErrInvalidDiscriminant) {
		t.Fatalf("expected ErrInvalidDiscriminant, got %v", err)
	}
	if IsRetryable(err) {
		t.Fatalf("invalid discriminant must not be retryable")
	}
}

func TestRecordDecodeTruncated(t *testing.T) {
	cases := []struct {
		name   string
		full   []byte
		decode func([]byte) (int, error)
	}{
		{
			name:   "peak",
			full:   samplePeakBytes,
			decode: func(b []byte) (int, error) {
				_, n, err := DecodePeak(b)
				return n, err
			},
		},
		{
			name:   "filter_config",
			full:   sampleConfigBytes,
			decode: func(b []byte) (int, error) {
				_, n, err := DecodeFilterConfig(b)
				return n, err
			},
		},
		{
			name:   "status",
			full:   []byte{1},
			decode: func(b []byte) (int, error) {
				_, n, err := DecodeStatus(b)
				return n, err
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for l := 0; l < len(tc.full); l++ {
				n, err := tc.decode(tc.full[:l])
				missing, ok := MissingBytes(err)
				if !ok {
					t.Fatalf("prefix %d: expected ShortBufferError, got %v", l, err)
				}
				if missing != len(tc.full)-l {
					t.Fatalf("prefix %d: missing=%d want=%d", l, missing, len(tc.full)-l)
				}
				if n != 0 {
					t.Fatalf("prefix %d: consumed %d on failure", l, n)
				}
			}
		})
	}
}

func TestRecordDecodeIgnoresTrailingBytes(t *testing.T) {
	buf := append(append([]byte{}, samplePeakBytes...), 0xde, 0xad)
	got, n, err := DecodePeak(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != PeakSize {
		t.Fatalf("consumed %d, want %d", n, PeakSize)
	}
	if got != samplePeak {
		t.Fatalf("got %v want %v", got, samplePeak)
	}

	buf = append(append([]byte{}, sampleConfigBytes...), 0xff)
	cfg, n, err := DecodeFilterConfig(buf)
	if err != nil || n != FilterConfigSize || cfg != sampleConfig {
		t.Fatalf("config with trailer: cfg=%v n=%d err=%v", cfg, n, err)
	}

	s, n, err := DecodeStatus([]byte{0, 9, 9})
	if err != nil || n != StatusSize || s != StatusStart {
		t.Fatalf("status with trailer: s=%v n=%d err=%v", s, n, err)
	}
}

func TestShortBufferErrorMatchesSentinel(t *testing.T) {
	err := shortBuffer(9, 4)
	if !errors.Is(err, ErrBufferTooShort) {
		t.Fatalf("expected errors.Is ErrBufferTooShort")
	}
	if !IsRetryable(err) {
		t.Fatalf("short buffer must be retryable")
	}
	if err.Error() != "protocol: buffer too short: missing 5 bytes" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if _, ok := MissingBytes(ErrInvalidDiscriminant); ok {
		t.Fatalf("MissingBytes must not match other errors")
	}
}

func TestDisplayStrings(t *testing.T) {
	cases := []struct {
		got  string
		want string
	}{
		{StatusStart.String(), "start"},
		{StatusStop.String(), "stop"},
		{Status(7).String(), "status(7)"},
		{TagConfig.String(), "config"},
		{Tag(9).String(), "tag(9)"},
		{samplePeak.String(), "peak ts=59182041740 height=53950023 speed=947 cycle=40278"},
		{sampleConfig.String(), "filter pthresh=1000000 tdead=100 k=20 l=50 m=2000000"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("got %q want %q", tc.got, tc.want)
		}
	}
}
