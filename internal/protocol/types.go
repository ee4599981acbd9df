package protocol

import "fmt"

// Fixed encoded lengths.
const (
	RawPeakSize      = 12
	PeakSize         = 8 + 4 + 2 + 4
	FilterConfigSize = 5 * 8
	StatusSize       = 1

	TagSize        = 1
	PeakCountSize  = 8
	DataHeaderSize = TagSize + PeakCountSize
	StatusMsgSize  = TagSize + StatusSize
	ConfigMsgSize  = TagSize + FilterConfigSize
)

// MeasuredPeak is one detected pulse event.
type MeasuredPeak struct {
	Timestamp  uint64
	PeakHeight uint32
	Speed      uint16
	Cycle      uint32
}

func (p MeasuredPeak) String() string {
	return fmt.Sprintf("peak ts=%d height=%d speed=%d cycle=%d", p.Timestamp, p.PeakHeight, p.Speed, p.Cycle)
}

// FilterConfig carries detector tuning parameters sent to the instrument.
type FilterConfig struct {
	PThresh uint64 // amplitude threshold
	TDead   uint64 // dead-time ticks between accepted peaks
	K       uint64 // shaping filter window
	L       uint64 // shaping filter window
	M       uint64
}

func (c FilterConfig) String() string {
	return fmt.Sprintf("filter pthresh=%d tdead=%d k=%d l=%d m=%d", c.PThresh, c.TDead, c.K, c.L, c.M)
}

// Status is the acquisition control signal.
type Status uint8

const (
	StatusStart Status = 0
	StatusStop  Status = 1
)

func (s Status) Valid() bool {
	return s == StatusStart || s == StatusStop
}

func (s Status) String() string {
	switch s {
	case StatusStart:
		return "start"
	case StatusStop:
		return "stop"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Tag is the leading discriminant byte of a message.
type Tag uint8

const (
	TagData   Tag = 0
	TagStatus Tag = 1
	TagConfig Tag = 2
)

func (t Tag) String() string {
	switch t {
	case TagData:
		return "data"
	case TagStatus:
		return "status"
	case TagConfig:
		return "config"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}
