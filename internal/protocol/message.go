package protocol

import (
	"fmt"
	"math"

	"github.com/danmuck/peaklink/internal/protocol/wire"
)

// Message is one envelope on the instrument link. The set of implementations
// is closed: DataMessage, StatusMessage and ConfigMessage.
type Message interface {
	Tag() Tag
	// EncodedLen is the exact number of bytes Append writes.
	EncodedLen() int
	Append(dst []byte) []byte
	isMessage()
}

// DataMessage carries a batch of measured peaks.
type DataMessage struct {
	Peaks []MeasuredPeak
}

// StatusMessage carries a start/stop signal.
type StatusMessage struct {
	Status Status
}

// ConfigMessage carries detector tuning parameters.
type ConfigMessage struct {
	Config FilterConfig
}

func (DataMessage) Tag() Tag { return TagData }
func (StatusMessage) Tag() Tag { return TagStatus }
func (ConfigMessage) Tag() Tag { return TagConfig }

func (DataMessage) isMessage() {}
func (StatusMessage) isMessage() {}
func (ConfigMessage) isMessage() {}

func (m DataMessage) EncodedLen() int { return DataHeaderSize + len(m.Peaks)*PeakSize }
func (StatusMessage) EncodedLen() int { return StatusMsgSize }
func (ConfigMessage) EncodedLen() int { return ConfigMsgSize }

func (m DataMessage) Append(dst []byte) []byte {
	dst = append(dst, byte(TagData))
	dst = wire.AppendU64(dst, uint64(len(m.Peaks)))
	for _, p := range m.Peaks {
		dst = p.Append(dst)
	}
	return dst
}

func (m StatusMessage) Append(dst []byte) []byte {
	dst = append(dst, byte(TagStatus))
	return m.Status.Append(dst)
}

func (m ConfigMessage) Append(dst []byte) []byte {
	dst = append(dst, byte(TagConfig))
	return m.Config.Append(dst)
}

func (m DataMessage) String() string {
	return fmt.Sprintf("data peaks=%d", len(m.Peaks))
}

func (m StatusMessage) String() string {
	return "status " + m.Status.String()
}

func (m ConfigMessage) String() string {
	return "config " + m.Config.String()
}

// EncodeMessage returns the full wire encoding of m.
func EncodeMessage(m Message) []byte {
	return m.Append(make([]byte, 0, m.EncodedLen()))
}

// maxPeakCount bounds the declared count so the total frame length fits an int.
const maxPeakCount = (math.MaxInt - DataHeaderSize) / PeakSize

// DecodeMessage reads one message from the front of buf and reports how many
// bytes it used. Bytes past that count are left for the next call.
func DecodeMessage(buf []byte) (Message, int, error) {
	if len(buf) < TagSize {
		return nil, 0, shortBuffer(TagSize, len(buf))
	}
	switch Tag(buf[0]) {
	case TagData:
		return decodeData(buf)
	case TagStatus:
		if len(buf) < StatusMsgSize {
			return nil, 0, shortBuffer(StatusMsgSize, len(buf))
		}
		s, n, err := DecodeStatus(buf[TagSize:])
		if err != nil {
			return nil, 0, err
		}
		return StatusMessage{Status: s}, TagSize + n, nil
	case TagConfig:
		if len(buf) < ConfigMsgSize {
			return nil, 0, shortBuffer(ConfigMsgSize, len(buf))
		}
		cfg, n, err := DecodeFilterConfig(buf[TagSize:])
		if err != nil {
			return nil, 0, err
		}
		return ConfigMessage{Config: cfg}, TagSize + n, nil
	default:
		return nil, 0, invalidDiscriminant("message tag", buf[0])
	}
}

func decodeData(buf []byte) (Message, int, error) {
	if len(buf) < DataHeaderSize {
		return nil, 0, shortBuffer(DataHeaderSize, len(buf))
	}
	count := wire.NewCursor(buf[TagSize:DataHeaderSize]).U64()
	if count > maxPeakCount {
		return nil, 0, fmt.Errorf("%w: peak count %d", ErrInvalidLength, count)
	}
	need := int(count) * PeakSize
	payload := buf[DataHeaderSize:]
	if len(payload) < need {
		return nil, 0, shortBuffer(need, len(payload))
	}
	peaks := make([]MeasuredPeak, 0, count)
	off := 0
	for i := uint64(0); i < count; i++ {
		p, n, err := DecodePeak(payload[off:])
		if err != nil {
			return nil, 0, err
		}
		peaks = append(peaks, p)
		off += n
	}
	return DataMessage{Peaks: peaks}, DataHeaderSize + off, nil
}

// DataPeakCount reads the declared peak count of a Data message from its
// header without requiring the payload to be present.
func DataPeakCount(buf []byte) (uint64, error) {
	if len(buf) < DataHeaderSize {
		return 0, shortBuffer(DataHeaderSize, len(buf))
	}
	if Tag(buf[0]) != TagData {
		return 0, invalidDiscriminant("data tag", buf[0])
	}
	return wire.NewCursor(buf[TagSize:DataHeaderSize]).U64(), nil
}
