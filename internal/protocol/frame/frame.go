package frame

import (
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/peaklink/internal/protocol"
)

var (
	ErrShortMessage = errors.New("frame: stream ended inside a message")
	ErrTooManyPeaks = errors.New("frame: data message exceeds peak limit")
)

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPeaks uint64
}

func DefaultLimits() Limits {
	return Limits{
		MaxPeaks: 64 * 1024,
	}
}

// Reader pulls whole messages off a byte stream. It only ever reads the
// deficit reported by the decoder, so it never consumes bytes belonging to
// the next message and holds no leftover input between calls.
type Reader struct {
	r      io.Reader
	limits Limits
	buf    []byte
}

func NewReader(r io.Reader, limits Limits) *Reader {
	return &Reader{
		r:      r,
		limits: limits,
		buf:    make([]byte, 0, protocol.ConfigMsgSize),
	}
}

// ReadMessage blocks until one full message has arrived. It returns io.EOF
// only when the stream ends cleanly on a message boundary.
func (r *Reader) ReadMessage() (protocol.Message, error) {
	buf := r.buf[:0]
	for {
		msg, _, err := protocol.DecodeMessage(buf)
		if err == nil {
			r.buf = buf
			return msg, nil
		}
		missing, ok := protocol.MissingBytes(err)
		if !ok {
			return nil, err
		}
		if len(buf) == protocol.DataHeaderSize && protocol.Tag(buf[0]) == protocol.TagData {
			count, err := protocol.DataPeakCount(buf)
			if err != nil {
				return nil, err
			}
			if count > r.limits.MaxPeaks {
				return nil, fmt.Errorf("%w: %d > %d", ErrTooManyPeaks, count, r.limits.MaxPeaks)
			}
		}

		start := len(buf)
		buf = append(buf, make([]byte, missing)...)
		if _, err := io.ReadFull(r.r, buf[start:]); err != nil {
			if start == 0 && errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return nil, ErrShortMessage
			}
			return nil, err
		}
	}
}

// WriteMessage encodes m onto w in a single write.
func WriteMessage(w io.Writer, m protocol.Message, limits Limits) error {
	if data, ok := m.(protocol.DataMessage); ok && uint64(len(data.Peaks)) > limits.MaxPeaks {
		return fmt.Errorf("%w: %d > %d", ErrTooManyPeaks, len(data.Peaks), limits.MaxPeaks)
	}
	_, err := w.Write(protocol.EncodeMessage(m))
	return err
}
