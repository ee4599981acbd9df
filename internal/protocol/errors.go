package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrBufferTooShort      = errors.New("protocol: buffer too short")
	ErrInvalidDiscriminant = errors.New("protocol: invalid discriminant")
	ErrInvalidRawLength    = errors.New("protocol: invalid raw peak length")
	ErrInvalidLength       = errors.New("protocol: invalid length")
)

// ShortBufferError reports how many more bytes a decode needs before it can
// succeed. It matches ErrBufferTooShort under errors.Is.
type ShortBufferError struct {
	Missing int
}

func (e *ShortBufferError) Error() string {
	return fmt.Sprintf("protocol: buffer too short: missing %d bytes", e.Missing)
}

func (e *ShortBufferError) Is(target error) bool {
	return target == ErrBufferTooShort
}

func shortBuffer(required, have int) error {
	return &ShortBufferError{Missing: required - have}
}

func invalidDiscriminant(kind string, v byte) error {
	return fmt.Errorf("%w: %s 0x%02x", ErrInvalidDiscriminant, kind, v)
}

// MissingBytes returns the byte deficit carried by err, if any.
func MissingBytes(err error) (int, bool) {
	var short *ShortBufferError
	if errors.As(err, &short) {
		return short.Missing, true
	}
	return 0, false
}

// IsRetryable reports whether err only means more input is needed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBufferTooShort)
}
