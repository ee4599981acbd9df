// Package wire holds the big-endian primitive field codec shared by every
// record on the instrument link.
package wire

import "encoding/binary"

// Encoded widths of the primitive fields.
const (
	U8Len  = 1
	U16Len = 2
	U32Len = 4
	U64Len = 8
)

func AppendU16(dst []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(dst, v)
}

func AppendU32(dst []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(dst, v)
}

func AppendU64(dst []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(dst, v)
}

// Cursor reads big-endian fields from the front of a buffer. Callers check
// the total record length before reading, so reads past the end panic.
type Cursor struct {
	buf []byte
	off int
}

func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

func (c *Cursor) U8() uint8 {
	v := c.buf[c.off]
	c.off += U8Len
	return v
}

func (c *Cursor) U16() uint16 {
	v := binary.BigEndian.Uint16(c.buf[c.off : c.off+U16Len])
	c.off += U16Len
	return v
}

func (c *Cursor) U32() uint32 {
	v := binary.BigEndian.Uint32(c.buf[c.off : c.off+U32Len])
	c.off += U32Len
	return v
}

func (c *Cursor) U64() uint64 {
	v := binary.BigEndian.Uint64(c.buf[c.off : c.off+U64Len])
	c.off += U64Len
	return v
}

// Offset reports how many bytes have been consumed.
func (c *Cursor) Offset() int {
	return c.off
}

// Remaining reports how many unread bytes are left.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.off
}
