// Package protocol owns the instrument wire contract.
//
// Ownership boundary:
// - sensor-native 12-byte peak unpacking
// - canonical peak, filter config and status records
// - tagged message envelope and its partial-input rules
//
// Every decode returns the number of bytes consumed. A *ShortBufferError
// means the caller should read the reported number of extra bytes and retry
// from the same offset; ErrInvalidDiscriminant means the stream is out of
// sync. Nothing in this package performs I/O or holds state between calls.
package protocol
