// Package link carries protocol messages between a host and a peak-detection
// instrument over TCP or a serial line.
package link

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/danmuck/peaklink/internal/observability"
	"github.com/danmuck/peaklink/internal/protocol"
	"github.com/danmuck/peaklink/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

var ErrClosed = errors.New("link: connection closed")

// Conn is one open instrument link. Sends are serialized; receiving is
// expected from a single goroutine.
type Conn struct {
	name   string
	rwc    io.ReadWriteCloser
	reader *frame.Reader
	limits frame.Limits

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// NewConn wraps an already open byte stream.
func NewConn(name string, rwc io.ReadWriteCloser, limits frame.Limits) *Conn {
	return &Conn{
		name:   name,
		rwc:    rwc,
		reader: frame.NewReader(rwc, limits),
		limits: limits,
		closed: make(chan struct{}),
	}
}

func (c *Conn) Name() string {
	return c.name
}

// Send writes one message.
func (c *Conn) Send(m protocol.Message) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := frame.WriteMessage(c.rwc, m, c.limits); err != nil {
		return err
	}
	observability.RecordMessage(c.name, observability.DirectionTx, m)
	log.Debug().Str("link", c.name).Stringer("tag", m.Tag()).Int("bytes", m.EncodedLen()).Msg("sent")
	return nil
}

func (c *Conn) SendConfig(cfg protocol.FilterConfig) error {
	return c.Send(protocol.ConfigMessage{Config: cfg})
}

func (c *Conn) Start() error {
	return c.Send(protocol.StatusMessage{Status: protocol.StatusStart})
}

func (c *Conn) Stop() error {
	return c.Send(protocol.StatusMessage{Status: protocol.StatusStop})
}

// Receive blocks for the next message.
func (c *Conn) Receive() (protocol.Message, error) {
	m, err := c.reader.ReadMessage()
	if err != nil {
		select {
		case <-c.closed:
			return nil, ErrClosed
		default:
		}
		if !errors.Is(err, io.EOF) {
			observability.RecordDecodeError(c.name, err)
		}
		return nil, err
	}
	observability.RecordMessage(c.name, observability.DirectionRx, m)
	return m, nil
}

// Run hands every received message to fn until ctx is cancelled, the peer
// closes the stream, or fn returns an error. Cancelling ctx closes the link.
func (c *Conn) Run(ctx context.Context, fn func(protocol.Message) error) error {
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	for {
		m, err := c.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
	}
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.rwc.Close()
		log.Debug().Str("link", c.name).Msg("closed")
	})
	return err
}
