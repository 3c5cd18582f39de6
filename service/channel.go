// Package service exchanges property-list documents with a peer over a
// duplex byte channel, the way device property-list services do.
package service

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// DefaultMaxFrameSize is the largest frame a StreamChannel accepts unless
// configured otherwise.
const DefaultMaxFrameSize = 16 * 1024 * 1024

const frameHeaderLength = 4

// ErrFrameTooLarge is returned when a frame exceeds the channel's maximum
// size, in either direction.
var ErrFrameTooLarge = errors.New("plist: frame exceeds maximum size")

// Channel is a duplex byte channel carrying whole messages.
type Channel interface {
	Send(ctx context.Context, b []byte) error
	Receive(ctx context.Context) ([]byte, error)
}

// StreamChannel frames messages onto a stream connection. Each message is
// preceded by its length as a big-endian uint32.
//
// Send and Receive may be called concurrently with each other, but not
// with themselves.
type StreamChannel struct {
	conn     net.Conn
	maxFrame uint32

	wmu sync.Mutex
	rmu sync.Mutex
}

// ChannelOption configures a StreamChannel.
type ChannelOption func(*StreamChannel) error

// MaxFrameSize returns a ChannelOption that limits the size of a single
// message. The size n must be a positive integer.
func MaxFrameSize(n int) ChannelOption {
	return func(c *StreamChannel) error {
		if n <= 0 || uint64(n) > 1<<32-1 {
			return fmt.Errorf("plist: invalid max frame size %d", n)
		}
		c.maxFrame = uint32(n)
		return nil
	}
}

// NewStreamChannel returns a channel framing messages onto conn.
func NewStreamChannel(conn net.Conn, opts ...ChannelOption) (*StreamChannel, error) {
	if conn == nil {
		return nil, fmt.Errorf("plist: NewStreamChannel(nil conn)")
	}
	c := &StreamChannel{conn: conn, maxFrame: DefaultMaxFrameSize}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Send writes b as one frame. The context deadline, if any, bounds the
// write.
func (c *StreamChannel) Send(ctx context.Context, b []byte) error {
	if uint64(len(b)) > uint64(c.maxFrame) {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(b), c.maxFrame)
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()

	stop, err := c.watch(ctx, c.conn.SetWriteDeadline)
	if err != nil {
		return err
	}
	defer stop()

	frame := make([]byte, frameHeaderLength+len(b))
	binary.BigEndian.PutUint32(frame, uint32(len(b)))
	copy(frame[frameHeaderLength:], b)
	if _, err := c.conn.Write(frame); err != nil {
		return ctxErr(ctx, fmt.Errorf("write frame: %w", err))
	}
	return nil
}

// Receive reads one frame. The context deadline, if any, bounds the read.
func (c *StreamChannel) Receive(ctx context.Context) ([]byte, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	stop, err := c.watch(ctx, c.conn.SetReadDeadline)
	if err != nil {
		return nil, err
	}
	defer stop()

	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(c.conn, header[:]); err != nil {
		return nil, ctxErr(ctx, fmt.Errorf("read frame header: %w", err))
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > c.maxFrame {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, size, c.maxFrame)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return nil, ctxErr(ctx, fmt.Errorf("read frame payload: %w", err))
	}
	return payload, nil
}

// Close closes the underlying connection.
func (c *StreamChannel) Close() error {
	return c.conn.Close()
}

// watch applies the context deadline to the connection and interrupts
// blocked I/O when the context is cancelled. The returned function clears
// the deadline again.
func (c *StreamChannel) watch(ctx context.Context, setDeadline func(time.Time) error) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	deadline, _ := ctx.Deadline()
	if err := setDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		select {
		case <-ctx.Done():
			// A deadline in the past unblocks the pending call.
			_ = setDeadline(time.Unix(1, 0))
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-finished
		_ = setDeadline(time.Time{})
	}, nil
}

// ctxErr prefers the context's error when it caused err. A connection
// deadline can fire just before the context's own timer does.
func ctxErr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%w: %w", cerr, err)
	}
	if deadline, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) && !time.Now().Before(deadline) {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}
