// Package hubtest provides an in-memory transport for exercising hub clients
// without a real WebSocket.
package hubtest

import (
	"errors"
	"sync"
)

// ErrClosed is returned by reads and writes after Close.
var ErrClosed = errors.New("connection closed")

// Conn implements types.Conn over channels.
type Conn struct {
	mu       sync.Mutex
	written  [][]byte
	readCh   chan []byte
	writeErr error
	closed   bool
	closedCh chan struct{}
	writes   chan struct{}
}

func NewConn() *Conn {
	return &Conn{
		readCh:   make(chan []byte, 16),
		closedCh: make(chan struct{}),
		writes:   make(chan struct{}, 256),
	}
}

// Push queues a frame to be returned by the next ReadFrame.
func (c *Conn) Push(frame []byte) {
	c.readCh <- frame
}

// PushString is Push for string literals.
func (c *Conn) PushString(frame string) {
	c.Push([]byte(frame))
}

// FailWrites makes every later WriteFrame return err.
func (c *Conn) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

func (c *Conn) ReadFrame() ([]byte, error) {
	select {
	case frame := <-c.readCh:
		return frame, nil
	case <-c.closedCh:
		return nil, ErrClosed
	}
}

func (c *Conn) WriteFrame(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.written = append(c.written, cp)
	select {
	case c.writes <- struct{}{}:
	default:
	}
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closedCh)
	}
	return nil
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Done is closed once Close has been called.
func (c *Conn) Done() <-chan struct{} {
	return c.closedCh
}

// Written returns a copy of every frame written so far.
func (c *Conn) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([][]byte, len(c.written))
	copy(cp, c.written)
	return cp
}

// Writes is signalled after each successful write.
func (c *Conn) Writes() <-chan struct{} {
	return c.writes
}
