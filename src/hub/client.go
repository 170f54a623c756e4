package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/orchestra-mcp/relay/src/types"
)

var (
	// ErrClientClosed is returned when queueing to a closed client.
	ErrClientClosed = errors.New("client closed")
	// ErrBufferFull is returned when a client's send buffer has no room.
	ErrBufferFull = errors.New("send buffer full")
)

// FrameHandler processes one inbound frame read from a client.
type FrameHandler interface {
	HandleFrame(ctx context.Context, c *Client, data []byte)
}

// FrameHandlerFunc adapts a function to FrameHandler.
type FrameHandlerFunc func(ctx context.Context, c *Client, data []byte)

func (f FrameHandlerFunc) HandleFrame(ctx context.Context, c *Client, data []byte) {
	f(ctx, c, data)
}

// Client wraps a WebSocket connection and manages message flow.
type Client struct {
	ID          string
	conn        types.Conn
	hub         *Hub
	Send        chan []byte
	connectedAt time.Time
	userID      string
	channels    map[string]bool
	mu          sync.RWMutex
	done        chan struct{}
	closed      bool
}

// NewClient creates a new WebSocket client wrapper.
func NewClient(id string, conn types.Conn, h *Hub) *Client {
	return &Client{
		ID:          id,
		conn:        conn,
		hub:         h,
		Send:        make(chan []byte, h.sendBuffer),
		connectedAt: time.Now(),
		channels:    make(map[string]bool),
		done:        make(chan struct{}),
	}
}

// Info returns metadata about this client.
func (c *Client) Info() types.ClientInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	return types.ClientInfo{
		ID:          c.ID,
		UserID:      c.userID,
		ConnectedAt: c.connectedAt,
		Channels:    channels,
		Open:        !c.closed,
	}
}

// UserID returns the user bound by the last join, or "" before any join.
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// IsOpen reports whether the client can still accept frames.
func (c *Client) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

func (c *Client) setUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
}

func (c *Client) addChannel(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[channel] = true
}

func (c *Client) removeChannel(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, channel)
}

func (c *Client) channelList() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	return out
}

// enqueue queues an encoded frame without blocking.
func (c *Client) enqueue(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// ReadPump reads frames from the WebSocket and hands each one to the handler.
// A frame is fully handled before the next one is read. When the transport
// closes the client is unregistered exactly once.
func (c *Client) ReadPump(ctx context.Context, handler FrameHandler) {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
		c.conn.Close()
	}()

	for {
		data, err := c.conn.ReadFrame()
		if err != nil {
			c.hub.logger.Debug().Err(err).Str("client_id", c.ID).Msg("read loop ended")
			return
		}
		handler.HandleFrame(ctx, c, data)
	}
}

// WritePump writes queued frames to the WebSocket. When pingInterval is positive
// and the transport supports it, a keepalive ping is sent on that interval.
func (c *Client) WritePump(pingInterval time.Duration) {
	defer c.conn.Close()

	var tick <-chan time.Time
	pinger, canPing := c.conn.(types.Pinger)
	if canPing && pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case data, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.conn.WriteFrame(data); err != nil {
				c.hub.logger.Debug().Err(err).Str("client_id", c.ID).Msg("write failed")
				return
			}
		case <-tick:
			if err := pinger.Ping(); err != nil {
				c.hub.logger.Debug().Err(err).Str("client_id", c.ID).Msg("ping failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close signals the client to stop its pumps.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
		close(c.Send)
	}
}
