package store

import (
	"context"
	"sync"
	"time"

	"github.com/orchestra-mcp/relay/src/types"
)

// Memory keeps messages in process memory. History is lost on restart.
type Memory struct {
	mu       sync.RWMutex
	channels map[string][]types.ChatMessage
	now      func() time.Time
}

var _ MessageStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		channels: make(map[string][]types.ChatMessage),
		now:      time.Now,
	}
}

func (m *Memory) Append(_ context.Context, msg NewMessage) (*types.ChatMessage, error) {
	rec, err := Prepare(msg, m.now())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.channels[rec.ChannelID] = append(m.channels[rec.ChannelID], rec)
	m.mu.Unlock()

	return &rec, nil
}

func (m *Memory) Recent(_ context.Context, channelID string, limit int) ([]types.ChatMessage, error) {
	limit = ClampLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.channels[channelID]
	n := min(limit, len(msgs))
	out := make([]types.ChatMessage, 0, n)
	for i := len(msgs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

// Count returns the number of messages stored for a channel.
func (m *Memory) Count(channelID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels[channelID])
}

func (m *Memory) Close() error { return nil }
