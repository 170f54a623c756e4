package hub

import (
	"sort"

	"github.com/orchestra-mcp/relay/src/types"
)

// OnRegister registers a callback invoked after a user joins.
func (h *Hub) OnRegister(cb func(userID string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRegister = append(h.onRegister, cb)
}

// OnUnregister registers a callback invoked after a joined client disconnects.
func (h *Hub) OnUnregister(cb func(userID string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onUnregister = append(h.onUnregister, cb)
}

// ConnectedUsers returns the ids of users with a registered client, sorted.
func (h *Hub) ConnectedUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.users))
	for id := range h.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ConnectedClients returns a list of connected client IDs.
func (h *Hub) ConnectedClients() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// UserClient returns the client the user most recently joined with.
func (h *Hub) UserClient(userID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.users[userID]
	if !ok {
		return nil, false
	}
	c, ok := h.clients[id]
	return c, ok
}

// ClientInfo returns info for a connected client, or nil.
func (h *Hub) ClientInfo(clientID string) *types.ClientInfo {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	info := client.Info()
	return &info
}

// Channels returns channel names with their subscriber counts.
func (h *Hub) Channels() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make(map[string]int, len(h.channels))
	for ch, subs := range h.channels {
		result[ch] = len(subs)
	}
	return result
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
