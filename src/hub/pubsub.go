package hub

import "errors"

// Broadcast queues an encoded frame for every open client that has joined as a
// user. It returns the number of clients the frame was queued for.
func (h *Hub) Broadcast(data []byte) int {
	h.mu.RLock()
	// Copy targets to avoid holding the lock during sends.
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.UserID() != "" {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	return h.deliver(targets, data)
}

// BroadcastToChannel queues an encoded frame for every open subscriber of channel.
func (h *Hub) BroadcastToChannel(channel string, data []byte) int {
	h.mu.RLock()
	subs, ok := h.channels[channel]
	if !ok {
		h.mu.RUnlock()
		return 0
	}
	targets := make([]*Client, 0, len(subs))
	for id := range subs {
		if c, exists := h.clients[id]; exists {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	return h.deliver(targets, data)
}

// deliver skips closed clients silently and warns on a full buffer.
func (h *Hub) deliver(targets []*Client, data []byte) int {
	delivered := 0
	for _, c := range targets {
		switch err := c.enqueue(data); {
		case err == nil:
			delivered++
		case errors.Is(err, ErrBufferFull):
			h.logger.Warn().Str("client_id", c.ID).Msg("send buffer full, dropping")
		}
	}
	return delivered
}

// SendTo queues an encoded frame for a single client.
func (h *Hub) SendTo(c *Client, data []byte) bool {
	return c.enqueue(data) == nil
}

// SendToUser queues an encoded frame for the client the user most recently
// joined with.
func (h *Hub) SendToUser(userID string, data []byte) bool {
	h.mu.RLock()
	id, ok := h.users[userID]
	var client *Client
	if ok {
		client = h.clients[id]
	}
	h.mu.RUnlock()
	if client == nil {
		return false
	}
	return client.enqueue(data) == nil
}

// Join subscribes a client to a channel.
func (h *Hub) Join(channel string, c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return false
	}
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[string]bool)
	}
	h.channels[channel][c.ID] = true
	c.addChannel(channel)
	return true
}

// Leave removes a client from a channel.
func (h *Hub) Leave(channel string, c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.channels[channel]
	if !ok || !subs[c.ID] {
		return false
	}
	delete(subs, c.ID)
	if len(subs) == 0 {
		delete(h.channels, channel)
	}
	c.removeChannel(channel)
	return true
}
