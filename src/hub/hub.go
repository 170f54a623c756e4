package hub

import (
	"sync"

	"github.com/rs/zerolog"
)

// DefaultSendBuffer is the per-client outbound queue length.
const DefaultSendBuffer = 256

// Hub is the connection registry. It tracks every connected client, the user
// each one joined as, and channel subscriptions.
type Hub struct {
	clients  map[string]*Client         // clientID -> client
	users    map[string]string          // userID -> clientID of the latest join
	channels map[string]map[string]bool // channel -> set of clientIDs

	onRegister   []func(userID string)
	onUnregister []func(userID string)

	sendBuffer int
	stopped    bool
	mu         sync.RWMutex
	logger     zerolog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithSendBuffer sets the outbound queue length of clients created for this hub.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// New creates a new Hub instance.
func New(logger zerolog.Logger, opts ...Option) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		users:      make(map[string]string),
		channels:   make(map[string]map[string]bool),
		sendBuffer: DefaultSendBuffer,
		logger:     logger.With().Str("component", "hub").Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Connect tracks a client whose transport is open but which has not joined yet.
// It returns false once the hub has been stopped.
func (h *Hub) Connect(c *Client) bool {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		c.Close()
		return false
	}
	h.clients[c.ID] = c
	h.mu.Unlock()

	h.logger.Debug().Str("client_id", c.ID).Msg("client connected")
	return true
}

// Register binds userID to the client. A later registration for the same user
// replaces the user index entry but leaves the earlier client registered: it
// keeps receiving broadcasts until its own transport closes. Registering a
// client under a different user moves it.
func (h *Hub) Register(userID string, c *Client) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.clients[c.ID] = c
	if prev := c.UserID(); prev != "" && prev != userID && h.users[prev] == c.ID {
		delete(h.users, prev)
	}
	h.users[userID] = c.ID
	c.setUser(userID)
	callbacks := h.onRegister
	h.mu.Unlock()

	h.logger.Info().Str("client_id", c.ID).Str("user_id", userID).Msg("client registered")

	for _, cb := range callbacks {
		cb(userID)
	}
}

// Unregister removes the client and all of its subscriptions and closes it.
// Unknown or already removed clients are ignored.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)

	userID := c.UserID()
	if userID != "" && h.users[userID] == c.ID {
		delete(h.users, userID)
	}
	for _, ch := range c.channelList() {
		if subs, ok := h.channels[ch]; ok {
			delete(subs, c.ID)
			if len(subs) == 0 {
				delete(h.channels, ch)
			}
		}
	}
	callbacks := h.onUnregister
	h.mu.Unlock()

	c.Close()
	h.logger.Info().Str("client_id", c.ID).Str("user_id", userID).Msg("client unregistered")

	if userID == "" {
		return
	}
	for _, cb := range callbacks {
		cb(userID)
	}
}

// Stop closes every client and rejects further connections.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.users = make(map[string]string)
	h.channels = make(map[string]map[string]bool)
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	h.logger.Info().Int("clients", len(clients)).Msg("hub stopped")
}
