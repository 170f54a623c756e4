package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/orchestra-mcp/relay/src/hub"
	"github.com/orchestra-mcp/relay/src/relay"
	"github.com/orchestra-mcp/relay/src/store"
	"github.com/orchestra-mcp/relay/src/types"
	"github.com/rs/zerolog"
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrUserOffline    = errors.New("user not connected or buffer full")
)

// Service is the API the HTTP layer uses to reach the relay.
type Service struct {
	hub          *hub.Hub
	relay        *relay.Handler
	store        store.MessageStore
	historyLimit int
	logger       zerolog.Logger
}

// New creates a new relay service.
func New(h *hub.Hub, r *relay.Handler, s store.MessageStore, historyLimit int, logger zerolog.Logger) *Service {
	return &Service{
		hub:          h,
		relay:        r,
		store:        s,
		historyLimit: historyLimit,
		logger:       logger.With().Str("component", "service").Logger(),
	}
}

// Hub returns the underlying hub.
func (s *Service) Hub() *hub.Hub { return s.hub }

// Scope returns the fan-out scope of the relay.
func (s *Service) Scope() relay.Scope { return s.relay.Scope() }

// History returns recent messages of a channel, newest first. A non-positive
// limit uses the configured default.
func (s *Service) History(ctx context.Context, channelID string, limit int) ([]types.ChatMessage, error) {
	if limit <= 0 {
		limit = s.historyLimit
	}
	msgs, err := s.store.Recent(ctx, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("history for %s: %w", channelID, err)
	}
	return msgs, nil
}

// PostMessage persists a message and relays it as if sent over a socket.
func (s *Service) PostMessage(ctx context.Context, msg store.NewMessage) (*types.ChatMessage, error) {
	return s.relay.SendMessage(ctx, msg)
}

// StartCall signals a call to connected clients.
func (s *Service) StartCall(call types.CallSession) (types.CallSession, error) {
	return s.relay.StartCall(call)
}

// SendToUser encodes frame and queues it for the user's latest connection.
func (s *Service) SendToUser(userID string, frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if !s.hub.SendToUser(userID, data) {
		return fmt.Errorf("%w: %s", ErrUserOffline, userID)
	}
	s.logger.Debug().Str("user_id", userID).Msg("direct frame queued")
	return nil
}

// GetConnectedUsers returns ids of users with a registered connection.
func (s *Service) GetConnectedUsers() []string {
	return s.hub.ConnectedUsers()
}

// GetConnectedClients returns info for every open connection, joined or not.
func (s *Service) GetConnectedClients() []types.ClientInfo {
	ids := s.hub.ConnectedClients()
	infos := make([]types.ClientInfo, 0, len(ids))
	for _, id := range ids {
		if info := s.hub.ClientInfo(id); info != nil {
			infos = append(infos, *info)
		}
	}
	return infos
}

// GetChannels returns channels with subscriber counts (channel scope only).
func (s *Service) GetChannels() map[string]int {
	return s.hub.Channels()
}

// ClientCount returns the number of open connections.
func (s *Service) ClientCount() int {
	return s.hub.ClientCount()
}

// GetUserClient returns info for the connection the user most recently joined
// with.
func (s *Service) GetUserClient(userID string) (*types.ClientInfo, error) {
	c, ok := s.hub.UserClient(userID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserOffline, userID)
	}
	info := c.Info()
	return &info, nil
}

// GetClientInfo returns info for a connected client, or error.
func (s *Service) GetClientInfo(clientID string) (*types.ClientInfo, error) {
	info := s.hub.ClientInfo(clientID)
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrClientNotFound, clientID)
	}
	return info, nil
}
