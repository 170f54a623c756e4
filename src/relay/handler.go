// Package relay implements the chat relay protocol: it decodes client frames,
// updates the connection registry, persists messages and fans out events.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/orchestra-mcp/relay/src/hub"
	"github.com/orchestra-mcp/relay/src/store"
	"github.com/orchestra-mcp/relay/src/types"
	"github.com/rs/zerolog"
)

// Scope selects which connections receive fan-out frames.
type Scope string

const (
	// ScopeGlobal delivers every frame to all registered connections,
	// regardless of the channel it is tagged with.
	ScopeGlobal Scope = "global"
	// ScopeChannel delivers a frame only to connections that joined its channel.
	ScopeChannel Scope = "channel"
)

func (s Scope) Valid() bool { return s == ScopeGlobal || s == ScopeChannel }

// ErrMalformedFrame is returned for frames that cannot be decoded or dispatched.
var ErrMalformedFrame = errors.New("malformed frame")

// Handler dispatches inbound frames for every connection of a hub.
type Handler struct {
	hub    *hub.Hub
	store  store.MessageStore
	logger zerolog.Logger
	scope  Scope
	acks   bool
}

var _ hub.FrameHandler = (*Handler)(nil)

// Option configures a Handler.
type Option func(*Handler)

// WithScope sets the fan-out scope. The default is ScopeGlobal.
func WithScope(s Scope) Option {
	return func(h *Handler) {
		if s.Valid() {
			h.scope = s
		}
	}
}

// WithAcks makes the handler answer each frame with an ack or error frame.
func WithAcks(enabled bool) Option {
	return func(h *Handler) { h.acks = enabled }
}

// New creates a protocol handler over h and s.
func New(h *hub.Hub, s store.MessageStore, logger zerolog.Logger, opts ...Option) *Handler {
	r := &Handler{
		hub:    h,
		store:  s,
		logger: logger.With().Str("component", "relay").Logger(),
		scope:  ScopeGlobal,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scope returns the configured fan-out scope.
func (r *Handler) Scope() Scope { return r.scope }

// HandleFrame decodes and applies one frame. Failures are logged and the frame
// is dropped; the connection stays open.
func (r *Handler) HandleFrame(ctx context.Context, c *hub.Client, data []byte) {
	var frame types.InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		r.reject(c, frame, fmt.Errorf("%w: %w", ErrMalformedFrame, err))
		return
	}

	var err error
	switch frame.Type {
	case types.FrameJoinChannel:
		err = r.handleJoin(c, frame)
	case types.FrameLeaveChannel:
		err = r.handleLeave(c, frame)
	case types.FrameSendMessage:
		err = r.handleSendMessage(ctx, c, frame)
	case types.FrameStartCall:
		err = r.handleStartCall(c, frame)
	case "":
		err = fmt.Errorf("%w: missing type", ErrMalformedFrame)
	default:
		err = fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, frame.Type)
	}
	if err != nil {
		r.reject(c, frame, err)
	}
}

func (r *Handler) handleJoin(c *hub.Client, f types.InboundFrame) error {
	if f.UserID == "" {
		return fmt.Errorf("%w: join_channel requires userId", ErrMalformedFrame)
	}
	r.hub.Register(f.UserID.String(), c)
	if r.scope == ScopeChannel && f.ChannelID != "" {
		r.hub.Join(f.ChannelID.String(), c)
	}
	r.ack(c, types.AckFrame{For: f.Type, Ref: f.Ref})
	return nil
}

func (r *Handler) handleLeave(c *hub.Client, f types.InboundFrame) error {
	if f.ChannelID == "" {
		return fmt.Errorf("%w: leave_channel requires channelId", ErrMalformedFrame)
	}
	r.hub.Leave(f.ChannelID.String(), c)
	r.ack(c, types.AckFrame{For: f.Type, Ref: f.Ref})
	return nil
}

func (r *Handler) handleSendMessage(ctx context.Context, c *hub.Client, f types.InboundFrame) error {
	userID := f.UserID.String()
	if userID == "" {
		userID = c.UserID()
	}
	msg, err := r.SendMessage(ctx, store.NewMessage{
		ChannelID:   f.ChannelID.String(),
		UserID:      userID,
		Content:     f.Content,
		MessageType: f.MessageType,
		FileURL:     f.FileURL,
		FileName:    f.FileName,
		FileSize:    f.FileSize,
		ReplyTo:     f.ReplyTo.String(),
	})
	if err != nil {
		return err
	}
	r.ack(c, types.AckFrame{For: f.Type, Ref: f.Ref, MessageID: msg.ID})
	return nil
}

// SendMessage persists msg and fans out a new_message frame. Nothing is sent
// when persistence fails.
func (r *Handler) SendMessage(ctx context.Context, msg store.NewMessage) (*types.ChatMessage, error) {
	saved, err := r.store.Append(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	n, err := r.fanOut(saved.ChannelID, types.NewMessageEvent(*saved))
	if err != nil {
		return saved, err
	}
	r.logger.Debug().
		Str("message_id", saved.ID).
		Str("channel_id", saved.ChannelID).
		Str("user_id", saved.UserID).
		Int("recipients", n).
		Msg("message relayed")
	return saved, nil
}

// fanOut encodes frame once and queues it for the recipients selected by scope.
func (r *Handler) fanOut(channelID string, frame any) (int, error) {
	data, err := json.Marshal(frame)
	if err != nil {
		return 0, fmt.Errorf("encode frame: %w", err)
	}
	if r.scope == ScopeChannel {
		return r.hub.BroadcastToChannel(channelID, data), nil
	}
	return r.hub.Broadcast(data), nil
}

func (r *Handler) reject(c *hub.Client, f types.InboundFrame, err error) {
	r.logger.Warn().
		Err(err).
		Str("client_id", c.ID).
		Str("frame_type", string(f.Type)).
		Msg("frame dropped")

	if !r.acks {
		return
	}
	r.send(c, types.ErrorFrame{Type: types.FrameError, For: f.Type, Ref: f.Ref, Error: err.Error()})
}

func (r *Handler) ack(c *hub.Client, a types.AckFrame) {
	if !r.acks {
		return
	}
	a.Type = types.FrameAck
	r.send(c, a)
}

func (r *Handler) send(c *hub.Client, frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		r.logger.Error().Err(err).Msg("encode reply frame")
		return
	}
	if !r.hub.SendTo(c, data) {
		r.logger.Debug().Str("client_id", c.ID).Msg("reply frame not queued")
	}
}
