// Package store persists chat messages for the relay.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hay-kot/criterio"
	"github.com/orchestra-mcp/relay/src/types"
)

const (
	// DefaultRecentLimit bounds Recent when no limit is given.
	DefaultRecentLimit = 50
	// MaxRecentLimit is the largest page Recent returns.
	MaxRecentLimit = 200
)

// ErrInvalidMessage wraps validation failures of a NewMessage.
var ErrInvalidMessage = errors.New("invalid message")

// MessageStore is append-only chat message persistence. Implementations are
// safe for concurrent use.
type MessageStore interface {
	// Append persists a message, assigning its id and timestamps.
	Append(ctx context.Context, msg NewMessage) (*types.ChatMessage, error)
	// Recent returns up to limit messages of a channel, newest first.
	Recent(ctx context.Context, channelID string, limit int) ([]types.ChatMessage, error)
	Close() error
}

// NewMessage is the input to Append.
type NewMessage struct {
	ChannelID   string
	UserID      string
	Content     string
	MessageType types.MessageType
	FileURL     string
	FileName    string
	FileSize    int64
	ReplyTo     string
}

// Validate checks required fields. An empty MessageType is accepted and
// defaults to text in Prepare.
func (m NewMessage) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if m.ChannelID == "" {
		errs = errs.Append("channelId", errors.New("is required"))
	}
	if m.UserID == "" {
		errs = errs.Append("userId", errors.New("is required"))
	}

	kind := m.MessageType
	if kind == "" {
		kind = types.MessageText
	}
	switch {
	case !kind.Valid():
		errs = errs.Append("messageType", fmt.Errorf("unknown message type %q", m.MessageType))
	case kind == types.MessageText && m.Content == "":
		errs = errs.Append("content", errors.New("is required for text messages"))
	case kind.HasAttachment() && m.FileURL == "" && m.Content == "":
		errs = errs.Append("fileUrl", fmt.Errorf("is required for %s messages without content", kind))
	}
	if m.FileSize < 0 {
		errs = errs.Append("fileSize", errors.New("must not be negative"))
	}

	return errs.ToError()
}

// Prepare validates m and builds the record to persist: a fresh id, the
// default message type and both timestamps set to now.
func Prepare(m NewMessage, now time.Time) (types.ChatMessage, error) {
	if err := m.Validate(); err != nil {
		return types.ChatMessage{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	kind := m.MessageType
	if kind == "" {
		kind = types.MessageText
	}
	now = now.UTC()
	return types.ChatMessage{
		ID:          uuid.New().String(),
		ChannelID:   m.ChannelID,
		UserID:      m.UserID,
		Content:     m.Content,
		MessageType: kind,
		FileURL:     m.FileURL,
		FileName:    m.FileName,
		FileSize:    m.FileSize,
		ReplyTo:     m.ReplyTo,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ClampLimit applies the default and maximum page sizes.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		return MaxRecentLimit
	}
	return limit
}
