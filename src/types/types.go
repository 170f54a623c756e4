package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// MessageType is the kind of a chat message.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageFile  MessageType = "file"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
	MessageCall  MessageType = "call"
)

// Valid reports whether t is a known message kind.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageFile, MessageImage, MessageVideo, MessageCall:
		return true
	}
	return false
}

// HasAttachment reports whether messages of this kind carry file metadata.
func (t MessageType) HasAttachment() bool {
	return t == MessageFile || t == MessageImage || t == MessageVideo
}

// CallType is the media kind of a call session.
type CallType string

const (
	CallVideo CallType = "video"
	CallAudio CallType = "audio"
)

func (t CallType) Valid() bool { return t == CallVideo || t == CallAudio }

// ChannelKind is the visibility of a chat channel.
type ChannelKind string

const (
	ChannelPublic  ChannelKind = "public"
	ChannelPrivate ChannelKind = "private"
	ChannelDirect  ChannelKind = "direct"
)

func (k ChannelKind) Valid() bool {
	return k == ChannelPublic || k == ChannelPrivate || k == ChannelDirect
}

// ID is an identifier that decodes from either a JSON string or a JSON number.
// Clients of the relay send user and channel ids in both forms.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// ChatChannel is a named destination for messages. Channels are created by the
// surrounding application; the relay only routes messages tagged with their id.
type ChatChannel struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	DisplayName string      `json:"displayName"`
	Description string      `json:"description,omitempty"`
	Kind        ChannelKind `json:"kind"`
	CreatedBy   string      `json:"createdBy"`
	IsArchived  bool        `json:"isArchived"`
	MemberCount int         `json:"memberCount"`
}

// ChatMessage is a persisted chat message.
type ChatMessage struct {
	ID          string      `json:"id"`
	ChannelID   string      `json:"channelId"`
	UserID      string      `json:"userId"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"messageType"`
	FileURL     string      `json:"fileUrl,omitempty"`
	FileName    string      `json:"fileName,omitempty"`
	FileSize    int64       `json:"fileSize,omitempty"`
	ReplyTo     string      `json:"replyTo,omitempty"`
	IsEdited    bool        `json:"isEdited"`
	IsDeleted   bool        `json:"isDeleted"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// CallSession describes a call being signalled. It is never persisted.
type CallSession struct {
	ID        string   `json:"callId"`
	Type      CallType `json:"callType"`
	Initiator string   `json:"initiator"`
	ChannelID string   `json:"channelId"`
}

// ClientInfo holds metadata about a connected WebSocket client.
type ClientInfo struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
	Channels    []string  `json:"channels"`
	Open        bool      `json:"open"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	Close() error
}

// Pinger is implemented by transports that support keepalive pings.
type Pinger interface {
	Ping() error
}
