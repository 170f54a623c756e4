package types

// FrameType is the `type` discriminator carried by every frame.
type FrameType string

// Inbound frame types.
const (
	FrameJoinChannel  FrameType = "join_channel"
	FrameLeaveChannel FrameType = "leave_channel"
	FrameSendMessage  FrameType = "send_message"
	FrameStartCall    FrameType = "start_call"
)

// Outbound frame types.
const (
	FrameNewMessage  FrameType = "new_message"
	FrameCallStarted FrameType = "call_started"
	FrameAck         FrameType = "ack"
	FrameError       FrameType = "error"
)

// InboundFrame is the flat union of every field a client frame may carry.
// Which fields are meaningful depends on Type.
type InboundFrame struct {
	Type        FrameType   `json:"type"`
	Ref         string      `json:"ref,omitempty"`
	UserID      ID          `json:"userId,omitempty"`
	ChannelID   ID          `json:"channelId,omitempty"`
	Content     string      `json:"content,omitempty"`
	MessageType MessageType `json:"messageType,omitempty"`
	FileURL     string      `json:"fileUrl,omitempty"`
	FileName    string      `json:"fileName,omitempty"`
	FileSize    int64       `json:"fileSize,omitempty"`
	ReplyTo     ID          `json:"replyTo,omitempty"`
	CallID      ID          `json:"callId,omitempty"`
	CallType    CallType    `json:"callType,omitempty"`
}

// NewMessageFrame announces a persisted message.
type NewMessageFrame struct {
	Type    FrameType   `json:"type"`
	Message ChatMessage `json:"message"`
}

// CallStartedFrame signals that a call has started.
type CallStartedFrame struct {
	Type      FrameType `json:"type"`
	CallID    string    `json:"callId"`
	CallType  CallType  `json:"callType"`
	Initiator string    `json:"initiator"`
	ChannelID string    `json:"channelId"`
}

// AckFrame confirms that an inbound frame was applied. Only sent when
// acknowledgements are enabled.
type AckFrame struct {
	Type      FrameType `json:"type"`
	For       FrameType `json:"for"`
	Ref       string    `json:"ref,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	CallID    string    `json:"callId,omitempty"`
}

// ErrorFrame reports that an inbound frame was rejected. Only sent when
// acknowledgements are enabled.
type ErrorFrame struct {
	Type  FrameType `json:"type"`
	For   FrameType `json:"for,omitempty"`
	Ref   string    `json:"ref,omitempty"`
	Error string    `json:"error"`
}

func NewMessageEvent(msg ChatMessage) NewMessageFrame {
	return NewMessageFrame{Type: FrameNewMessage, Message: msg}
}

func CallStartedEvent(call CallSession) CallStartedFrame {
	return CallStartedFrame{
		Type:      FrameCallStarted,
		CallID:    call.ID,
		CallType:  call.Type,
		Initiator: call.Initiator,
		ChannelID: call.ChannelID,
	}
}
