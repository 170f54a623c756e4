package relay

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hay-kot/criterio"
	"github.com/orchestra-mcp/relay/src/hub"
	"github.com/orchestra-mcp/relay/src/types"
)

func (r *Handler) handleStartCall(c *hub.Client, f types.InboundFrame) error {
	initiator := f.UserID.String()
	if initiator == "" {
		initiator = c.UserID()
	}
	call, err := r.StartCall(types.CallSession{
		ID:        f.CallID.String(),
		Type:      f.CallType,
		Initiator: initiator,
		ChannelID: f.ChannelID.String(),
	})
	if err != nil {
		return err
	}
	r.ack(c, types.AckFrame{For: f.Type, Ref: f.Ref, CallID: call.ID})
	return nil
}

// StartCall signals a call to the recipients selected by scope. A missing id is
// generated and a missing type defaults to video. The call is not tracked.
func (r *Handler) StartCall(call types.CallSession) (types.CallSession, error) {
	if call.ID == "" {
		call.ID = uuid.New().String()
	}
	if call.Type == "" {
		call.Type = types.CallVideo
	}
	if err := validateCall(call); err != nil {
		return call, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	n, err := r.fanOut(call.ChannelID, types.CallStartedEvent(call))
	if err != nil {
		return call, err
	}
	r.logger.Info().
		Str("call_id", call.ID).
		Str("call_type", string(call.Type)).
		Str("initiator", call.Initiator).
		Str("channel_id", call.ChannelID).
		Int("recipients", n).
		Msg("call started")
	return call, nil
}

func validateCall(call types.CallSession) error {
	var errs criterio.FieldErrorsBuilder
	if !call.Type.Valid() {
		errs = errs.Append("callType", fmt.Errorf("unknown call type %q", call.Type))
	}
	if call.Initiator == "" {
		errs = errs.Append("userId", errors.New("is required"))
	}
	if call.ChannelID == "" {
		errs = errs.Append("channelId", errors.New("is required"))
	}
	return errs.ToError()
}
