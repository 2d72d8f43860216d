package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// FrameType discriminates JSON-framed wire messages.
type FrameType string

const (
	FrameScoreUpdate   FrameType = "score_update"
	FrameMatchEvent    FrameType = "match_event"
	FrameSubscribe     FrameType = "subscribe"
	FrameUnsubscribe   FrameType = "unsubscribe"
	FrameSubscribeAck  FrameType = "subscribe_ack"
	FrameError         FrameType = "error"
	FrameHeartbeatPing FrameType = "heartbeat_ping"
	FrameHeartbeatPong FrameType = "heartbeat_pong"
)

// Valid reports whether t is a recognized frame type.
func (t FrameType) Valid() bool {
	switch t {
	case FrameScoreUpdate, FrameMatchEvent, FrameSubscribe, FrameUnsubscribe,
		FrameSubscribeAck, FrameError, FrameHeartbeatPing, FrameHeartbeatPong:
		return true
	}
	return false
}

// MaxFrameBytes is the hard cap on a single wire frame. Oversized frames
// close the connection.
const MaxFrameBytes = 1 << 20 // 1 MiB

// Frame is the JSON envelope on the persistent connection. Seq is stamped
// per session at enqueue time and increases monotonically, so clients can
// verify delivery order.
type Frame struct {
	Type      FrameType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitzero"`
	Seq       uint64          `json:"seq,omitempty"`
}

// SubscribePayload is the data of subscribe/unsubscribe/subscribe_ack frames.
type SubscribePayload struct {
	Topic string `json:"topic"`
}

// ErrorPayload is the data of error frames.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewFrame builds a frame with a JSON-encoded payload. Panics only on
// unmarshalable payloads, which would be a programming error.
func NewFrame(t FrameType, payload any, now time.Time) (Frame, error) {
	var data json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return Frame{}, fmt.Errorf("encode %s payload: %w", t, err)
		}
		data = encoded
	}
	return Frame{Type: t, Data: data, Timestamp: now}, nil
}

// DecodeFrame parses and validates a raw wire frame. It enforces the frame
// size cap and rejects unknown types; both are protocol errors for the
// caller to act on.
func DecodeFrame(raw []byte) (Frame, error) {
	if len(raw) > MaxFrameBytes {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(raw))
	}
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if !f.Type.Valid() {
		return Frame{}, fmt.Errorf("%w: %q", ErrUnknownFrameType, f.Type)
	}
	return f, nil
}

// ScoreUpdate decodes the frame payload as a ScoreUpdate.
func (f Frame) ScoreUpdate() (ScoreUpdate, error) {
	if f.Type != FrameScoreUpdate {
		return ScoreUpdate{}, fmt.Errorf("frame is %s, not %s", f.Type, FrameScoreUpdate)
	}
	var u ScoreUpdate
	if err := json.Unmarshal(f.Data, &u); err != nil {
		return ScoreUpdate{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if !u.Status.Valid() {
		return ScoreUpdate{}, fmt.Errorf("%w: status %q", ErrMalformedFrame, u.Status)
	}
	return u, nil
}

// MatchEvent decodes the frame payload as a MatchEvent.
func (f Frame) MatchEvent() (MatchEvent, error) {
	if f.Type != FrameMatchEvent {
		return MatchEvent{}, fmt.Errorf("frame is %s, not %s", f.Type, FrameMatchEvent)
	}
	var e MatchEvent
	if err := json.Unmarshal(f.Data, &e); err != nil {
		return MatchEvent{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if !e.Type.Valid() {
		return MatchEvent{}, fmt.Errorf("%w: event type %q", ErrMalformedFrame, e.Type)
	}
	return e, nil
}

// SubscribeTopic decodes the topic of a subscribe or unsubscribe frame.
func (f Frame) SubscribeTopic() (Topic, error) {
	if f.Type != FrameSubscribe && f.Type != FrameUnsubscribe {
		return "", fmt.Errorf("frame is %s, not subscribe/unsubscribe", f.Type)
	}
	var p SubscribePayload
	if err := json.Unmarshal(f.Data, &p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return ParseTopic(p.Topic)
}

// Discardable reports whether the frame may be dropped from a full
// delivery queue in favor of newer traffic. Score snapshots supersede each
// other; discrete facts never do.
func (f Frame) Discardable() bool {
	return f.Type == FrameScoreUpdate
}
