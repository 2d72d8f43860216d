package domain

import "errors"

var (
	ErrMatchNotFound  = errors.New("match not found")
	ErrUnknownTopic   = errors.New("unknown topic")
	ErrEntitlement    = errors.New("topic requires premium subscription")
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrSessionLimit   = errors.New("max concurrent sessions for identity reached")
	ErrFrameTooLarge  = errors.New("frame exceeds size limit")
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnknownFrameType is a protocol error: the envelope parsed but the
	// type is not one we speak.
	ErrUnknownFrameType = errors.New("unknown frame type")

	// ErrOverflow indicates a delivery queue full of non-discardable
	// messages; the session must be closed and the client must resync.
	ErrOverflow = errors.New("delivery queue overflow")
)
