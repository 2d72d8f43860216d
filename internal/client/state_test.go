package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextState_Transitions(t *testing.T) {
	tests := []struct {
		name  string
		state State
		event transitionEvent
		want  State
	}{
		{"connect request starts handshake", StateDisconnected, evConnectRequested, StateConnecting},
		{"handshake success connects", StateConnecting, evHandshakeSucceeded, StateConnected},
		{"handshake failure backs off", StateConnecting, evHandshakeFailed, StateReconnecting},
		{"unexpected close backs off", StateConnected, evConnectionLost, StateReconnecting},
		{"backoff elapsed retries handshake", StateReconnecting, evBackoffElapsed, StateConnecting},
		{"close from disconnected", StateDisconnected, evCloseRequested, StateClosed},
		{"close from connecting", StateConnecting, evCloseRequested, StateClosed},
		{"close from connected", StateConnected, evCloseRequested, StateClosed},
		{"close during backoff wait", StateReconnecting, evCloseRequested, StateClosed},
		{"closed is terminal", StateClosed, evConnectRequested, StateClosed},
		{"nonsense input ignored: lost while disconnected", StateDisconnected, evConnectionLost, StateDisconnected},
		{"nonsense input ignored: backoff while connected", StateConnected, evBackoffElapsed, StateConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextState(tt.state, tt.event))
		})
	}
}
