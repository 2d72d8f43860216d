package client

// State is the connection manager's lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// transitionEvent is a typed input to the state machine.
type transitionEvent int

const (
	evConnectRequested transitionEvent = iota
	evHandshakeSucceeded
	evHandshakeFailed
	evConnectionLost // unexpected close, read error, heartbeat timeout
	evBackoffElapsed
	evCloseRequested // explicit disconnect or auth revocation
)

func (e transitionEvent) String() string {
	switch e {
	case evConnectRequested:
		return "connect_requested"
	case evHandshakeSucceeded:
		return "handshake_succeeded"
	case evHandshakeFailed:
		return "handshake_failed"
	case evConnectionLost:
		return "connection_lost"
	case evBackoffElapsed:
		return "backoff_elapsed"
	case evCloseRequested:
		return "close_requested"
	default:
		return "unknown"
	}
}

// nextState is the pure transition function. Inputs that make no sense in
// the current state leave it unchanged; Closed is terminal.
func nextState(s State, e transitionEvent) State {
	if s == StateClosed {
		return StateClosed
	}
	if e == evCloseRequested {
		return StateClosed
	}

	switch s {
	case StateDisconnected:
		if e == evConnectRequested {
			return StateConnecting
		}
	case StateConnecting:
		switch e {
		case evHandshakeSucceeded:
			return StateConnected
		case evHandshakeFailed:
			return StateReconnecting
		}
	case StateConnected:
		if e == evConnectionLost {
			return StateReconnecting
		}
	case StateReconnecting:
		if e == evBackoffElapsed {
			return StateConnecting
		}
	}
	return s
}
