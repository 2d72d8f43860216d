package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
)

const (
	defaultHeartbeatInterval = 25 * time.Second
	defaultHeartbeatTimeout  = 60 * time.Second
	defaultHandshakeTimeout  = 10 * time.Second
	inboundBuffer            = 256
)

// Conn is one framed connection to the gateway.
type Conn interface {
	ReadFrame() (domain.Frame, error)
	WriteFrame(f domain.Frame) error
	Close() error
}

// Dialer performs the handshake. Implementations return an error wrapping
// domain.ErrInvalidToken when the gateway rejects the token.
type Dialer interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// Config carries the manager's collaborators and policy knobs.
type Config struct {
	Dialer    Dialer
	Refresher domain.TokenRefresher // may be nil; auth failures then close immediately
	Token     string
	Clock     clockwork.Clock
	Backoff   Backoff

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	HandshakeTimeout  time.Duration

	// OnConnected runs after every successful handshake, before any frame
	// is delivered. The snapshot store uses it to issue its full resync
	// fetch, repairing any gap since the last connection.
	OnConnected func()

	// OnStateChange observes every transition. Called from the manager
	// goroutine; must not block.
	OnStateChange func(State)
}

// Manager owns one logical connection to the gateway and runs the
// reconnect state machine. The backoff wait is the manager's only
// suspension point and is cancelled by Close.
type Manager struct {
	cfg   Config
	clock clockwork.Clock

	frames chan domain.Frame

	connectCh chan struct{}
	closeCh   chan struct{}
	closeOnce sync.Once
	doneCh    chan struct{}

	kickCh chan struct{} // subscription set changed

	mu          sync.Mutex
	state       State
	token       string
	desired     map[domain.Topic]struct{}
	closeCause  error
	authRetried bool
}

// NewManager creates a manager in the Disconnected state. Call Connect to
// start the handshake and Close to shut down permanently.
func NewManager(cfg Config) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Backoff.Base == 0 && cfg.Backoff.Max == 0 && cfg.Backoff.Jitter == 0 && cfg.Backoff.rng == nil {
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.HeartbeatTimeout == 0 {
		cfg.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}

	m := &Manager{
		cfg:       cfg,
		clock:     cfg.Clock,
		frames:    make(chan domain.Frame, inboundBuffer),
		connectCh: make(chan struct{}, 1),
		closeCh:   make(chan struct{}),
		doneCh:    make(chan struct{}),
		kickCh:    make(chan struct{}, 1),
		state:     StateDisconnected,
		token:     cfg.Token,
		desired:   make(map[domain.Topic]struct{}),
	}
	go m.run()
	return m
}

// Frames is the ordered inbound message stream. Closed when the manager
// reaches the Closed state.
func (m *Manager) Frames() <-chan domain.Frame { return m.frames }

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CloseCause reports why the manager reached Closed. nil for an explicit
// Close; wraps domain.ErrInvalidToken after an unrecoverable auth
// rejection, in which case the UI must prompt for re-authentication.
func (m *Manager) CloseCause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCause
}

// Connect requests a transition out of Disconnected. Safe to call more
// than once; extra requests are coalesced.
func (m *Manager) Connect() {
	select {
	case m.connectCh <- struct{}{}:
	default:
	}
}

// Close shuts the manager down permanently, cancelling any pending backoff
// wait. Blocks until the run loop has exited.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.closeCh) })
	<-m.doneCh
}

// Subscribe adds a topic to the desired set. Sent immediately when
// connected, and replayed after every reconnect.
func (m *Manager) Subscribe(topic domain.Topic) {
	m.mu.Lock()
	m.desired[topic] = struct{}{}
	m.mu.Unlock()
	m.kick()
}

// Unsubscribe removes a topic from the desired set.
func (m *Manager) Unsubscribe(topic domain.Topic) {
	m.mu.Lock()
	delete(m.desired, topic)
	m.mu.Unlock()
	m.kick()
}

func (m *Manager) kick() {
	select {
	case m.kickCh <- struct{}{}:
	default:
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	changed := m.state != s
	m.state = s
	m.mu.Unlock()
	if changed && m.cfg.OnStateChange != nil {
		m.cfg.OnStateChange(s)
	}
}

func (m *Manager) currentToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *Manager) setToken(tok string) {
	m.mu.Lock()
	m.token = tok
	m.mu.Unlock()
}

func (m *Manager) setCloseCause(err error) {
	m.mu.Lock()
	if m.closeCause == nil {
		m.closeCause = err
	}
	m.mu.Unlock()
}

func (m *Manager) run() {
	defer close(m.doneCh)
	defer close(m.frames)

	state := StateDisconnected
	attempt := 0
	var conn Conn

	for state != StateClosed {
		var ev transitionEvent
		switch state {
		case StateDisconnected:
			ev = m.awaitConnect()
		case StateConnecting:
			conn, ev = m.handshake()
		case StateConnected:
			attempt = 0
			ev = m.serve(conn)
			conn = nil
		case StateReconnecting:
			ev = m.awaitBackoff(attempt)
			attempt++
		}

		next := nextState(state, ev)
		if next != state {
			slog.Debug("connection state transition",
				"from", state.String(), "to", next.String(), "event", ev.String())
		}
		state = next
		m.setState(state)
	}

	if conn != nil {
		_ = conn.Close()
	}
}

func (m *Manager) awaitConnect() transitionEvent {
	select {
	case <-m.connectCh:
		return evConnectRequested
	case <-m.closeCh:
		return evCloseRequested
	}
}

// handshake performs one dial attempt. An auth rejection consults the
// token-refresh collaborator once; a second rejection after a refresh is
// unrecoverable and closes the manager.
func (m *Manager) handshake() (Conn, transitionEvent) {
	select {
	case <-m.closeCh:
		return nil, evCloseRequested
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandshakeTimeout)
	defer cancel()

	conn, err := m.cfg.Dialer.Dial(ctx, m.currentToken())
	if err == nil {
		m.mu.Lock()
		m.authRetried = false
		m.mu.Unlock()
		if m.cfg.OnConnected != nil {
			m.cfg.OnConnected()
		}
		return conn, evHandshakeSucceeded
	}

	if errors.Is(err, domain.ErrInvalidToken) {
		m.mu.Lock()
		retried := m.authRetried
		m.authRetried = true
		m.mu.Unlock()

		if retried || m.cfg.Refresher == nil {
			slog.Warn("handshake rejected after token refresh, closing", "error", err)
			m.setCloseCause(err)
			return nil, evCloseRequested
		}

		tok, rerr := m.cfg.Refresher.Refresh(ctx)
		if rerr != nil {
			slog.Warn("token refresh failed, closing", "error", rerr)
			m.setCloseCause(err)
			return nil, evCloseRequested
		}
		m.setToken(tok)
		slog.Info("token refreshed after auth rejection, retrying with backoff")
		return nil, evHandshakeFailed
	}

	slog.Warn("handshake failed", "error", err)
	return nil, evHandshakeFailed
}

// serve runs the connected phase: the read pump, heartbeat pings, pong
// deadline enforcement, and subscription sync. Returns when the
// connection is lost or the manager is closed.
func (m *Manager) serve(conn Conn) transitionEvent {
	rx := make(chan domain.Frame, inboundBuffer)
	readErr := make(chan error, 1)
	go func() {
		for {
			f, err := conn.ReadFrame()
			if err != nil {
				readErr <- err
				close(rx)
				return
			}
			rx <- f
		}
	}()

	sent := make(map[domain.Topic]struct{})
	if ev, ok := m.syncSubscriptions(conn, sent); !ok {
		_ = conn.Close()
		awaitPumpExit(rx, readErr)
		return ev
	}

	ticker := m.clock.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()
	lastPong := m.clock.Now()

	for {
		select {
		case f, ok := <-rx:
			if !ok {
				// Read pump exited; the error is in readErr.
				err := <-readErr
				_ = conn.Close()
				slog.Info("connection lost", "error", err)
				return evConnectionLost
			}
			switch f.Type {
			case domain.FrameHeartbeatPong:
				lastPong = m.clock.Now()
			case domain.FrameHeartbeatPing:
				pong, _ := domain.NewFrame(domain.FrameHeartbeatPong, nil, m.clock.Now())
				if err := conn.WriteFrame(pong); err != nil {
					_ = conn.Close()
					awaitPumpExit(rx, readErr)
					return evConnectionLost
				}
			default:
				select {
				case m.frames <- f:
				case <-m.closeCh:
					_ = conn.Close()
					awaitPumpExit(rx, readErr)
					return evCloseRequested
				}
			}

		case <-ticker.Chan():
			if m.clock.Since(lastPong) > m.cfg.HeartbeatTimeout {
				slog.Warn("heartbeat timeout, treating as connection loss",
					"since_pong", m.clock.Since(lastPong))
				_ = conn.Close()
				awaitPumpExit(rx, readErr)
				return evConnectionLost
			}
			ping, _ := domain.NewFrame(domain.FrameHeartbeatPing, nil, m.clock.Now())
			if err := conn.WriteFrame(ping); err != nil {
				_ = conn.Close()
				awaitPumpExit(rx, readErr)
				return evConnectionLost
			}

		case <-m.kickCh:
			if ev, ok := m.syncSubscriptions(conn, sent); !ok {
				_ = conn.Close()
				awaitPumpExit(rx, readErr)
				return ev
			}

		case <-m.closeCh:
			_ = conn.Close()
			awaitPumpExit(rx, readErr)
			return evCloseRequested
		}
	}
}

// awaitPumpExit discards buffered inbound frames until the read pump has
// observed the closed connection and exited.
func awaitPumpExit(rx <-chan domain.Frame, readErr <-chan error) {
	for {
		select {
		case _, ok := <-rx:
			if !ok {
				<-readErr
				return
			}
		case <-readErr:
			return
		}
	}
}

// syncSubscriptions sends subscribe/unsubscribe frames to make the wire
// state match the desired set. Reports ok=false with the event to return
// when a write fails.
func (m *Manager) syncSubscriptions(conn Conn, sent map[domain.Topic]struct{}) (transitionEvent, bool) {
	m.mu.Lock()
	desired := make(map[domain.Topic]struct{}, len(m.desired))
	for t := range m.desired {
		desired[t] = struct{}{}
	}
	m.mu.Unlock()

	for t := range desired {
		if _, ok := sent[t]; ok {
			continue
		}
		f, err := domain.NewFrame(domain.FrameSubscribe, domain.SubscribePayload{Topic: string(t)}, m.clock.Now())
		if err != nil {
			continue
		}
		if err := conn.WriteFrame(f); err != nil {
			return evConnectionLost, false
		}
		sent[t] = struct{}{}
	}
	for t := range sent {
		if _, ok := desired[t]; ok {
			continue
		}
		f, err := domain.NewFrame(domain.FrameUnsubscribe, domain.SubscribePayload{Topic: string(t)}, m.clock.Now())
		if err != nil {
			continue
		}
		if err := conn.WriteFrame(f); err != nil {
			return evConnectionLost, false
		}
		delete(sent, t)
	}
	return 0, true
}

// awaitBackoff waits out the exponential backoff delay. This is the only
// suspension point in the manager and it is cancellable by Close.
func (m *Manager) awaitBackoff(attempt int) transitionEvent {
	delay := m.cfg.Backoff.Delay(attempt)
	timer := m.clock.NewTimer(delay)
	defer timer.Stop()

	slog.Debug("waiting before reconnect", "attempt", attempt, "delay", delay)
	select {
	case <-timer.Chan():
		return evBackoffElapsed
	case <-m.closeCh:
		return evCloseRequested
	}
}
