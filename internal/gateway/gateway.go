package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
	"github.com/Dekunlebells/okaygoal-sub001/internal/logging"
	"github.com/Dekunlebells/okaygoal-sub001/internal/metrics"
)

const (
	defaultMaxSessionsPerIdentity = 3
	defaultQueueCapacity          = 256
	commandBuffer                 = 1024
	commandTimeout                = 5 * time.Second
	stopTimeout                   = 10 * time.Second
	entitlementTimeout            = 2 * time.Second
)

// EntitlementChecker decides whether a user may subscribe to a premium
// topic. Backed by the redis entitlement cache with a database fallback.
type EntitlementChecker interface {
	Entitled(ctx context.Context, userID uuid.UUID, topic domain.Topic) (bool, error)
}

// Config carries gateway policy knobs.
type Config struct {
	// MaxSessionsPerIdentity caps concurrent connections per user.
	MaxSessionsPerIdentity int
	// QueueCapacity bounds each session's delivery channel.
	QueueCapacity int
	Clock         clockwork.Clock
}

// --- Actor commands ---

type gatewayCmd interface{ isGatewayCmd() }

type baseGatewayCmd struct{}

func (baseGatewayCmd) isGatewayCmd() {}

type registerCmd struct {
	baseGatewayCmd
	sess  *session
	errCh chan error
}

type unregisterCmd struct {
	baseGatewayCmd
	sessionID uuid.UUID
}

type subscribeCmd struct {
	baseGatewayCmd
	sessionID uuid.UUID
	topic     domain.Topic
	errCh     chan error
}

type unsubscribeCmd struct {
	baseGatewayCmd
	sessionID uuid.UUID
	topic     domain.Topic
}

type publishCmd struct {
	baseGatewayCmd
	topic domain.Topic
	frame domain.Frame
}

type sessionCountCmd struct {
	baseGatewayCmd
	replyCh chan int
}

type stopCmd struct {
	baseGatewayCmd
}

// Gateway fans published frames out to subscribed sessions. A single
// actor goroutine owns all registry state; the exported methods are thin
// command wrappers.
type Gateway struct {
	cmdCh chan gatewayCmd
	clock clockwork.Clock
	cfg   Config

	entitlements EntitlementChecker

	sessions    map[uuid.UUID]*session
	topics      map[domain.Topic]map[uuid.UUID]*session
	topicsOf    map[uuid.UUID]map[domain.Topic]struct{}
	perIdentity map[uuid.UUID]int

	doneCh chan struct{}
}

// New starts a gateway actor.
func New(entitlements EntitlementChecker, cfg Config) *Gateway {
	if cfg.MaxSessionsPerIdentity <= 0 {
		cfg.MaxSessionsPerIdentity = defaultMaxSessionsPerIdentity
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = defaultQueueCapacity
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	g := &Gateway{
		cmdCh:        make(chan gatewayCmd, commandBuffer),
		clock:        cfg.Clock,
		cfg:          cfg,
		entitlements: entitlements,
		sessions:     make(map[uuid.UUID]*session),
		topics:       make(map[domain.Topic]map[uuid.UUID]*session),
		topicsOf:     make(map[uuid.UUID]map[domain.Topic]struct{}),
		perIdentity:  make(map[uuid.UUID]int),
	}
	g.doneCh = make(chan struct{})
	go g.run()
	return g
}

// Publish enqueues a frame for every subscriber of the topic. Non-blocking
// and best-effort with respect to the actor backlog: the caller is never
// stalled by a slow consumer or a busy gateway.
func (g *Gateway) Publish(topic domain.Topic, frame domain.Frame) {
	select {
	case g.cmdCh <- publishCmd{topic: topic, frame: frame}:
	default:
		slog.Warn("gateway command backlog full, dropping publish", "topic", string(topic))
		metrics.GatewayDroppedFramesTotal.WithLabelValues("publish_backlog").Inc()
	}
}

// SessionCount returns the number of registered sessions, or -1 on actor
// timeout.
func (g *Gateway) SessionCount() int {
	replyCh := make(chan int, 1)
	g.cmdCh <- sessionCountCmd{replyCh: replyCh}

	timer := g.clock.NewTimer(commandTimeout)
	defer timer.Stop()
	select {
	case n := <-replyCh:
		return n
	case <-timer.Chan():
		return -1
	}
}

// Stop closes every session and shuts the actor down.
func (g *Gateway) Stop() {
	g.cmdCh <- stopCmd{}

	timer := g.clock.NewTimer(stopTimeout)
	defer timer.Stop()
	select {
	case <-g.doneCh:
		slog.Info("gateway stopped")
	case <-timer.Chan():
		slog.Warn("gateway stop timeout exceeded", "timeout", stopTimeout)
	}
}

// Serve runs the full lifecycle of one accepted, already-authenticated
// connection: registration, the read loop, and teardown. Blocks until the
// connection is gone. The returned error describes why the session was
// refused or torn down; a clean client disconnect returns nil.
func (g *Gateway) Serve(ctx context.Context, conn *websocket.Conn, identity domain.Identity) error {
	sess := newSession(identity, conn, g.clock, g.cfg.QueueCapacity)

	if err := g.register(sess); err != nil {
		metrics.GatewaySessionsRejectedTotal.WithLabelValues("session_limit").Inc()
		sess.stopWithClose(websocket.ClosePolicyViolation, err.Error())
		return err
	}

	// The token was verified once at the handshake; the session must not
	// outlive it. Closing the connection forces a reconnect with a fresh
	// token through the verifier.
	if exp := identity.Expiry; !exp.IsZero() {
		expiryTimer := g.clock.AfterFunc(exp.Sub(g.clock.Now()), func() {
			logging.WithSession(sess.id.String()).Info("closing session on token expiry",
				"user_id", identity.UserID.String())
			sess.stopWithClose(websocket.ClosePolicyViolation, "token expired")
		})
		defer expiryTimer.Stop()
	}

	err := g.readLoop(ctx, sess)

	g.cmdCh <- unregisterCmd{sessionID: sess.id}
	sess.stop()
	return err
}

func (g *Gateway) register(sess *session) error {
	errCh := make(chan error, 1)
	g.cmdCh <- registerCmd{sess: sess, errCh: errCh}

	timer := g.clock.NewTimer(commandTimeout)
	defer timer.Stop()
	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register timed out after %v", commandTimeout)
	}
}

func (g *Gateway) subscribe(sessionID uuid.UUID, topic domain.Topic) error {
	errCh := make(chan error, 1)
	g.cmdCh <- subscribeCmd{sessionID: sessionID, topic: topic, errCh: errCh}

	timer := g.clock.NewTimer(commandTimeout)
	defer timer.Stop()
	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("subscribe timed out after %v", commandTimeout)
	}
}

// readLoop consumes client frames until the connection dies or violates
// the protocol. Subscription changes and heartbeat replies are the only
// messages a client may send.
func (g *Gateway) readLoop(ctx context.Context, sess *session) error {
	sess.conn.SetReadLimit(domain.MaxFrameBytes)

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				metrics.GatewayProtocolErrorsTotal.WithLabelValues("oversized_frame").Inc()
				sess.stopWithClose(websocket.CloseMessageTooBig, "frame exceeds size limit")
				return domain.ErrFrameTooLarge
			}
			return nil // regular disconnect
		}

		frame, err := domain.DecodeFrame(data)
		if err != nil {
			metrics.GatewayProtocolErrorsTotal.WithLabelValues("malformed_frame").Inc()
			logging.WithSession(sess.id.String()).Debug("closing connection on protocol error",
				"error", err)
			sess.stopWithClose(websocket.CloseProtocolError, "malformed frame")
			return err
		}

		switch frame.Type {
		case domain.FrameSubscribe:
			g.handleSubscribeFrame(ctx, sess, frame)

		case domain.FrameUnsubscribe:
			if topic, terr := frame.SubscribeTopic(); terr == nil {
				g.cmdCh <- unsubscribeCmd{sessionID: sess.id, topic: topic}
			}

		case domain.FrameHeartbeatPing:
			pong, _ := domain.NewFrame(domain.FrameHeartbeatPong, nil, g.clock.Now())
			g.deliverOrClose(sess, pong, 0)

		default:
			// Clients have no business sending server-to-client frame types.
			metrics.GatewayProtocolErrorsTotal.WithLabelValues("unexpected_type").Inc()
			sess.stopWithClose(websocket.CloseProtocolError, "unexpected frame type")
			return fmt.Errorf("%w: %q from client", domain.ErrUnknownFrameType, frame.Type)
		}
	}
}

// handleSubscribeFrame validates the topic and entitlement on the
// connection goroutine (it may touch redis or the database), then hands
// registry mutation to the actor. The client gets either a subscribe_ack
// or an error frame; a bad topic never kills the connection.
func (g *Gateway) handleSubscribeFrame(ctx context.Context, sess *session, frame domain.Frame) {
	topic, err := frame.SubscribeTopic()
	if err != nil {
		g.rejectSubscribe(sess, "unknown_topic", err.Error())
		return
	}

	// Notification topics are private to their owner.
	if uid, ok := topic.UserID(); ok && uid != sess.identity.UserID {
		g.rejectSubscribe(sess, "forbidden_topic", "user topic belongs to another user")
		return
	}

	if topic.Premium() && sess.identity.Tier != domain.TierPremium {
		checkCtx, cancel := context.WithTimeout(ctx, entitlementTimeout)
		ok, eerr := g.entitlements.Entitled(checkCtx, sess.identity.UserID, topic)
		cancel()
		if eerr != nil {
			logging.WithUser(sess.identity.UserID.String()).Error("entitlement check failed",
				"topic", string(topic), "error", eerr)
		}
		if eerr != nil || !ok {
			g.rejectSubscribe(sess, "entitlement_required", domain.ErrEntitlement.Error())
			return
		}
	}

	if err := g.subscribe(sess.id, topic); err != nil {
		g.rejectSubscribe(sess, "internal", err.Error())
		return
	}

	ack, _ := domain.NewFrame(domain.FrameSubscribeAck, domain.SubscribePayload{Topic: string(topic)}, g.clock.Now())
	g.deliverOrClose(sess, ack, 0)
}

func (g *Gateway) rejectSubscribe(sess *session, code, message string) {
	f, _ := domain.NewFrame(domain.FrameError, domain.ErrorPayload{Code: code, Message: message}, g.clock.Now())
	g.deliverOrClose(sess, f, 0)
}

// deliverOrClose enqueues a gateway-originated frame, applying the
// overflow policy if the delivery channel is saturated.
func (g *Gateway) deliverOrClose(sess *session, f domain.Frame, matchID int64) {
	if err := sess.enqueue(f, matchID); errors.Is(err, domain.ErrOverflow) {
		g.closeOverflowed(sess)
	}
}

func (g *Gateway) closeOverflowed(sess *session) {
	logging.WithSession(sess.id.String()).Warn("closing session on delivery queue overflow")
	metrics.GatewayOverflowClosesTotal.Inc()
	g.cmdCh <- unregisterCmd{sessionID: sess.id}
	go sess.stopWithClose(websocket.CloseTryAgainLater, "delivery queue overflow; resync required")
}

// --- Actor loop ---

func (g *Gateway) run() {
	defer close(g.doneCh)

	depthTicker := g.clock.NewTicker(time.Second)
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			metrics.GatewayCommandChannelDepth.Set(float64(len(g.cmdCh)))

		case cmd := <-g.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				g.handleRegister(c)
			case unregisterCmd:
				g.handleUnregister(c.sessionID)
			case subscribeCmd:
				g.handleSubscribe(c)
			case unsubscribeCmd:
				g.handleUnsubscribe(c.sessionID, c.topic)
			case publishCmd:
				g.handlePublish(c)
			case sessionCountCmd:
				c.replyCh <- len(g.sessions)
			case stopCmd:
				g.handleStop()
				return
			default:
				slog.Warn("gateway received unknown command", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (g *Gateway) handleRegister(c registerCmd) {
	userID := c.sess.identity.UserID
	if g.perIdentity[userID] >= g.cfg.MaxSessionsPerIdentity {
		c.errCh <- fmt.Errorf("%w (max %d)", domain.ErrSessionLimit, g.cfg.MaxSessionsPerIdentity)
		return
	}

	g.sessions[c.sess.id] = c.sess
	g.topicsOf[c.sess.id] = make(map[domain.Topic]struct{})
	g.perIdentity[userID]++

	metrics.GatewayActiveSessions.Set(float64(len(g.sessions)))
	logging.WithSession(c.sess.id.String()).Debug("session registered",
		"user_id", userID.String(),
		"total_sessions", len(g.sessions))
	c.errCh <- nil
}

// handleUnregister removes the session from every topic set. Safe to call
// more than once for the same session; disconnects must never leave stale
// registry entries.
func (g *Gateway) handleUnregister(sessionID uuid.UUID) {
	sess, ok := g.sessions[sessionID]
	if !ok {
		return
	}

	for topic := range g.topicsOf[sessionID] {
		delete(g.topics[topic], sessionID)
		if len(g.topics[topic]) == 0 {
			delete(g.topics, topic)
		}
	}
	delete(g.topicsOf, sessionID)
	delete(g.sessions, sessionID)

	userID := sess.identity.UserID
	if g.perIdentity[userID] > 1 {
		g.perIdentity[userID]--
	} else {
		delete(g.perIdentity, userID)
	}

	metrics.GatewayActiveSessions.Set(float64(len(g.sessions)))
	g.updateSubscriptionGauge()
	logging.WithSession(sessionID.String()).Debug("session unregistered",
		"total_sessions", len(g.sessions))
}

func (g *Gateway) handleSubscribe(c subscribeCmd) {
	if _, ok := g.sessions[c.sessionID]; !ok {
		c.errCh <- fmt.Errorf("session %s not registered", c.sessionID)
		return
	}

	if g.topics[c.topic] == nil {
		g.topics[c.topic] = make(map[uuid.UUID]*session)
	}
	g.topics[c.topic][c.sessionID] = g.sessions[c.sessionID]
	g.topicsOf[c.sessionID][c.topic] = struct{}{}

	g.updateSubscriptionGauge()
	c.errCh <- nil
}

func (g *Gateway) handleUnsubscribe(sessionID uuid.UUID, topic domain.Topic) {
	delete(g.topics[topic], sessionID)
	if len(g.topics[topic]) == 0 {
		delete(g.topics, topic)
	}
	if subs, ok := g.topicsOf[sessionID]; ok {
		delete(subs, topic)
	}
	g.updateSubscriptionGauge()
}

// handlePublish fans the frame out to every subscriber's delivery channel.
// A topic with no subscribers is a no-op. The enqueue itself never blocks,
// so the actor is not held hostage by any session's network write.
func (g *Gateway) handlePublish(c publishCmd) {
	subs := g.topics[c.topic]
	if len(subs) == 0 {
		return
	}

	matchID := publishMatchID(c.frame)
	for _, sess := range subs {
		if err := sess.enqueue(c.frame, matchID); err != nil {
			if errors.Is(err, domain.ErrOverflow) {
				g.evictOverflowed(sess)
			}
			// errOutboxClosed: session already tearing down; its Serve
			// exit performs the unregister.
			continue
		}
	}
	metrics.GatewayPublishedFramesTotal.WithLabelValues(string(c.frame.Type)).Inc()
}

// evictOverflowed is closeOverflowed for the actor goroutine: the registry
// is mutated inline instead of via a command to avoid self-deadlock.
func (g *Gateway) evictOverflowed(sess *session) {
	logging.WithSession(sess.id.String()).Warn("closing session on delivery queue overflow")
	metrics.GatewayOverflowClosesTotal.Inc()
	g.handleUnregister(sess.id)
	go sess.stopWithClose(websocket.CloseTryAgainLater, "delivery queue overflow; resync required")
}

func (g *Gateway) handleStop() {
	slog.Info("gateway shutting down", "sessions", len(g.sessions))
	for id, sess := range g.sessions {
		go sess.stopWithClose(websocket.CloseNormalClosure, "server shutting down")
		delete(g.sessions, id)
		delete(g.topicsOf, id)
	}
	g.topics = make(map[domain.Topic]map[uuid.UUID]*session)
	g.perIdentity = make(map[uuid.UUID]int)
	metrics.GatewayActiveSessions.Set(0)
	metrics.GatewayActiveSubscriptions.Set(0)
}

func (g *Gateway) updateSubscriptionGauge() {
	total := 0
	for _, subs := range g.topics {
		total += len(subs)
	}
	metrics.GatewayActiveSubscriptions.Set(float64(total))
}

// publishMatchID extracts the match association used by the outbox to
// coalesce superseded snapshots of the same match. Decoded once per
// publish, not once per subscriber.
func publishMatchID(f domain.Frame) int64 {
	switch f.Type {
	case domain.FrameScoreUpdate:
		if u, err := f.ScoreUpdate(); err == nil {
			return u.MatchID
		}
	case domain.FrameMatchEvent:
		if e, err := f.MatchEvent(); err == nil {
			return e.MatchID
		}
	}
	return 0
}
