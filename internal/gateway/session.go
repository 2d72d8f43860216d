package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
	"github.com/Dekunlebells/okaygoal-sub001/internal/metrics"
)

const (
	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	pongDeadline  = 60 * time.Second
)

// session is the gateway-side handle for one authenticated connection and
// its delivery channel. The writer goroutine is the outbox's single
// consumer; nothing else writes to the connection after registration.
type session struct {
	id       uuid.UUID
	identity domain.Identity
	conn     *websocket.Conn
	outbox   *outbox
	clock    clockwork.Clock

	doneCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newSession(identity domain.Identity, conn *websocket.Conn, clock clockwork.Clock, queueCapacity int) *session {
	s := &session{
		id:       uuid.New(),
		identity: identity,
		conn:     conn,
		outbox:   newOutbox(queueCapacity),
		clock:    clock,
		doneCh:   make(chan struct{}),
	}
	s.configurePongHandler()
	s.wg.Add(1)
	go s.writeLoop()
	return s
}

// enqueue hands a frame to the delivery channel. Never blocks; the error
// is domain.ErrOverflow when the queue is full of non-discardable frames.
func (s *session) enqueue(f domain.Frame, matchID int64) error {
	return s.outbox.push(f, matchID)
}

func (s *session) writeLoop() {
	ticker := s.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.wg.Done()

	for {
		select {
		case <-s.outbox.ready():
			for {
				f, ok := s.outbox.tryPop()
				if !ok {
					break
				}
				if !s.writeFrame(f) {
					return
				}
			}

		case <-ticker.Chan():
			s.updateWriteDeadline()
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.SessionPingFailuresTotal.Inc()
				return
			}

		case <-s.doneCh:
			return
		}
	}
}

func (s *session) writeFrame(f domain.Frame) bool {
	data, err := json.Marshal(f)
	if err != nil {
		// A frame we built ourselves failed to encode; skip it.
		return true
	}
	start := s.clock.Now()
	s.updateWriteDeadline()
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return false
	}
	metrics.SessionSendDuration.Observe(s.clock.Since(start).Seconds())
	return true
}

// stop tears the session down without a close frame (already-dead peer).
func (s *session) stop() {
	s.stopOnce.Do(func() {
		s.outbox.close()
		close(s.doneCh)
		_ = s.conn.Close()
	})
	s.wg.Wait()
}

// stopWithClose sends a websocket close frame with the given policy code
// before closing. Used for overflow (client must resync) and shutdown.
func (s *session) stopWithClose(code int, reason string) {
	s.stopOnce.Do(func() {
		s.outbox.close()
		close(s.doneCh)

		// Wait for the writer to exit so the close frame is not written
		// concurrently with a frame delivery.
		s.wg.Wait()

		msg := websocket.FormatCloseMessage(code, reason)
		s.updateWriteDeadline()
		_ = s.conn.WriteMessage(websocket.CloseMessage, msg)
		_ = s.conn.Close()
	})
	s.wg.Wait()
}

func (s *session) configurePongHandler() {
	s.updateReadDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.updateReadDeadline()
		return nil
	})
}

func (s *session) updateWriteDeadline() {
	_ = s.conn.SetWriteDeadline(s.clock.Now().Add(writeDeadline))
}

func (s *session) updateReadDeadline() {
	_ = s.conn.SetReadDeadline(s.clock.Now().Add(pongDeadline))
}
