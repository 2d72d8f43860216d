package gateway

import (
	"errors"
	"sync"

	"github.com/Dekunlebells/okaygoal-sub001/internal/domain"
	"github.com/Dekunlebells/okaygoal-sub001/internal/metrics"
)

var errOutboxClosed = errors.New("outbox closed")

// outbox is the per-session delivery channel: a bounded FIFO queue with a
// single consumer (the session writer goroutine).
//
// When full, the oldest queued score snapshot is discarded in favor of the
// incoming frame: snapshots supersede each other, so a stale intermediate
// one is safely droppable. Discrete facts (match events) are never
// silently dropped; if the queue is full of non-discardable frames the
// push fails with domain.ErrOverflow and the session must be closed so
// the client resyncs.
type outbox struct {
	mu       sync.Mutex
	items    []queuedFrame
	capacity int
	nextSeq  uint64
	closed   bool
	signal   chan struct{}
}

type queuedFrame struct {
	frame   domain.Frame
	matchID int64 // 0 when the frame carries no match association
}

func newOutbox(capacity int) *outbox {
	return &outbox{
		capacity: capacity,
		nextSeq:  1,
		signal:   make(chan struct{}, 1),
	}
}

// ready signals that the queue may have frames to deliver.
func (o *outbox) ready() <-chan struct{} { return o.signal }

// push enqueues a frame, stamping its per-session sequence number. The
// sequence increases monotonically in enqueue order, so the consumer can
// verify FIFO delivery even across drops.
func (o *outbox) push(f domain.Frame, matchID int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return errOutboxClosed
	}

	if len(o.items) >= o.capacity {
		if !o.evict(matchID) {
			if f.Discardable() {
				// Queue full of events and the incoming frame is itself a
				// superseded snapshot; drop the newcomer.
				metrics.GatewayDroppedFramesTotal.WithLabelValues("queue_full_incoming").Inc()
				return nil
			}
			o.closed = true
			return domain.ErrOverflow
		}
	}

	f.Seq = o.nextSeq
	o.nextSeq++
	o.items = append(o.items, queuedFrame{frame: f, matchID: matchID})

	select {
	case o.signal <- struct{}{}:
	default:
	}
	return nil
}

// evict removes the oldest discardable frame, preferring a superseded
// snapshot of the same match. Caller holds the lock.
func (o *outbox) evict(matchID int64) bool {
	idx := -1
	for i, q := range o.items {
		if !q.frame.Discardable() {
			continue
		}
		if matchID != 0 && q.matchID == matchID {
			idx = i
			break
		}
		if idx < 0 {
			idx = i
		}
	}
	if idx < 0 {
		return false
	}
	o.items = append(o.items[:idx], o.items[idx+1:]...)
	metrics.GatewayDroppedFramesTotal.WithLabelValues("superseded_snapshot").Inc()
	return true
}

// tryPop removes the head frame without blocking.
func (o *outbox) tryPop() (domain.Frame, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.items) == 0 {
		return domain.Frame{}, false
	}
	f := o.items[0].frame
	o.items = o.items[1:]
	return f, true
}

// close rejects further pushes. Queued frames stay poppable so the writer
// can finish draining if it wants to.
func (o *outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}
