package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Dekunlebells/okaygoal-sub001/internal/metrics"
)

// CircuitBreakerHook guards every redis operation with a shared circuit
// breaker so an unavailable redis fails fast instead of stalling its
// callers; the entitlement lookup on the subscribe path is the one that
// hurts most. Recent GET results are cached so reads can degrade to a
// stale answer while the circuit is open.
type CircuitBreakerHook struct {
	cb    circuitbreaker.CircuitBreaker[any]
	cache *fallbackCache
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

type fallbackCache struct {
	mu     sync.RWMutex
	values map[string]cachedValue
}

type cachedValue struct {
	data  string
	stamp time.Time
}

const fallbackTTL = 5 * time.Minute

// NewCircuitBreakerHook builds the hook with a 60% failure rate threshold
// over a 10s window (min 5 requests), a 30s open delay, and one success
// to close again from half-open.
func NewCircuitBreakerHook() *CircuitBreakerHook {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("redis circuit breaker state changed",
				"from", e.OldState.String(), "to", e.NewState.String())
			metrics.CircuitBreakerStateChanges.WithLabelValues("redis", e.NewState.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(stateToFloat(e.NewState))
		}).
		Build()

	return &CircuitBreakerHook{
		cb:    cb,
		cache: &fallbackCache{values: make(map[string]cachedValue)},
	}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if !h.cb.TryAcquirePermit() {
			return nil, fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
		}
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.cb.RecordError(err)
			return nil, err
		}
		h.cb.RecordSuccess()
		return conn, nil
	}
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			return h.fallback(cmd)
		}

		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, goredis.Nil) {
			h.cb.RecordError(err)
			return err
		}
		h.cb.RecordSuccess()
		h.cacheResult(cmd)
		return err
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		if !h.cb.TryAcquirePermit() {
			return fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
		}
		err := next(ctx, cmds)
		if err != nil {
			h.cb.RecordError(err)
			return err
		}
		h.cb.RecordSuccess()
		return nil
	}
}

// fallback answers a GET from the stale cache while the circuit is open.
// Everything else fails fast.
func (h *CircuitBreakerHook) fallback(cmd goredis.Cmder) error {
	if cmd.Name() == "get" {
		if val, ok := h.lookup(cmd); ok {
			slog.Debug("redis circuit breaker open, serving cached value", "args", cmd.Args())
			if c, ok := cmd.(*goredis.StringCmd); ok {
				c.SetVal(val)
				return nil
			}
		}
	}
	return fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
}

func (h *CircuitBreakerHook) cacheResult(cmd goredis.Cmder) {
	if cmd.Name() != "get" {
		return
	}
	args := cmd.Args()
	if len(args) < 2 {
		return
	}
	c, ok := cmd.(*goredis.StringCmd)
	if !ok {
		return
	}
	val, err := c.Result()
	if err != nil || val == "" {
		return
	}

	key := fmt.Sprintf("%v", args[1])
	h.cache.mu.Lock()
	h.cache.values[key] = cachedValue{data: val, stamp: time.Now()}
	h.cache.mu.Unlock()
}

func (h *CircuitBreakerHook) lookup(cmd goredis.Cmder) (string, bool) {
	args := cmd.Args()
	if len(args) < 2 {
		return "", false
	}
	key := fmt.Sprintf("%v", args[1])

	h.cache.mu.RLock()
	defer h.cache.mu.RUnlock()

	cached, ok := h.cache.values[key]
	if !ok || time.Since(cached.stamp) > fallbackTTL {
		return "", false
	}
	return cached.data, true
}

// State exposes the breaker state for readiness checks and tests.
func (h *CircuitBreakerHook) State() circuitbreaker.State {
	return h.cb.State()
}
