package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_UnditheredIsNonDecreasingAndCapped(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 30 * time.Second}

	var prev time.Duration
	for attempt := range 12 {
		d := b.Delay(attempt)
		assert.GreaterOrEqual(t, d, prev, "delay decreased at attempt %d", attempt)
		assert.LessOrEqual(t, d, b.Max)
		prev = d
	}
	assert.Equal(t, 30*time.Second, b.Delay(50))
}

func TestBackoff_DoublesFromBase(t *testing.T) {
	b := Backoff{Base: time.Second, Max: time.Minute}

	assert.Equal(t, time.Second, b.Delay(0))
	assert.Equal(t, 2*time.Second, b.Delay(1))
	assert.Equal(t, 4*time.Second, b.Delay(2))
	assert.Equal(t, 8*time.Second, b.Delay(3))
}

func TestBackoff_JitterSpreadsRepeatedDelays(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 30 * time.Second, Jitter: 0.2}

	seen := make(map[time.Duration]struct{})
	for range 20 {
		seen[b.Delay(3)] = struct{}{}
	}
	assert.Greater(t, len(seen), 1, "jittered delays were bit-identical")

	for d := range seen {
		assert.InDelta(t, float64(8*time.Second), float64(d), 0.2*float64(8*time.Second))
	}
}

func TestBackoff_JitterIsDeterministicWithInjectedRNG(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 30 * time.Second, Jitter: 0.5, rng: func() float64 { return 1.0 }}
	assert.Equal(t, 1500*time.Millisecond, b.Delay(0))

	b.rng = func() float64 { return 0 }
	assert.Equal(t, 500*time.Millisecond, b.Delay(0))
}
