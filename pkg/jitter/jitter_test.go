package jitter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDurationWithRand(t *testing.T) {
	assert.Equal(t, time.Second, DurationWithRand(time.Second, 0.5, func() float64 { return 0 }))
	assert.Equal(t, 1500*time.Millisecond, DurationWithRand(time.Second, 0.5, func() float64 { return 1 }))
	assert.Equal(t, time.Second, DurationWithRand(time.Second, 0, func() float64 { return 1 }))
}

func TestExponentialBackoffBounds(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second

	for attempt := 0; attempt < 8; attempt++ {
		got := ExponentialBackoff(base, max, attempt, DefaultJitter)

		want := base << attempt
		if want > max {
			want = max
		}
		assert.GreaterOrEqual(t, got, want, "attempt %d", attempt)
		assert.LessOrEqual(t, got, want+want/2, "attempt %d", attempt)
	}
}
