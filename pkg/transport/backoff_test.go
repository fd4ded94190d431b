package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffGrowsToMax(t *testing.T) {
	b := newBackoff(RetryConfig{Initial: 100 * time.Millisecond, Max: 300 * time.Millisecond})

	bases := []time.Duration{100, 200, 300, 300}
	for i, base := range bases {
		base *= time.Millisecond
		d := b.next()
		assert.GreaterOrEqual(t, d, base, "delay %d", i)
		assert.LessOrEqual(t, d, base+base/4, "delay %d", i)
	}
}

func TestBackoffDefaults(t *testing.T) {
	b := newBackoff(RetryConfig{})
	assert.Equal(t, DefaultRetryInitial, b.current)
	assert.Equal(t, DefaultRetryMax, b.max)

	b = newBackoff(RetryConfig{Initial: time.Minute, Max: time.Second})
	assert.Equal(t, time.Second, b.current)
}
