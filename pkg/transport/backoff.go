package transport

import (
	"math/rand"
	"time"
)

// Dial retry defaults.
const (
	DefaultRetryInitial = 250 * time.Millisecond
	DefaultRetryMax     = 5 * time.Second
	retryMultiplier     = 2.0
	retryJitter         = 0.25
)

// RetryConfig controls how Connect retries a refused dial, for example while
// a simulator is still starting up.
type RetryConfig struct {
	// Attempts is the total number of dials. Zero or one means no retry.
	Attempts int

	// Initial is the delay before the second dial (default: 250ms).
	Initial time.Duration

	// Max caps the delay between dials (default: 5s).
	Max time.Duration
}

// backoff produces exponentially growing, jittered delays.
type backoff struct {
	current time.Duration
	max     time.Duration
	rng     *rand.Rand
}

func newBackoff(cfg RetryConfig) *backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = DefaultRetryInitial
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultRetryMax
	}
	if cfg.Initial > cfg.Max {
		cfg.Initial = cfg.Max
	}
	return &backoff{
		current: cfg.Initial,
		max:     cfg.Max,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// next returns the delay to wait now and advances the sequence.
func (b *backoff) next() time.Duration {
	delay := b.current + time.Duration(float64(b.current)*retryJitter*b.rng.Float64())

	grown := time.Duration(float64(b.current) * retryMultiplier)
	if grown > b.max {
		grown = b.max
	}
	b.current = grown
	return delay
}
