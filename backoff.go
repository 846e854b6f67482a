package mcpconn

import (
	"math"
	"sync"
	"time"
)

// reconnectBackoff computes reconnection delays as
// min(maxDelay, minDelay * multiplier^attempt). The attempt counter resets
// to zero on any successful connection, so a single success brings the next
// delay back to minDelay.
type reconnectBackoff struct {
	mu         sync.Mutex
	minDelay   time.Duration
	maxDelay   time.Duration
	multiplier float64
	attempt    int
}

func newReconnectBackoff(minDelay, maxDelay time.Duration, multiplier float64) *reconnectBackoff {
	return &reconnectBackoff{
		minDelay:   minDelay,
		maxDelay:   maxDelay,
		multiplier: multiplier,
	}
}

// Next returns the delay before the next attempt and advances the counter.
func (b *reconnectBackoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := time.Duration(float64(b.minDelay) * math.Pow(b.multiplier, float64(b.attempt)))
	if delay > b.maxDelay || delay <= 0 {
		delay = b.maxDelay
	}
	b.attempt++
	return delay
}

// Reset zeroes the attempt counter after a successful connection.
func (b *reconnectBackoff) Reset() {
	b.mu.Lock()
	b.attempt = 0
	b.mu.Unlock()
}

func (b *reconnectBackoff) attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempt
}
