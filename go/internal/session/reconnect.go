package session

import (
	"math"
	"time"
)

// ReconnectPolicy controls automatic reconnection after a transport failure.
// MaxRetries of zero disables reconnection and leaves the session Closed.
type ReconnectPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Jitter is the fraction of the backoff added at random, in [0, 1].
	Jitter float64
}

// NoReconnect treats every transport failure as terminal.
func NoReconnect() ReconnectPolicy {
	return ReconnectPolicy{}
}

func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxRetries: 5,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   30 * time.Second,
		Jitter:     0.2,
	}
}

func (p ReconnectPolicy) Enabled() bool {
	return p.MaxRetries > 0 && p.BaseDelay > 0
}

// Delay returns the wait before the given zero-based attempt. random must
// return a value in [0, 1).
func (p ReconnectPolicy) Delay(attempt int, random func() float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	backoff := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if p.MaxDelay > 0 && backoff > float64(p.MaxDelay) {
		backoff = float64(p.MaxDelay)
	}
	jitter := min(max(p.Jitter, 0), 1)
	if jitter > 0 && random != nil {
		backoff += backoff * jitter * random()
	}
	return time.Duration(backoff)
}
