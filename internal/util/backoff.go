// Package util holds small shared helpers.
package util

import (
	"math/rand"
	"time"
)

const maxBackoff = 30 * time.Second

// Backoff returns exponential backoff with jitter for the given attempt.
// The base delay is doubled each attempt, capped at 30 seconds, with random
// jitter of up to 25% in either direction. Non-positive base delays yield
// zero, and delays too small to jitter are returned as-is.
func Backoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 || baseDelay <= 0 {
		return 0
	}
	// Doubling in a loop bounded by the cap avoids shift overflow for
	// large base delays or attempt counts.
	backoff := baseDelay
	for i := 1; i < attempt && backoff < maxBackoff; i++ {
		backoff *= 2
	}
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	half := int64(backoff) / 2
	if half <= 0 {
		return backoff
	}
	jitter := time.Duration(rand.Int63n(half)) - backoff/4
	return backoff + jitter
}
