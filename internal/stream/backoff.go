package stream

import "time"

// Reconnect policy: 1s floor, doubling per failed attempt, capped at
// 30s, at most 10 attempts before the transport gives up for good.
const (
	backoffFloor = 1 * time.Second
	backoffCap   = 30 * time.Second

	// MaxRetries is the number of reconnect attempts made after a
	// connection is lost before the transport enters the failed state.
	MaxRetries = 10
)

// backoff tracks the reconnect delay schedule. Not safe for concurrent
// use; the transport run loop owns it.
type backoff struct {
	next    time.Duration
	attempt int
}

func newBackoff() *backoff {
	return &backoff{next: backoffFloor}
}

// Next returns the delay before the upcoming attempt and advances the
// schedule: 1s, 2s, 4s, 8s, 16s, 30s, 30s, ...
func (b *backoff) Next() time.Duration {
	d := b.next
	b.attempt++
	b.next *= 2
	if b.next > backoffCap {
		b.next = backoffCap
	}
	return d
}

// Attempt reports how many delays have been handed out.
func (b *backoff) Attempt() int { return b.attempt }

// Reset restores the floor delay after a successful connect.
func (b *backoff) Reset() {
	b.next = backoffFloor
	b.attempt = 0
}
