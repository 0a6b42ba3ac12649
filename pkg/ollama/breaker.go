package ollama

import (
	"errors"
	"sync/atomic"
	"time"
)

var ErrCircuitOpen = errors.New("ollama circuit open")

// breaker fails calls fast after threshold consecutive failures. Once reset
// has passed the next call goes through and decides whether it stays open.
type breaker struct {
	threshold int32
	reset     time.Duration

	failures  atomic.Int32
	openUntil atomic.Int64 // unix nano
}

func newBreaker(threshold int, reset time.Duration) *breaker {
	return &breaker{threshold: int32(threshold), reset: reset}
}

func (b *breaker) allow() error {
	if b.threshold <= 0 || b.failures.Load() < b.threshold {
		return nil
	}
	if time.Now().UnixNano() < b.openUntil.Load() {
		return ErrCircuitOpen
	}
	b.failures.Store(0)
	return nil
}

func (b *breaker) fail() {
	if b.failures.Add(1) >= b.threshold && b.threshold > 0 {
		b.openUntil.Store(time.Now().Add(b.reset).UnixNano())
	}
}

func (b *breaker) succeed() { b.failures.Store(0) }
