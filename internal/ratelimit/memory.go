package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// sweepEvery is how often the memory limiters drop keys that carry no state.
const sweepEvery = time.Minute

// MemoryTokenBucket keeps one rate.Limiter per key in process memory.
type MemoryTokenBucket struct {
	policy TokenBucketPolicy
	now    func() time.Time

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	lastSweep time.Time
}

func NewMemoryTokenBucket(policy TokenBucketPolicy) *MemoryTokenBucket {
	return &MemoryTokenBucket{
		policy:   policy,
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (b *MemoryTokenBucket) limiter(key string, now time.Time) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.lastSweep) >= sweepEvery {
		// a full bucket is indistinguishable from a new one
		for k, l := range b.limiters {
			if k != key && l.TokensAt(now) >= float64(b.policy.Capacity) {
				delete(b.limiters, k)
			}
		}
		b.lastSweep = now
	}

	l, ok := b.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(b.policy.Interval/time.Duration(b.policy.Refill)), b.policy.Capacity)
		b.limiters[key] = l
	}
	return l
}

func (b *MemoryTokenBucket) Allow(_ context.Context, key string) (Decision, error) {
	now := b.now()
	l := b.limiter(key, now)
	if l.AllowN(now, 1) {
		return Decision{Allowed: true, Remaining: int(l.TokensAt(now))}, nil
	}
	r := l.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return Decision{RetryAfter: delay}, nil
}

func (b *MemoryTokenBucket) keys() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.limiters)
}

// MemorySlidingWindow keeps the hit times of each key in process memory.
type MemorySlidingWindow struct {
	policy WindowPolicy
	now    func() time.Time

	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
}

func NewMemorySlidingWindow(policy WindowPolicy) *MemorySlidingWindow {
	return &MemorySlidingWindow{
		policy: policy,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

func (w *MemorySlidingWindow) Allow(_ context.Context, key string) (Decision, error) {
	now := w.now()
	cutoff := now.Add(-w.policy.Window)

	w.mu.Lock()
	defer w.mu.Unlock()

	if now.Sub(w.lastSweep) >= sweepEvery {
		for k, hits := range w.hits {
			if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
				delete(w.hits, k)
			}
		}
		w.lastSweep = now
	}

	hits := w.hits[key]
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	hits = hits[i:]

	if len(hits) >= w.policy.Limit {
		w.hits[key] = hits
		return Decision{RetryAfter: hits[0].Sub(cutoff)}, nil
	}
	hits = append(hits, now)
	w.hits[key] = hits
	return Decision{Allowed: true, Remaining: w.policy.Limit - len(hits)}, nil
}

func (w *MemorySlidingWindow) keys() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.hits)
}
