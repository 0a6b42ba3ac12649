// Package ratelimit implements per-identity token bucket and sliding window
// limiters. The store-backed limiters keep their counters in the database so
// every server instance shares them; the memory limiters are for single-node
// development.
package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/garnizeh/prep/internal/metrics"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// TokenBucketPolicy starts every key with Capacity tokens and adds Refill
// tokens per Interval, never exceeding Capacity.
type TokenBucketPolicy struct {
	Capacity int
	Refill   int
	Interval time.Duration
}

// InterviewPolicy gates interview creation.
var InterviewPolicy = TokenBucketPolicy{Capacity: 12, Refill: 4, Interval: 24 * time.Hour}

// refilled returns the tokens added over elapsed milliseconds.
func (p TokenBucketPolicy) refilled(elapsed int64) float64 {
	return float64(elapsed) * float64(p.Refill) / float64(p.Interval.Milliseconds())
}

// untilTokens returns how long it takes to refill missing tokens.
func (p TokenBucketPolicy) untilTokens(missing float64) time.Duration {
	ms := math.Ceil(missing * float64(p.Interval.Milliseconds()) / float64(p.Refill))
	return time.Duration(ms) * time.Millisecond
}

// WindowPolicy admits at most Limit requests in any Window.
type WindowPolicy struct {
	Limit  int
	Window time.Duration
}

// GeneralPolicy applies to all authenticated API traffic.
var GeneralPolicy = WindowPolicy{Limit: 100, Window: time.Minute}

// BucketStore persists token buckets. fn receives the stored state and
// returns the state to store, atomically per key.
type BucketStore interface {
	UpdateBucket(ctx context.Context, key string, fn func(tokens float64, updated int64, found bool) (float64, int64)) error
}

// HitStore persists sliding window hits.
type HitStore interface {
	RecordHit(ctx context.Context, key string, since, at int64, limit int64) (int64, bool, error)
}

type TokenBucket struct {
	name   string
	store  BucketStore
	policy TokenBucketPolicy
	now    func() time.Time
}

func NewTokenBucket(name string, store BucketStore, policy TokenBucketPolicy) *TokenBucket {
	return &TokenBucket{name: name, store: store, policy: policy, now: time.Now}
}

func (b *TokenBucket) Allow(ctx context.Context, key string) (Decision, error) {
	var d Decision
	nowMs := b.now().UnixMilli()
	capacity := float64(b.policy.Capacity)

	err := b.store.UpdateBucket(ctx, b.name+":"+key, func(tokens float64, updated int64, found bool) (float64, int64) {
		if !found {
			tokens, updated = capacity, nowMs
		}
		if elapsed := nowMs - updated; elapsed > 0 {
			tokens = math.Min(capacity, tokens+b.policy.refilled(elapsed))
		}
		if tokens >= 1 {
			tokens--
			d.Allowed = true
		} else {
			d.RetryAfter = b.policy.untilTokens(1 - tokens)
		}
		d.Remaining = int(tokens)
		return tokens, nowMs
	})
	if err != nil {
		return Decision{}, err
	}
	return d, nil
}

type SlidingWindow struct {
	name   string
	store  HitStore
	policy WindowPolicy
	now    func() time.Time
}

func NewSlidingWindow(name string, store HitStore, policy WindowPolicy) *SlidingWindow {
	return &SlidingWindow{name: name, store: store, policy: policy, now: time.Now}
}

func (w *SlidingWindow) Allow(ctx context.Context, key string) (Decision, error) {
	now := w.now()
	since := now.Add(-w.policy.Window).UnixMilli()
	count, ok, err := w.store.RecordHit(ctx, w.name+":"+key, since, now.UnixMilli(), int64(w.policy.Limit))
	if err != nil {
		return Decision{}, err
	}
	d := Decision{Allowed: ok}
	if ok {
		d.Remaining = w.policy.Limit - int(count) - 1
	} else {
		d.RetryAfter = w.policy.Window
	}
	return d, nil
}

type instrumented struct {
	policy  string
	inner   Limiter
	metrics *metrics.Metrics
}

// WithMetrics counts the decisions of l under policy.
func WithMetrics(policy string, l Limiter, m *metrics.Metrics) Limiter {
	return &instrumented{policy: policy, inner: l, metrics: m}
}

func (i *instrumented) Allow(ctx context.Context, key string) (Decision, error) {
	d, err := i.inner.Allow(ctx, key)
	if err == nil {
		i.metrics.RateLimitDecision(i.policy, d.Allowed)
	}
	return d, err
}
