package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter admits or refuses one request for a key, usually a client IP.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// SlidingWindowLimiter admits at most limit requests per key within any span of
// windowSize. It keeps state in process, so each Lambda instance counts on its own.
type SlidingWindowLimiter struct {
	mu         sync.Mutex
	hits       map[string][]time.Time
	limit      int
	windowSize time.Duration
	now        func() time.Time
}

func NewSlidingWindowLimiter(limit int, windowSize time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		hits:       make(map[string][]time.Time),
		limit:      limit,
		windowSize: windowSize,
		now:        time.Now,
	}
}

// NewIPRateLimiter guards the admin endpoint in a single process.
func NewIPRateLimiter(requestsPerMinute int) *SlidingWindowLimiter {
	return NewSlidingWindowLimiter(requestsPerMinute, time.Minute)
}

func (l *SlidingWindowLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.windowSize)

	// hits are ordered, so expired ones form a prefix
	recent := l.hits[key]
	for len(recent) > 0 && !recent[0].After(cutoff) {
		recent = recent[1:]
	}

	if len(recent) >= l.limit {
		l.hits[key] = recent
		return false, nil
	}
	l.hits[key] = append(recent, now)
	return true, nil
}

func (l *SlidingWindowLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.hits, key)
	l.mu.Unlock()
	return nil
}
