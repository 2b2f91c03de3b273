// Package ratelimit keeps one token bucket per caller key.
package ratelimit

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Limiter hands out a bucket per key. Buckets idle for longer than ttl are
// evicted, so keys for participants that stop calling do not pile up.
type Limiter struct {
	buckets *cache.Cache
	mu      sync.Mutex
	r       rate.Limit
	b       int
	ttl     time.Duration
}

func New(r rate.Limit, b int, ttl time.Duration) *Limiter {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Limiter{
		buckets: cache.New(ttl, 2*ttl),
		r:       r,
		b:       b,
		ttl:     ttl,
	}
}

// Bucket returns the limiter for key and refreshes its expiry.
func (l *Limiter) Bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.buckets.Get(key); ok {
		limiter := v.(*rate.Limiter)
		l.buckets.Set(key, limiter, l.ttl)
		return limiter
	}
	limiter := rate.NewLimiter(l.r, l.b)
	l.buckets.Set(key, limiter, l.ttl)
	return limiter
}

func (l *Limiter) Allow(key string) bool {
	return l.Bucket(key).Allow()
}

// Len reports how many buckets are live.
func (l *Limiter) Len() int {
	return l.buckets.ItemCount()
}
