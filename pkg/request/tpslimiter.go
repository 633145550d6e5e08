package request

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type TPSLimiter interface {
	// Allow reports whether one more request under token is allowed right now.
	Allow(token string, tps float64, burst int) bool
	// Limit blocks until a request under token is allowed or ctx is done.
	Limit(ctx context.Context, token string, tps float64, burst int) error
	// Prune drops buckets that have been idle for longer than idle and
	// returns how many were removed.
	Prune(idle time.Duration) int
	Len() int
}

func NewTPSLimiter() TPSLimiter {
	return &multipleBucketLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// multipleBucketLimiter implements TPSLimiter with multiple bucket support.
type multipleBucketLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// get finds the given bucket, if bucket not exist or limit is changed,
// a new bucket will be generated.
func (m *multipleBucketLimiter) get(token string, tps float64, burst int) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[token]
	if !ok || float64(b.limiter.Limit()) != tps || b.limiter.Burst() != burst {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(tps), burst)}
		m.buckets[token] = b
	}
	b.lastSeen = m.now()
	return b.limiter
}

func (m *multipleBucketLimiter) Allow(token string, tps float64, burst int) bool {
	return m.get(token, tps, burst).AllowN(m.now(), 1)
}

func (m *multipleBucketLimiter) Limit(ctx context.Context, token string, tps float64, burst int) error {
	return m.get(token, tps, burst).Wait(ctx)
}

func (m *multipleBucketLimiter) Prune(idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	deadline := m.now().Add(-idle)
	removed := 0
	for token, b := range m.buckets {
		if b.lastSeen.Before(deadline) {
			delete(m.buckets, token)
			removed++
		}
	}
	return removed
}

func (m *multipleBucketLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
