package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

const (
	defaultRPS   = 5
	defaultBurst = 10
)

// limiterPool hands out one token bucket per caller key: the API key for
// authenticated requests, the remote ip otherwise. Buckets are created on
// first sight and live for the life of the process.
type limiterPool struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rps     rate.Limit
	burst   int
}

func newLimiterPool(cfg SecConfig) *limiterPool {
	rps := rate.Limit(cfg.RPS)
	if rps <= 0 {
		rps = defaultRPS
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	return &limiterPool{
		buckets: make(map[string]*rate.Limiter),
		rps:     rps,
		burst:   burst,
	}
}

// Allow reports whether the caller behind key may proceed right now.
func (p *limiterPool) Allow(key string) bool {
	p.mu.Lock()
	l, ok := p.buckets[key]
	if !ok {
		l = rate.NewLimiter(p.rps, p.burst)
		p.buckets[key] = l
	}
	p.mu.Unlock()
	return l.Allow()
}
