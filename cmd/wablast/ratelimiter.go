package main

import (
	"net/http"
	"sync"
	"time"

	"wablast/internal/constants"
	apperrors "wablast/internal/errors"
	"wablast/internal/httputil"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter throttles API requests per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	perSec   rate.Limit
	burst    int
	done     chan struct{}
	once     sync.Once
}

func newRateLimiter(perSec, burst int) *rateLimiter {
	if perSec <= 0 {
		perSec = constants.DefaultRateLimitPerSec
	}
	if burst <= 0 {
		burst = constants.DefaultRateLimitBurst
	}

	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		perSec:   rate.Limit(perSec),
		burst:    burst,
		done:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.perSec, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(httputil.GetClientIP(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"code":"` + string(apperrors.ErrCodeRateLimit) + `","message":"too many requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// cleanupLoop drops visitors idle longer than the cleanup interval so the
// map does not grow without bound.
func (rl *rateLimiter) cleanupLoop() {
	interval := constants.DefaultRateLimitCleanupMinute * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-interval)
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if v.lastSeen.Before(cutoff) {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.once.Do(func() { close(rl.done) })
}
