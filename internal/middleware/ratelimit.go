package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyedRateLimiter gives every key (a client IP here) its own token bucket.
// Buckets idle for longer than idleTTL are dropped by Prune.
type KeyedRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*visitor
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedRateLimiter allows perMinute requests per key per minute with a
// burst of the same size, and prunes idle keys in the background until
// Stop is called.
func NewKeyedRateLimiter(perMinute int) *KeyedRateLimiter {
	krl := &KeyedRateLimiter{
		limiters: make(map[string]*visitor),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		idleTTL:  10 * time.Minute,
		done:     make(chan struct{}),
	}
	go krl.cleanup()
	return krl
}

func (krl *KeyedRateLimiter) Allow(key string) bool {
	krl.mu.Lock()
	v, ok := krl.limiters[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(krl.limit, krl.burst)}
		krl.limiters[key] = v
	}
	v.lastSeen = time.Now()
	krl.mu.Unlock()

	return v.limiter.Allow()
}

// Prune drops keys not seen since before now-idleTTL.
func (krl *KeyedRateLimiter) Prune(now time.Time) {
	krl.mu.Lock()
	defer krl.mu.Unlock()
	for key, v := range krl.limiters {
		if now.Sub(v.lastSeen) > krl.idleTTL {
			delete(krl.limiters, key)
		}
	}
}

func (krl *KeyedRateLimiter) Len() int {
	krl.mu.Lock()
	defer krl.mu.Unlock()
	return len(krl.limiters)
}

func (krl *KeyedRateLimiter) Stop() {
	krl.stopOnce.Do(func() { close(krl.done) })
}

func (krl *KeyedRateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			krl.Prune(now)
		case <-krl.done:
			return
		}
	}
}

// RateLimit rejects requests over the per-IP budget with 429. It keys on
// r.RemoteAddr, which chi's RealIP middleware has already rewritten.
func RateLimit(krl *KeyedRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !krl.Allow(clientIP(r)) {
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
