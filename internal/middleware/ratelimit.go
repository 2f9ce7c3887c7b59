package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const idleLimiterTTL = 10 * time.Minute

type caller struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// callerRateLimiter keeps one token bucket per API subject, falling back to
// the client IP for unauthenticated requests.
type callerRateLimiter struct {
	mu      sync.Mutex
	callers map[string]*caller
	rps     rate.Limit
	burst   int
	now     func() time.Time
}

func newCallerRateLimiter(rps float64, burst int) *callerRateLimiter {
	return &callerRateLimiter{
		callers: make(map[string]*caller),
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

func (rl *callerRateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.evictIdle(now)

	c, exists := rl.callers[key]
	if !exists {
		c = &caller{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.callers[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

// evictIdle drops limiters unused for idleLimiterTTL. Callers hold rl.mu.
func (rl *callerRateLimiter) evictIdle(now time.Time) {
	for key, c := range rl.callers {
		if now.Sub(c.lastSeen) > idleLimiterTTL {
			delete(rl.callers, key)
		}
	}
}

func callerKey(r *http.Request) string {
	if subject, ok := SubjectFromContext(r.Context()); ok {
		return "sub:" + subject
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return "ip:" + ip
}

// RateLimit returns middleware that limits requests per caller.
// rps is the allowed requests per second, burst is the maximum burst size.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	limiter := newCallerRateLimiter(rps, burst)
	retryAfter := "1"
	if rps > 0 && rps < 1 {
		retryAfter = strconv.Itoa(int(1/rps + 0.5))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.getLimiter(callerKey(r)).Allow() {
				w.Header().Set("Retry-After", retryAfter)
				writeJSONError(w, http.StatusTooManyRequests, "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
