package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter allows at most maxPerWindow requests per client within a
// sliding window. State is process-local.
type RateLimiter struct {
	mu           sync.Mutex
	maxPerWindow int
	window       time.Duration
	hits         map[string][]time.Time
	now          func() time.Time
	lastSweep    time.Time
}

// NewRateLimiter creates a limiter with a sliding window.
func NewRateLimiter(maxPerWindow int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxPerWindow: maxPerWindow,
		window:       window,
		hits:         make(map[string][]time.Time),
		now:          time.Now,
	}
}

// Allow records a request from client if it is within the limit. When it is
// not, retryAfter is how long until the oldest recorded request expires.
func (rl *RateLimiter) Allow(client string) (allowed bool, remaining int, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)
	rl.sweep(now, cutoff)

	recent := prune(rl.hits[client], cutoff)
	if len(recent) >= rl.maxPerWindow {
		rl.hits[client] = recent
		return false, 0, recent[0].Add(rl.window).Sub(now)
	}

	recent = append(recent, now)
	rl.hits[client] = recent
	return true, rl.maxPerWindow - len(recent), 0
}

// sweep drops idle clients at most once per window.
func (rl *RateLimiter) sweep(now, cutoff time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now
	for client, ts := range rl.hits {
		if kept := prune(ts, cutoff); len(kept) == 0 {
			delete(rl.hits, client)
		} else {
			rl.hits[client] = kept
		}
	}
}

// prune keeps the timestamps after cutoff. ts is in ascending order.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

// Limit returns a middleware that answers 429 once a client address exceeds
// the limiter. The address is the request's RemoteAddr, so forwarded headers
// only count when chi's RealIP ran first.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, retryAfter := rl.Allow(clientAddr(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.maxPerWindow))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			respondError(w, http.StatusTooManyRequests, "Too many pledges submitted, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
