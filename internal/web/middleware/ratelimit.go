package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimit allows rate requests per window for each client address and
// answers 429 beyond that. A non-positive rate disables limiting.
func RateLimit(rate int, window time.Duration) func(http.Handler) http.Handler {
	if rate <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	rl := newLimiter(rate, window, time.Now)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(clientKey(r.RemoteAddr)) {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded","code":"RATE001"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// limiter is a fixed-window counter per client. Stale entries are swept
// while allowing, at most once per window.
type limiter struct {
	mu        sync.Mutex
	rate      int
	window    time.Duration
	now       func() time.Time
	lastSweep time.Time
	clients   map[string]*bucket
}

type bucket struct {
	start time.Time
	used  int
}

func newLimiter(rate int, w time.Duration, now func() time.Time) *limiter {
	return &limiter{
		rate:      rate,
		window:    w,
		now:       now,
		lastSweep: now(),
		clients:   make(map[string]*bucket),
	}
}

func (l *limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.window {
		for k, c := range l.clients {
			if now.Sub(c.start) > l.window {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.clients[key]
	if !ok || now.Sub(c.start) > l.window {
		l.clients[key] = &bucket{start: now, used: 1}
		return true
	}
	if c.used >= l.rate {
		return false
	}
	c.used++
	return true
}

func clientKey(remote string) string {
	if addr, ok := remoteAddr(remote); ok {
		return addr.String()
	}
	return remote
}
