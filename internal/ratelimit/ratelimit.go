// Package ratelimit applies per-route-class, per-client token-bucket limits.
// State is process-local and approximate; the goal is bounding abuse, not a
// distributed guarantee.
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"example.com/quest/internal/observability"
)

const staleAfter = 10 * time.Minute

// Limiter tracks one token bucket per client address for a route class.
type Limiter struct {
	class    string
	perMin   int
	mu       sync.Mutex
	clients  map[string]*client
	lastScan time.Time
	now      func() time.Time
}

type client struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// NewLimiter builds a Limiter allowing perMin requests per minute per client,
// with a burst of the same size.
func NewLimiter(class string, perMin int) *Limiter {
	return &Limiter{
		class:   class,
		perMin:  perMin,
		clients: make(map[string]*client),
		now:     time.Now,
	}
}

// Allow reports whether the client may proceed.
func (l *Limiter) Allow(clientAddr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	c, ok := l.clients[clientAddr]
	if !ok {
		c = &client{bucket: rate.NewLimiter(rate.Limit(float64(l.perMin)/60.0), l.perMin)}
		l.clients[clientAddr] = c
	}
	c.lastSeen = now
	return c.bucket.Allow()
}

// sweep drops buckets idle past staleAfter, at most once per minute.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastScan) < time.Minute {
		return
	}
	l.lastScan = now
	for addr, c := range l.clients {
		if now.Sub(c.lastSeen) > staleAfter {
			delete(l.clients, addr)
		}
	}
}

// Wrap rejects over-limit requests with 429 before the handler runs.
func (l *Limiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(ClientAddr(r)) {
			observability.RecordRateLimited(l.class)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"type":"rate_limited","detail":"too many requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientAddr extracts the client IP from the request, ignoring the port.
func ClientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
