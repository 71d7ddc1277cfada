package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"cryptvault/observability"
)

// RateLimit bounds requests per client. A zero RequestsPerSecond disables
// limiting.
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client address.
type RateLimiter struct {
	limit    RateLimit
	mu       sync.Mutex
	visitors map[string]*rateEntry
	clockNow func() time.Time
	idleTTL  time.Duration
}

// NewRateLimiter builds a limiter for limit.
func NewRateLimiter(limit RateLimit) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		visitors: make(map[string]*rateEntry),
		clockNow: time.Now,
		idleTTL:  5 * time.Minute,
	}
}

// Middleware rejects requests over the client's budget with 429.
func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r == nil || r.limit.RequestsPerSecond <= 0 {
			next.ServeHTTP(w, req)
			return
		}
		if !r.allow(clientID(req)) {
			observability.Endpoints().RecordThrottle(req.URL.Path, "rate_limit")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *RateLimiter) allow(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clockNow()
	r.evictIdle(now)
	entry, ok := r.visitors[id]
	if !ok {
		burst := r.limit.Burst
		if burst <= 0 {
			burst = 1
		}
		entry = &rateEntry{limiter: rate.NewLimiter(rate.Limit(r.limit.RequestsPerSecond), burst)}
		r.visitors[id] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (r *RateLimiter) evictIdle(now time.Time) {
	for id, entry := range r.visitors {
		if now.Sub(entry.lastSeen) > r.idleTTL {
			delete(r.visitors, id)
		}
	}
}

func clientID(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if parsed := net.ParseIP(strings.TrimSpace(first)); parsed != nil {
			return parsed.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
