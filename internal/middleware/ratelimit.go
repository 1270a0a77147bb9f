package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultMaxKeys caps tracked keys so a scan over many hosts or addresses
// cannot grow the map without bound.
const defaultMaxKeys = 100_000

// KeyFunc derives the bucket key for a request.
type KeyFunc func(r *http.Request) string

// ClientKey buckets by client address only.
func ClientKey(r *http.Request) string {
	return clientIP(r)
}

// SiteClientKey buckets by effective site host and client address, so a
// client hammering one tenant does not consume its allowance on others.
func SiteClientKey(r *http.Request) string {
	host := Host(r.Context())
	if host == "" {
		host = r.Host
	}
	return strings.ToLower(host) + "|" + clientIP(r)
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is keyed token-bucket middleware for the public site router.
// Exempt paths (health probes) bypass it.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	maxKeys int
	key     KeyFunc
	exempt  map[string]struct{}
	now     func() time.Time
}

// NewRateLimiter creates a limiter allowing rps sustained requests per
// second with the given burst per key. Keys default to SiteClientKey.
func NewRateLimiter(rps float64, burst int, exemptPaths ...string) *RateLimiter {
	rl := &RateLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Limit(rps),
		burst:   burst,
		maxKeys: defaultMaxKeys,
		key:     SiteClientKey,
		exempt:  make(map[string]struct{}, len(exemptPaths)),
		now:     time.Now,
	}
	for _, p := range exemptPaths {
		rl.exempt[p] = struct{}{}
	}
	return rl
}

// WithKey replaces the bucket key function.
func (rl *RateLimiter) WithKey(fn KeyFunc) *RateLimiter {
	rl.key = fn
	return rl
}

// Handler returns the rate limiting middleware.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := rl.exempt[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		remaining, wait, ok := rl.allow(rl.key(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allow spends one token for key. It returns the tokens left and, when the
// request is rejected, how long until a token is available.
func (rl *RateLimiter) allow(key string) (remaining int, wait time.Duration, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	e, exists := rl.entries[key]
	if !exists {
		if len(rl.entries) >= rl.maxKeys {
			return 0, time.Second, false
		}
		e = &limiterEntry{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.entries[key] = e
	}
	e.lastSeen = now

	if !e.lim.AllowN(now, 1) {
		r := e.lim.ReserveN(now, 1)
		wait = r.DelayFrom(now)
		r.CancelAt(now)
		if !r.OK() || wait <= 0 {
			wait = time.Second
		}
		return 0, wait, false
	}
	return int(e.lim.TokensAt(now)), 0, true
}

// StartCleanup removes keys idle for longer than maxIdle every interval.
// The returned function stops the goroutine.
func (rl *RateLimiter) StartCleanup(interval, maxIdle time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanup(maxIdle)
			}
		}
	}()
	return cancel
}

func (rl *RateLimiter) cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-maxIdle)
	for k, e := range rl.entries {
		if !e.lastSeen.After(cutoff) {
			delete(rl.entries, k)
		}
	}
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

// clientIP uses RemoteAddr only. Proxy headers are resolved by the chi
// RealIP middleware mounted ahead of the limiter, never here.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
