package httpx

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Budget is the number of requests a key may make per window. Name
// separates the counters of budgets charged to the same caller.
type Budget struct {
	Name   string
	Limit  int
	Window time.Duration
}

func (b Budget) window() time.Duration {
	if b.Window <= 0 {
		return time.Minute
	}
	return b.Window
}

// RateDecision is the outcome of charging one request against a budget.
type RateDecision struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// RateLimiter charges requests against per-key budgets.
type RateLimiter interface {
	Allow(ctx context.Context, key string, budget Budget) RateDecision
	Close()
}

type memoryRateLimiter struct {
	mu        sync.Mutex
	windows   map[string]window
	now       func() time.Time
	nextSweep time.Time
}

type window struct {
	used  int
	reset time.Time
}

const memorySweepEvery = 5 * time.Minute

// NewMemoryRateLimiter returns a limiter whose counters live in this process.
func NewMemoryRateLimiter() RateLimiter {
	return newMemoryRateLimiter(time.Now)
}

func newMemoryRateLimiter(now func() time.Time) *memoryRateLimiter {
	return &memoryRateLimiter{windows: make(map[string]window), now: now}
}

func (m *memoryRateLimiter) Allow(_ context.Context, key string, budget Budget) RateDecision {
	if budget.Limit <= 0 {
		return RateDecision{Allowed: true}
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep(now)

	w, ok := m.windows[key]
	if !ok || !now.Before(w.reset) {
		w = window{reset: now.Add(budget.window())}
	}
	if w.used >= budget.Limit {
		return RateDecision{Reset: w.reset}
	}
	w.used++
	m.windows[key] = w
	return RateDecision{Allowed: true, Remaining: budget.Limit - w.used, Reset: w.reset}
}

// sweep drops expired windows at most once per memorySweepEvery. Callers
// hold m.mu.
func (m *memoryRateLimiter) sweep(now time.Time) {
	if now.Before(m.nextSweep) {
		return
	}
	m.nextSweep = now.Add(memorySweepEvery)
	for key, w := range m.windows {
		if !now.Before(w.reset) {
			delete(m.windows, key)
		}
	}
}

func (m *memoryRateLimiter) Close() {}

// withRateLimit charges the request to keyFn's key, falling back to the
// client IP when keyFn has nothing to offer.
func (r *Router) withRateLimit(route string, budget Budget, keyFn func(*http.Request) string, next http.HandlerFunc) http.HandlerFunc {
	if r.limiter == nil || budget.Limit <= 0 {
		return next
	}
	return func(w http.ResponseWriter, req *http.Request) {
		key := keyFn(req)
		if key == "" {
			key = rateLimitKeyIP(req)
		}
		if budget.Name != "" {
			key += ":" + budget.Name
		}
		decision := r.limiter.Allow(req.Context(), key, budget)
		setRateHeaders(w.Header(), budget, decision)
		if !decision.Allowed {
			r.recordRateLimitHit(route, rateMetricKey(key))
			if !decision.Reset.IsZero() {
				secs := int(time.Until(decision.Reset).Round(time.Second).Seconds())
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			}
			writeErrorKind(w, http.StatusTooManyRequests, kindRateLimited, "rate limit exceeded")
			return
		}
		next(w, req)
	}
}

func setRateHeaders(h http.Header, budget Budget, d RateDecision) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(budget.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))
	if !d.Reset.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	}
}

// handlerAuthRate authenticates, then charges reads and writes to separate
// per-user budgets.
func (r *Router) handlerAuthRate(route string, next http.HandlerFunc) http.HandlerFunc {
	read := r.withRateLimit(route, budgetUserRead, r.rateLimitKeyUser, next)
	write := r.withRateLimit(route, budgetUserWrite, r.rateLimitKeyUser, next)
	return r.requireAuth(func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodGet || req.Method == http.MethodHead {
			read(w, req)
			return
		}
		write(w, req)
	})
}

func (r *Router) rateLimitKeyUser(req *http.Request) string {
	if principal, ok := principalFromContext(req.Context()); ok {
		return "user:" + principal.UserID
	}
	return ""
}

// rateLimitKeyIP keys on the connection's peer address. Forwarding headers
// are caller controlled and only go to the audit log.
func rateLimitKeyIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		host = strings.TrimSpace(req.RemoteAddr)
	}
	if host == "" {
		return "ip:unknown"
	}
	return "ip:" + host
}

// rateMetricKey keeps only the key's scope so user IDs never become labels.
func rateMetricKey(key string) string {
	scope, _, ok := strings.Cut(key, ":")
	if !ok || scope == "" {
		return "unknown"
	}
	return scope
}
