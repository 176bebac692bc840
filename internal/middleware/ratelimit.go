package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"bugbounty-tracker/internal/api"
	"bugbounty-tracker/internal/metrics"
)

// RateLimiter counts requests per client in fixed windows. A window opens
// with a client's first request and closes Window later; go-cache expiry
// drops the counter when it closes.
type RateLimiter struct {
	Name    string
	Limit   int
	Window  time.Duration
	Message string
	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool
	// Skip exempts matching requests from counting.
	Skip func(r *http.Request) bool

	Logger  *zap.Logger
	Metrics *metrics.Metrics

	counters *cache.Cache
	mu       sync.Mutex
}

func NewRateLimiter(name string, limit int, window time.Duration, message string) *RateLimiter {
	return &RateLimiter{
		Name:     name,
		Limit:    limit,
		Window:   window,
		Message:  message,
		Logger:   zap.NewNop(),
		counters: cache.New(window, window),
	}
}

// Allow records a request from client and reports whether it is within
// the limit, how many requests remain and when the window resets.
func (l *RateLimiter) Allow(client string) (bool, int, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := l.Name + ":" + client
	count := 1
	if err := l.counters.Add(key, count, l.Window); err != nil {
		// Window already open. Increment keeps its expiry.
		n, err := l.counters.IncrementInt(key, 1)
		if err != nil {
			l.counters.Set(key, count, l.Window)
		} else {
			count = n
		}
	}
	reset := time.Now().Add(l.Window)
	if _, exp, found := l.counters.GetWithExpiration(key); found && !exp.IsZero() {
		reset = exp
	}

	remaining := l.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= l.Limit, remaining, reset
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.Skip != nil && l.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}

		client := ClientIP(r, l.TrustProxy)
		ok, remaining, reset := l.Allow(client)

		resetSeconds := int(time.Until(reset).Round(time.Second) / time.Second)
		if resetSeconds < 0 {
			resetSeconds = 0
		}
		h := w.Header()
		h.Set("RateLimit-Limit", strconv.Itoa(l.Limit))
		h.Set("RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("RateLimit-Reset", strconv.Itoa(resetSeconds))

		if !ok {
			l.Logger.Warn("rate limit exceeded",
				zap.String("limiter", l.Name),
				zap.String("client", client),
				zap.String("path", r.URL.Path))
			if l.Metrics != nil {
				l.Metrics.RateLimitedTotal.WithLabelValues(l.Name).Inc()
			}
			h.Set("Retry-After", strconv.Itoa(resetSeconds))
			api.Error(w, http.StatusTooManyRequests, l.Message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the address a request is attributed to.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IsWrite matches requests that change data.
func IsWrite(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
