package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window limiter.
type RateLimitConfig struct {
	// Max requests per key and window. Zero or less disables limiting.
	Max    int
	Window time.Duration
	// KeyFunc picks the bucket of a request. Defaults to the client IP.
	KeyFunc func(*http.Request) string
}

// window holds the counts of the current and the previous fixed window of
// one key.
type window struct {
	prev      float64
	curr      float64
	currStart time.Time
}

type limiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	windows map[string]*window
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &limiter{cfg: cfg, windows: make(map[string]*window)}
}

// take consumes one request for key. The estimate weights the previous
// window by how much of it still overlaps the sliding window ending at now.
func (l *limiter) take(key string, now time.Time) (remaining int, resetAt time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	size := l.cfg.Window
	w, found := l.windows[key]
	if !found {
		w = &window{currStart: now.Truncate(size)}
		l.windows[key] = w
	}

	if elapsed := now.Sub(w.currStart); elapsed >= size {
		if elapsed >= 2*size {
			w.prev = 0
		} else {
			w.prev = w.curr
		}
		w.curr = 0
		w.currStart = now.Truncate(size)
	}

	overlap := 1 - now.Sub(w.currStart).Seconds()/size.Seconds()
	estimate := w.prev*max(overlap, 0) + w.curr
	resetAt = w.currStart.Add(size)

	if estimate >= float64(l.cfg.Max) {
		return 0, resetAt, false
	}
	w.curr++
	return max(int(float64(l.cfg.Max)-estimate-1), 0), resetAt, true
}

// sweep forgets keys idle for two windows.
func (l *limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, w := range l.windows {
		if now.Sub(w.currStart) >= 2*l.cfg.Window {
			delete(l.windows, key)
		}
	}
}

func (l *limiter) sweepEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

// RateLimit limits requests per key with a sliding window. Every response
// carries X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset;
// refused requests get 429 with Retry-After. Idle keys are never evicted,
// see RateLimitWithCleanup.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newLimiter(cfg).middleware()
}

// RateLimitWithCleanup is RateLimit plus a goroutine, stopped with ctx,
// evicting idle keys every two windows.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go l.sweepEvery(ctx, 2*l.cfg.Window)
	return l.middleware()
}

func (l *limiter) middleware() Middleware {
	return func(next http.Handler) http.Handler {
		if l.cfg.Max <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, resetAt, ok := l.take(l.cfg.KeyFunc(r), time.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !ok {
				wait := max(time.Until(resetAt), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// remote address host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
