package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/joabeoliveira/ocupacao/internal/platform/auth"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// UploadRateLimitConfig allows a short burst of uploads and then one file
// every ten seconds per caller. Each upload replaces a whole day of rows.
func UploadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 0.1,
		BurstSize:         5,
	}
}

// quota is the remaining allowance of one caller.
type quota struct {
	left float64
	seen time.Time
}

// limiter keeps one quota per caller key behind a single mutex. Quotas idle
// long enough to have refilled completely are dropped on the next sweep.
type limiter struct {
	cfg    RateLimitConfig
	now    func() time.Time
	mu     sync.Mutex
	quotas map[string]*quota
	swept  time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	return &limiter{cfg: cfg, now: time.Now, quotas: make(map[string]*quota)}
}

// take spends one request for key. When the caller is out of allowance it
// reports how long until the next request would pass.
func (l *limiter) take(key string) (ok bool, remaining int, wait time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	burst := float64(l.cfg.BurstSize)
	l.sweep(now)

	q, found := l.quotas[key]
	if !found {
		q = &quota{left: burst, seen: now}
		l.quotas[key] = q
	}
	q.left = math.Min(burst, q.left+now.Sub(q.seen).Seconds()*l.cfg.RequestsPerSecond)
	q.seen = now

	if q.left < 1 {
		if l.cfg.RequestsPerSecond <= 0 {
			return false, 0, time.Second
		}
		secs := (1 - q.left) / l.cfg.RequestsPerSecond
		return false, 0, time.Duration(secs * float64(time.Second))
	}
	q.left--
	return true, int(q.left), 0
}

func (l *limiter) sweep(now time.Time) {
	if l.cfg.RequestsPerSecond <= 0 {
		return
	}
	full := time.Duration(float64(l.cfg.BurstSize) / l.cfg.RequestsPerSecond * float64(time.Second))
	if now.Sub(l.swept) < full {
		return
	}
	for k, q := range l.quotas {
		if now.Sub(q.seen) >= full {
			delete(l.quotas, k)
		}
	}
	l.swept = now
}

// callerKey prefers the authenticated user so uploaders behind one proxy do
// not share an allowance.
func callerKey(c echo.Context) string {
	if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
		return "user:" + uid
	}
	return "ip:" + c.RealIP()
}

// RateLimit returns a rate limiting middleware keyed by authenticated user,
// falling back to the client IP.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	l := newLimiter(cfg)
	limit := strconv.Itoa(cfg.BurstSize)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, remaining, wait := l.take(callerKey(c))
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
