package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/voicelink/internal/config"
)

const limiterIdleTTL = 2 * time.Minute

type keyLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// rateLimiter keeps one token bucket per client key. Idle buckets are dropped
// lazily while handling requests.
type rateLimiter struct {
	mu        sync.Mutex
	m         map[string]*keyLimiter
	r         rate.Limit
	b         int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiter(r rate.Limit, burst int, ttl time.Duration) *rateLimiter {
	return &rateLimiter{
		m:   make(map[string]*keyLimiter),
		r:   r,
		b:   burst,
		ttl: ttl,
		now: time.Now,
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > rl.ttl {
		for k, v := range rl.m {
			if now.Sub(v.seen) > rl.ttl {
				delete(rl.m, k)
			}
		}
		rl.lastSweep = now
	}

	kl, ok := rl.m[key]
	if !ok {
		kl = &keyLimiter{lim: rate.NewLimiter(rl.r, rl.b)}
		rl.m[key] = kl
	}
	kl.seen = now
	return kl.lim.AllowN(now, 1)
}

func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.m)
}

// newConfiguredLimiter returns nil when cfg disables limiting.
func newConfiguredLimiter(cfg config.RateLimitConfig) *rateLimiter {
	if cfg.RPS <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return newRateLimiter(rate.Limit(cfg.RPS), burst, limiterIdleTTL)
}

// RateLimitMiddleware limits each client IP per route. A non-positive RPS disables it.
// The room endpoint is not behind it; RoomHandlers limits per room and participant instead.
func RateLimitMiddleware(cfg config.RateLimitConfig) gin.HandlerFunc {
	rl := newConfiguredLimiter(cfg)
	if rl == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if !rl.allow(c.ClientIP() + "|" + path) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many requests"})
			return
		}
		c.Next()
	}
}
