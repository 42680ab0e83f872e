package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/turtacn/pushgate/internal/application/dto"
	"github.com/turtacn/pushgate/internal/config"
	"github.com/turtacn/pushgate/pkg/errors"
	"github.com/turtacn/pushgate/pkg/logger"
)

// idleLimiterTTL is how long an unused per-client bucket is kept.
const idleLimiterTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// NewIPRateLimiter creates a limiter allowing rps requests per second with
// the given burst for each client.
func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(rps)))
	}
	return &IPRateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow reports whether ip may make a request now.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cl, ok := l.clients[ip]
	if !ok {
		l.evictIdle(now)
		cl = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// evictIdle drops buckets unused for idleLimiterTTL. Called with mu held.
func (l *IPRateLimiter) evictIdle(now time.Time) {
	for ip, cl := range l.clients {
		if now.Sub(cl.lastSeen) > idleLimiterTTL {
			delete(l.clients, ip)
		}
	}
}

// RateLimitMiddleware creates a new per-IP rate limiting middleware.
func RateLimitMiddleware(limiter *IPRateLimiter, cfg *config.RateLimitConfig, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if !limiter.Allow(ip) {
			log.Warn(c.Request.Context(), "rate limit exceeded", logger.String("client_ip", ip), logger.Int("burst", limiter.burst))
			c.Header("Retry-After", strconv.Itoa(1))
			dto.AbortWithError(c, errors.ErrRateLimitExceeded)
			return
		}

		c.Next()
	}
}
