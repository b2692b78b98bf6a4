package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"stafflink/internal/shared/apperror"
	"stafflink/internal/shared/response"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterIdleTTL drops buckets for clients that have gone quiet.
const limiterIdleTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter holds one token bucket per key. Keys are client IP plus
// the request path, so triggering one job does not throttle another.
type KeyedRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	r         rate.Limit
	b         int
	now       func() time.Time
	lastSweep time.Time
}

func NewKeyedRateLimiter(r rate.Limit, b int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		buckets: make(map[string]*bucket),
		r:       r,
		b:       b,
		now:     time.Now,
	}
}

func (k *KeyedRateLimiter) limiter(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	if now.Sub(k.lastSweep) > limiterIdleTTL {
		for key, bk := range k.buckets {
			if now.Sub(bk.lastSeen) > limiterIdleTTL {
				delete(k.buckets, key)
			}
		}
		k.lastSweep = now
	}

	bk, ok := k.buckets[key]
	if !ok {
		bk = &bucket{limiter: rate.NewLimiter(k.r, k.b)}
		k.buckets[key] = bk
	}
	bk.lastSeen = now
	return bk.limiter
}

// Len reports how many buckets are tracked.
func (k *KeyedRateLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

// RateLimitByIP: r = requests per second, b = burst, per client IP and path.
func RateLimitByIP(r rate.Limit, b int) gin.HandlerFunc {
	return rateLimit(NewKeyedRateLimiter(r, b))
}

func rateLimit(k *KeyedRateLimiter) gin.HandlerFunc {
	retryAfter := "1"
	if k.r > 0 && k.r < 1 {
		retryAfter = strconv.Itoa(int(1/float64(k.r) + 0.5))
	}
	return func(c *gin.Context) {
		if !k.limiter(c.ClientIP() + " " + c.Request.URL.Path).Allow() {
			c.Header("Retry-After", retryAfter)
			response.Error(c, http.StatusTooManyRequests, apperror.CodeRateLimited, "Too many requests from this IP", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
