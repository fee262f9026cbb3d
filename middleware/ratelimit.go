package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ipLimiter hands out one token bucket per client IP and forgets buckets that
// have been idle for a while.
type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipBucket
	limit    rate.Limit
	burst    int
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(limit rate.Limit, burst int) *ipLimiter {
	l := &ipLimiter{
		limiters: make(map[string]*ipBucket),
		limit:    limit,
		burst:    burst,
	}
	go l.janitor()
	return l
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.limiters[ip]
	if !ok {
		b = &ipBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

func (l *ipLimiter) janitor() {
	for range time.Tick(10 * time.Minute) {
		l.mu.Lock()
		for ip, b := range l.limiters {
			if time.Since(b.lastSeen) > time.Hour {
				delete(l.limiters, ip)
			}
		}
		l.mu.Unlock()
	}
}

func rateLimitWith(l *ipLimiter, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.get(GetRealIP(c)).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   message,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// SubmissionRateLimit allows 10 claim submissions per hour per IP.
func SubmissionRateLimit() gin.HandlerFunc {
	return rateLimitWith(
		newIPLimiter(rate.Every(time.Hour/10), 10),
		"Submission limit exceeded. Please try again later.",
	)
}

// AutoSaveRateLimit allows 30 auto-saves per minute per IP.
func AutoSaveRateLimit() gin.HandlerFunc {
	return rateLimitWith(
		newIPLimiter(rate.Every(time.Minute/30), 30),
		"Auto-save rate limit exceeded",
	)
}

// ModerateRateLimit allows 100 requests per 15 minutes per IP.
func ModerateRateLimit() gin.HandlerFunc {
	return rateLimitWith(
		newIPLimiter(rate.Every(15*time.Minute/100), 100),
		"Rate limit exceeded",
	)
}
