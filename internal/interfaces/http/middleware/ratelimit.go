package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// RateLimiter decides whether the caller identified by key may proceed.
type RateLimiter interface {
	Allow(key string) (bool, RateLimitInfo)
}

// RateLimitInfo is the limiter state reported to clients.
type RateLimitInfo struct {
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

// TokenBucketLimiter is an in-memory per-key token bucket.
type TokenBucketLimiter struct {
	rate      float64
	burstSize int
	idleTTL   time.Duration
	now       func() time.Time

	mu      sync.Mutex
	buckets map[string]*tokenBucket
	sweepAt time.Time
}

// NewTokenBucketLimiter allows rate requests per second with bursts of
// burstSize. Buckets idle for longer than idleTTL are dropped.
func NewTokenBucketLimiter(rate float64, burstSize int, idleTTL time.Duration) *TokenBucketLimiter {
	if burstSize < 1 {
		burstSize = 1
	}
	return &TokenBucketLimiter{
		rate:      rate,
		burstSize: burstSize,
		idleTTL:   idleTTL,
		now:       time.Now,
		buckets:   make(map[string]*tokenBucket),
	}
}

func (l *TokenBucketLimiter) Allow(key string) (bool, RateLimitInfo) {
	now := l.now()

	l.mu.Lock()
	if l.idleTTL > 0 && now.After(l.sweepAt) {
		l.sweepLocked(now)
		l.sweepAt = now.Add(l.idleTTL)
	}
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &tokenBucket{tokens: float64(l.burstSize), lastRefill: now}
		l.buckets[key] = bucket
	}
	l.mu.Unlock()

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	bucket.tokens = math.Min(float64(l.burstSize), bucket.tokens+now.Sub(bucket.lastRefill).Seconds()*l.rate)
	bucket.lastRefill = now

	info := RateLimitInfo{Limit: l.burstSize}
	if bucket.tokens >= 1 {
		bucket.tokens--
		info.Remaining = int(bucket.tokens)
		return true, info
	}
	if l.rate > 0 {
		info.RetryAfter = time.Duration((1 - bucket.tokens) / l.rate * float64(time.Second))
	}
	return false, info
}

func (l *TokenBucketLimiter) sweepLocked(now time.Time) {
	for k, b := range l.buckets {
		b.mu.Lock()
		idle := now.Sub(b.lastRefill) > l.idleTTL
		b.mu.Unlock()
		if idle {
			delete(l.buckets, k)
		}
	}
}

func (l *TokenBucketLimiter) BucketCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimit rejects callers over their budget with 429. The key is the
// authenticated owner, falling back to the client IP.
func RateLimit(limiter RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := OwnerID(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		ok, info := limiter.Allow(key)
		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		if !ok {
			secs := int(math.Ceil(info.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(max(secs, 1)))
			AbortWithError(c, errors.New(errors.ErrCodeTooManyRequests, "rate limit exceeded"))
			return
		}
		c.Next()
	}
}

//Personal.AI order the ending
