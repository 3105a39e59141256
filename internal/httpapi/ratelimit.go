package httpapi

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TokenBucket takes one token for key.
type TokenBucket interface {
	Take(ctx context.Context, key string) (BucketDecision, error)
}

// BucketDecision reports the outcome of one Take.
type BucketDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int64
	RetryAfter time.Duration
}

var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
	tokens = capacity
	last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
	local elapsed = math.max(0, now_ms - last_refill)
	local intervals = math.floor(elapsed / interval_ms)
	if intervals > 0 then
		tokens = math.min(capacity, tokens + (intervals * refill_tokens))
		last_refill = last_refill + (intervals * interval_ms)
	end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

// RedisTokenBucket keeps bucket state in Redis and refills it atomically in a Lua script.
type RedisTokenBucket struct {
	client redis.Scripter
	cfg    RateLimitConfig
	now    func() time.Time
}

// NewRedisTokenBucket builds a bucket from a validated rate limit config.
func NewRedisTokenBucket(client redis.Scripter, cfg RateLimitConfig) *RedisTokenBucket {
	return &RedisTokenBucket{client: client, cfg: cfg, now: time.Now}
}

func (bucket *RedisTokenBucket) Take(ctx context.Context, key string) (BucketDecision, error) {
	args := []any{
		bucket.now().UnixMilli(),
		bucket.cfg.Capacity,
		bucket.cfg.RefillTokens,
		bucket.cfg.RefillInterval.Milliseconds(),
		int64(bucket.cfg.TTL / time.Second),
	}
	values, err := tokenBucketScript.Run(ctx, bucket.client, []string{bucket.cfg.Prefix + ":" + key}, args...).Result()
	if err != nil {
		return BucketDecision{}, fmt.Errorf("token bucket script: %w", err)
	}
	decision, err := parseBucketResult(values)
	if err != nil {
		return BucketDecision{}, err
	}
	decision.Limit = bucket.cfg.Capacity
	return decision, nil
}

func parseBucketResult(values any) (BucketDecision, error) {
	parts, ok := values.([]any)
	if !ok || len(parts) != 3 {
		return BucketDecision{}, fmt.Errorf("token bucket script: unexpected result %#v", values)
	}
	return BucketDecision{
		Allowed:    asInt64(parts[0]) == 1,
		Remaining:  asInt64(parts[1]),
		RetryAfter: time.Duration(asInt64(parts[2])) * time.Millisecond,
	}, nil
}

func asInt64(value any) int64 {
	switch typed := value.(type) {
	case int64:
		return typed
	case int32:
		return int64(typed)
	case int:
		return int64(typed)
	case float64:
		return int64(typed)
	case string:
		if parsed, err := strconv.ParseInt(typed, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}

// rateLimit charges one token per request to the calling account. Bucket errors let the request through.
func rateLimit(bucket TokenBucket, logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if bucket == nil {
			ctx.Next()
			return
		}
		key := rateKey(ctx)
		decision, err := bucket.Take(ctx.Request.Context(), key)
		if err != nil {
			logger.Warn("rate limit unavailable", zap.String("key", key), zap.Error(err))
			ctx.Next()
			return
		}
		if decision.Limit > 0 {
			ctx.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		}
		ctx.Header("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		if !decision.Allowed {
			seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
			if seconds < 0 {
				seconds = 0
			}
			ctx.Header("Retry-After", strconv.Itoa(seconds))
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse("too_many_requests", "rate limit exceeded"))
			return
		}
		ctx.Next()
	}
}

func rateKey(ctx *gin.Context) string {
	subject := "anon"
	if claims := getClaims(ctx); claims != nil && claims.GetUserID() != "" {
		subject = claims.GetUserID()
	}
	return strings.Join([]string{"user", subject, "route", ctx.Request.Method + " " + ctx.FullPath()}, ":")
}
