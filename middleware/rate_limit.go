package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"multigateway-api/utils"
)

type RateLimiter struct {
	client *redis.Client
	config RateLimitConfig
	logger *zap.Logger
	now    func() time.Time
}

// RateLimitConfig is a fixed window request budget.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Message  string
	// TrustProxy keys anonymous callers by X-Forwarded-For and friends.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool
}

var DefaultRateLimit = RateLimitConfig{
	Requests: 120,
	Window:   time.Minute,
	Message:  "Rate limit exceeded. Please slow down your requests.",
}

func NewRateLimiter(client *redis.Client, config RateLimitConfig, logger *zap.Logger) *RateLimiter {
	if config.Requests <= 0 || config.Window <= 0 {
		config = DefaultRateLimit
	}
	if config.Message == "" {
		config.Message = DefaultRateLimit.Message
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		client: client,
		config: config,
		logger: logger.With(zap.String("component", "rate_limiter")),
		now:    time.Now,
	}
}

// Middleware limits requests per merchant, or per client IP for
// unauthenticated requests. Redis failures let the request through.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.key(r)
		allowed, remaining, reset, err := rl.Allow(r.Context(), key)
		if err != nil {
			rl.logger.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			rl.logger.Info("rate limit exceeded", zap.String("key", key), zap.String("path", r.URL.Path))
			retryAfter := int64(reset.Sub(rl.now()).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			utils.SendErrorResponse(w, http.StatusTooManyRequests, rl.config.Message)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Allow counts one request against key in the current window.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (allowed bool, remaining int, reset time.Time, err error) {
	now := rl.now()
	windowStart := now.Truncate(rl.config.Window)
	reset = windowStart.Add(rl.config.Window)
	windowKey := fmt.Sprintf("%s:%d", key, windowStart.Unix())

	var incr *redis.IntCmd
	_, err = rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, windowKey)
		pipe.Expire(ctx, windowKey, rl.config.Window+time.Second)
		return nil
	})
	if err != nil {
		return false, 0, time.Time{}, err
	}

	count := int(incr.Val())
	remaining = rl.config.Requests - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= rl.config.Requests, remaining, reset, nil
}

func (rl *RateLimiter) key(r *http.Request) string {
	if merchant := GetMerchant(r.Context()); merchant != nil && merchant.ID != "" {
		return "rate_limit:merchant:" + merchant.ID
	}
	if rl.config.TrustProxy {
		return "rate_limit:ip:" + ClientIP(r)
	}
	return "rate_limit:ip:" + RemoteIP(r)
}

// ClientIP returns the caller's address, preferring proxy headers.
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		ips := strings.Split(ip, ",")
		return strings.TrimSpace(ips[0])
	}

	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}

	return RemoteIP(r)
}

// RemoteIP returns the address of the connected peer, ignoring headers.
func RemoteIP(r *http.Request) string {
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return strings.Trim(ip, "[]")
}
