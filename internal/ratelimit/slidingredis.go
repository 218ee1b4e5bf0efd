package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow trims entries older than the window and records the event only
// when the caller is still under the limit, so rejected attempts do not push
// the window forward. Scores are unix milliseconds.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  count = count + 1
  allowed = 1
end
local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end
return {allowed, count, reset}
`)

// Limiter is a sliding-window limiter over Redis sorted sets. OTP sends are
// bounded per phone number and address lookups per client IP through it.
type Limiter struct {
	Client *redis.Client
	Prefix string
	Now    func() time.Time
}

// Allow records an event for key when it fits within max per window. reset is
// when the oldest counted event leaves the window. A nil client or a
// non-positive limit disables limiting.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error) {
	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}
	if l.Client == nil || max <= 0 || window <= 0 {
		return true, max, now.Add(window), nil
	}

	windowMS := window.Milliseconds()
	if windowMS < 1 {
		windowMS = 1
	}
	res, err := slidingWindow.Run(ctx, l.Client, []string{l.key(key)},
		now.UnixMilli(), windowMS, max, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return false, 0, now.Add(window), err
	}

	remaining = max - int(res[1])
	if remaining < 0 {
		remaining = 0
	}
	return res[0] == 1, remaining, time.UnixMilli(res[2]), nil
}

func (l Limiter) key(key string) string {
	if l.Prefix == "" || strings.HasSuffix(l.Prefix, ":") {
		return l.Prefix + key
	}
	return l.Prefix + ":" + key
}

// PhoneKey is the limiter key for OTP sends to phone within a channel.
func PhoneKey(channel, phone string) string {
	return "otp:" + channel + ":" + phone
}

// IPKey is the limiter key for per-client-IP limits. Requests without a
// resolvable address share one bucket.
func IPKey(ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
