package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladosShikos/losb-back/internal/domain"
)

const keyPrefix = "losb:rl:"

// FixedWindowLimiter counts hits per key in fixed windows:
// INCR key; on the first hit PEXPIRE key window.
// Callers build keys from identity and route.
type FixedWindowLimiter struct {
	rdb *goredis.Client
}

func NewFixedWindowLimiter(c *Client) *FixedWindowLimiter {
	if c == nil {
		return &FixedWindowLimiter{rdb: nil}
	}
	return &FixedWindowLimiter{rdb: c.rdb}
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // 0 if allowed
	ResetAt    time.Time
	Count      int
}

// INCR and PEXPIRE run atomically; returns {count, ttl_ms}.
var fixedWindowScript = goredis.NewScript(`
local c = redis.call("INCR", KEYS[1])
if c == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {c, ttl}
`)

// AllowFixedWindow reports whether one more hit on key fits in limit per window.
// Without redis, or with limit <= 0, everything is allowed.
func (l *FixedWindowLimiter) AllowFixedWindow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 || l.rdb == nil {
		return Decision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	if window < time.Millisecond {
		window = time.Minute
	}

	res, err := fixedWindowScript.Run(ctx, l.rdb, []string{keyPrefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, domain.ErrRedisUnavailable(fmt.Errorf("ratelimit eval: %w", err))
	}
	if len(res) != 2 {
		return Decision{}, domain.ErrRedisUnavailable(fmt.Errorf("ratelimit eval: unexpected result %v", res))
	}

	count := int(res[0])
	ttl := time.Duration(res[1]) * time.Millisecond

	d := Decision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(0, limit-count),
		Count:     count,
		ResetAt:   time.Now().Add(ttl),
	}
	if !d.Allowed {
		d.RetryAfter = window
		if ttl > 0 {
			d.RetryAfter = ttl
		}
	}
	return d, nil
}
