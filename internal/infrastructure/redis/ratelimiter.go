package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// incrWithTTL atomically bumps the window counter and arms its expiry on the
// first hit. Returns {count, ttl_ms}.
var incrWithTTL = goredis.NewScript(`
local c = redis.call("INCR", KEYS[1])
if c == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {c, ttl}
`)

// FixedWindowLimiter counts hits per key in fixed windows. A nil client
// allows everything.
type FixedWindowLimiter struct {
	rdb    *goredis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewFixedWindowLimiter(c *Client, prefix string, limit int, window time.Duration) *FixedWindowLimiter {
	if window <= 0 {
		window = time.Minute
	}
	l := &FixedWindowLimiter{prefix: prefix, limit: limit, window: window, now: time.Now}
	if c != nil {
		l.rdb = c.rdb
	}
	return l
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // 0 if allowed
	ResetAt    time.Time
}

// Allow records one hit for identity. Errors leave the decision to the caller.
func (l *FixedWindowLimiter) Allow(ctx context.Context, identity string) (Decision, error) {
	if l.limit <= 0 || l.rdb == nil {
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}, nil
	}

	key := l.prefix + ":" + identity
	res, err := incrWithTTL.Run(ctx, l.rdb, []string{key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit %s: %w", l.prefix, err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("ratelimit %s: unexpected reply length %d", l.prefix, len(res))
	}

	count := int(res[0])
	ttl := time.Duration(res[1]) * time.Millisecond
	if ttl <= 0 {
		ttl = l.window
	}

	d := Decision{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: max(0, l.limit-count),
		ResetAt:   l.now().Add(ttl),
	}
	if !d.Allowed {
		d.RetryAfter = ttl
	}
	return d, nil
}
