package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PabloGalante/tutorchat/internal/domain"
)

const keyPrefix = "ratelimit:"

// incrementScript counts a request only while the window is below the ceiling.
// Returns {count, allowed, pttl}.
var incrementScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local ttl = redis.call('PTTL', KEYS[1])
if current >= tonumber(ARGV[2]) then
  return {current, 0, ttl}
end
current = redis.call('INCR', KEYS[1])
if current == 1 or ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {current, 1, ttl}
`)

// Counter is a domain.Counter shared by every relay instance pointing at the
// same Redis. The check and the increment run in one script, so concurrent
// requests cannot lose increments.
type Counter struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewCounter(client redis.UniversalClient) *Counter {
	return &Counter{client: client, now: time.Now}
}

// Increment implements domain.Counter.
func (c *Counter) Increment(ctx context.Context, key string, window time.Duration, ceiling int) (domain.Usage, error) {
	res, err := incrementScript.Run(ctx, c.client, []string{keyPrefix + key}, window.Milliseconds(), ceiling).Int64Slice()
	if err != nil {
		return domain.Usage{}, fmt.Errorf("redis rate increment: %w", err)
	}
	if len(res) != 3 {
		return domain.Usage{}, fmt.Errorf("redis rate increment: unexpected reply %v", res)
	}

	ttl := time.Duration(res[2]) * time.Millisecond
	if ttl < 0 {
		ttl = window
	}
	return domain.Usage{
		Count:   res[0],
		Allowed: res[1] == 1,
		ResetAt: c.now().Add(ttl),
	}, nil
}

// Close releases the underlying client.
func (c *Counter) Close() error {
	return c.client.Close()
}

var _ domain.Counter = (*Counter)(nil)
