package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// acquireScript counts one attempt and starts the window on the first hit.
// Both steps run in one round trip, so the counter can never be left without
// a TTL.
const acquireScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 or redis.call("PTTL", KEYS[1]) < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`

var acquireLua = redis.NewScript(acquireScript)

// Config holds login throttle tuning.
type Config struct {
	// Prefix namespaces counter keys.
	Prefix string
	// MaxAttempts is the number of attempts allowed per window.
	MaxAttempts int
	// Window is the fixed window length, started by the first attempt.
	Window time.Duration
}

// Limiter counts login attempts per username in Redis.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Acquire takes one attempt from username's budget before the password is
// checked. Concurrent callers each get a distinct count, so at most
// MaxAttempts of them pass per window. Past the budget it returns
// ErrRateLimited.
func (l *Limiter) Acquire(ctx context.Context, username string) error {
	count, err := acquireLua.Run(ctx, l.redis,
		[]string{l.key(username)},
		l.config.Window.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count > int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}

	return nil
}

// Reset clears the counter after a successful login.
func (l *Limiter) Reset(ctx context.Context, username string) error {
	if err := l.redis.Del(ctx, l.key(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) key(username string) string {
	return l.config.Prefix + ":al:" + username
}
