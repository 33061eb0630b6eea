package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockTTL     = 5 * time.Second
	defaultLockWait    = 2 * time.Second
	defaultLockBackoff = 10 * time.Millisecond
	// expiryGrace keeps expired records readable for a while so that callers
	// observe "expired" rather than "not found".
	expiryGrace = time.Minute
)

// The user index never outlives its longest session: insert and update push
// its PTTL up to the session key's. Insert also drops ids whose session key
// has already expired.
const insertSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
for _, id in ipairs(redis.call("SMEMBERS", KEYS[2])) do
  if redis.call("EXISTS", ARGV[4] .. id) == 0 then
    redis.call("SREM", KEYS[2], id)
  end
end
redis.call("SADD", KEYS[2], ARGV[3])
local ttl = tonumber(ARGV[2])
if redis.call("PTTL", KEYS[2]) < ttl then
  redis.call("PEXPIRE", KEYS[2], ttl)
end
return 1
`

const updateSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("SADD", KEYS[2], ARGV[3])
local ttl = tonumber(ARGV[2])
if redis.call("PTTL", KEYS[2]) < ttl then
  redis.call("PEXPIRE", KEYS[2], ttl)
end
return 1
`

// deleteUserSessionsScript removes every indexed session and the index itself
// in one step, so a session inserted concurrently is either deleted here or
// indexed after the index is gone.
const deleteUserSessionsScript = `
local removed = 0
for _, id in ipairs(redis.call("SMEMBERS", KEYS[1])) do
  removed = removed + redis.call("DEL", ARGV[1] .. id)
end
redis.call("DEL", KEYS[1])
return removed
`

// deleteSessionScript reads the owning user id from the encoded record so the
// user index can be cleaned in the same atomic step.
const deleteSessionScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
redis.call("DEL", KEYS[1])
local user_len = string.byte(data, 2)
if user_len then
  local user_id = string.sub(data, 3, 2 + user_len)
  redis.call("SREM", ARGV[1] .. user_id, ARGV[2])
end
return 1
`

const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	insertSessionLua = redis.NewScript(insertSessionScript)
	updateSessionLua = redis.NewScript(updateSessionScript)
	deleteSessionLua = redis.NewScript(deleteSessionScript)
	deleteUserLua    = redis.NewScript(deleteUserSessionsScript)
	releaseLockLua   = redis.NewScript(releaseLockScript)
)

// RedisConfig configures a [RedisBackend].
type RedisConfig struct {
	// Prefix namespaces every key. Defaults to "as".
	Prefix string
	// LockTTL bounds how long an abandoned lock survives.
	LockTTL time.Duration
	// LockWait bounds how long Get(forUpdate) waits for a held lock.
	LockWait time.Duration
}

// RedisBackend stores sessions in Redis.
//
// Keys:
//
//	<prefix>:s:<id>     encoded session, PX = time to expiration + grace
//	<prefix>:u:<user>   set of session ids owned by user, PX >= its longest session
//	<prefix>:l:<id>     row lock held by one Tx
type RedisBackend struct {
	redis    redis.UniversalClient
	prefix   string
	lockTTL  time.Duration
	lockWait time.Duration
}

// NewRedisBackend creates a session backend on the given Redis client.
func NewRedisBackend(client redis.UniversalClient, cfg RedisConfig) *RedisBackend {
	if cfg.Prefix == "" {
		cfg.Prefix = "as"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = defaultLockWait
	}
	return &RedisBackend{
		redis:    client,
		prefix:   cfg.Prefix,
		lockTTL:  cfg.LockTTL,
		lockWait: cfg.LockWait,
	}
}

func (b *RedisBackend) sessionPrefix() string {
	return b.prefix + ":s:"
}

func (b *RedisBackend) key(sessionID string) string {
	return b.sessionPrefix() + sessionID
}

func (b *RedisBackend) userPrefix() string {
	return b.prefix + ":u:"
}

func (b *RedisBackend) userKey(userID string) string {
	return b.userPrefix() + userID
}

func (b *RedisBackend) lockKey(sessionID string) string {
	return b.prefix + ":l:" + sessionID
}

// Begin opens a unit of work. No Redis command is issued until the first operation.
func (b *RedisBackend) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &redisTx{backend: b, owner: uuid.NewString(), locks: map[string]struct{}{}}, nil
}

// Ping checks Redis availability.
func (b *RedisBackend) Ping(ctx context.Context) error {
	if err := b.redis.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func keyTTL(expiration time.Time) time.Duration {
	ttl := time.Until(expiration) + expiryGrace
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

type redisTx struct {
	backend *RedisBackend
	owner   string
	locks   map[string]struct{}
	done    bool
}

func (t *redisTx) Insert(ctx context.Context, s *Session) error {
	if t.done {
		return ErrTxDone
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}
	b := t.backend
	res, err := insertSessionLua.Run(ctx, b.redis,
		[]string{b.key(s.ID), b.userKey(s.UserID)},
		data, keyTTL(s.Expiration).Milliseconds(), s.ID, b.sessionPrefix(),
	).Int64()
	if err != nil {
		return unavailable(err)
	}
	if res == 0 {
		return ErrDuplicate
	}
	return nil
}

func (t *redisTx) Get(ctx context.Context, id string, forUpdate bool) (*Session, error) {
	if t.done {
		return nil, ErrTxDone
	}
	if forUpdate {
		if err := t.lock(ctx, id); err != nil {
			return nil, err
		}
	}

	data, err := t.backend.redis.Get(ctx, t.backend.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}

	s, err := Decode(data)
	if err != nil {
		return nil, unavailable(fmt.Errorf("corrupt session record: %w", err))
	}
	s.ID = id
	return s, nil
}

func (t *redisTx) UpdateExpiration(ctx context.Context, id string, expiration time.Time) error {
	if t.done {
		return ErrTxDone
	}
	b := t.backend
	data, err := b.redis.Get(ctx, b.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return unavailable(err)
	}
	s, err := Decode(data)
	if err != nil {
		return unavailable(fmt.Errorf("corrupt session record: %w", err))
	}
	s.Expiration = expiration
	encoded, err := Encode(s)
	if err != nil {
		return err
	}

	res, err := updateSessionLua.Run(ctx, b.redis, []string{b.key(id), b.userKey(s.UserID)},
		encoded, keyTTL(expiration).Milliseconds(), id,
	).Int64()
	if err != nil {
		return unavailable(err)
	}
	if res == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *redisTx) Delete(ctx context.Context, id string) (bool, error) {
	if t.done {
		return false, ErrTxDone
	}
	b := t.backend
	res, err := deleteSessionLua.Run(ctx, b.redis, []string{b.key(id)}, b.userPrefix(), id).Int64()
	if err != nil {
		return false, unavailable(err)
	}
	return res == 1, nil
}

// DeleteAllForUser returns how many live sessions were removed. Ids whose
// keys already expired are dropped from the index without being counted.
func (t *redisTx) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	if t.done {
		return 0, ErrTxDone
	}
	b := t.backend
	removed, err := deleteUserLua.Run(ctx, b.redis, []string{b.userKey(userID)}, b.sessionPrefix()).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return int(removed), nil
}

// Flush is a no-op: Redis writes are applied as they are issued.
func (t *redisTx) Flush(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	return nil
}

func (t *redisTx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	return t.finish(ctx)
}

func (t *redisTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	return t.finish(ctx)
}

func (t *redisTx) finish(ctx context.Context) error {
	t.done = true
	var errs []error
	for id := range t.locks {
		if err := releaseLockLua.Run(ctx, t.backend.redis, []string{t.backend.lockKey(id)}, t.owner).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	t.locks = nil
	if len(errs) > 0 {
		return unavailable(errors.Join(errs...))
	}
	return nil
}

func (t *redisTx) lock(ctx context.Context, id string) error {
	if _, held := t.locks[id]; held {
		return nil
	}
	b := t.backend
	key := b.lockKey(id)
	deadline := time.Now().Add(b.lockWait)

	for {
		ok, err := b.redis.SetNX(ctx, key, t.owner, b.lockTTL).Result()
		if err != nil {
			return unavailable(err)
		}
		if ok {
			t.locks[id] = struct{}{}
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLockTimeout
		}

		timer := time.NewTimer(defaultLockBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return unavailable(ctx.Err())
		case <-timer.C:
		}
	}
}
