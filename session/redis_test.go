package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisBackendTest(t *testing.T, cfg RedisConfig) (*RedisBackend, *redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backend := NewRedisBackend(rdb, cfg)
	return backend, rdb, func() {
		rdb.Close()
		mr.Close()
	}
}

func testSession(id, userID string) *Session {
	return &Session{
		ID:         id,
		UserID:     userID,
		Expiration: time.Now().Add(time.Hour).Truncate(time.Second).UTC(),
	}
}

func begin(t *testing.T, b Backend) Tx {
	t.Helper()
	tx, err := b.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return tx
}

func TestRedisInsertGet(t *testing.T) {
	backend, _, done := newRedisBackendTest(t, RedisConfig{})
	defer done()
	ctx := context.Background()
	tx := begin(t, backend)

	s := testSession("sid-1", "u-1")
	if err := tx.Insert(ctx, s); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := tx.Get(ctx, "sid-1", false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != s.ID || got.UserID != s.UserID || !got.Expiration.Equal(s.Expiration) {
		t.Fatalf("got %+v, want %+v", got, s)
	}
}

func TestRedisInsertDuplicate(t *testing.T) {
	backend, _, done := newRedisBackendTest(t, RedisConfig{})
	defer done()
	ctx := context.Background()
	tx := begin(t, backend)

	if err := tx.Insert(ctx, testSession("sid-1", "u-1")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Insert(ctx, testSession("sid-1", "u-2")); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := tx.Get(ctx, "sid-1", false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != "u-1" {
		t.Fatalf("duplicate insert overwrote record: %+v", got)
	}
}

func TestRedisGetMissing(t *testing.T) {
	backend, _, done := newRedisBackendTest(t, RedisConfig{})
	defer done()
	tx := begin(t, backend)

	if _, err := tx.Get(context.Background(), "nope", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisUpdateExpiration(t *testing.T) {
	backend, _, done := newRedisBackendTest(t, RedisConfig{})
	defer done()
	ctx := context.Background()
	tx := begin(t, backend)

	s := testSession("sid-1", "u-1")
	if err := tx.Insert(ctx, s); err != nil {
		t.Fatalf("insert: %v", err)
	}
	next := s.Expiration.Add(time.Hour)
	if err := tx.UpdateExpiration(ctx, s.ID, next); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := tx.Get(ctx, s.ID, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Expiration.Equal(next) {
		t.Fatalf("expiration = %v, want %v", got.Expiration, next)
	}

	if err := tx.UpdateExpiration(ctx, "missing", next); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisDeleteIdempotentAndIndex(t *testing.T) {
	backend, rdb, done := newRedisBackendTest(t, RedisConfig{})
	defer done()
	ctx := context.Background()
	tx := begin(t, backend)

	s := testSession("sid-1", "u-1")
	if err := tx.Insert(ctx, s); err != nil {
		t.Fatalf("insert: %v", err)
	}

	removed, err := tx.Delete(ctx, s.ID)
	if err != nil || !removed {
		t.Fatalf("first delete = %v, %v", removed, err)
	}
	removed, err = tx.Delete(ctx, s.ID)
	if err != nil || removed {
		t.Fatalf("second delete = %v, %v", removed, err)
	}

	members, err := rdb.SMembers(ctx, backend.userKey("u-1")).Result()
	if err != nil {
		t.Fatalf("smembers: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expected no user index members, got %v", members)
	}
}

func TestRedisDeleteAllForUser(t *testing.T) {
	backend, _, done := newRedisBackendTest(t, RedisConfig{})
	defer done()
	ctx := context.Background()
	tx := begin(t, backend)

	for _, id := range []string{"a", "b", "c"} {
		if err := tx.Insert(ctx, testSession(id, "u-1")); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	if err := tx.Insert(ctx, testSession("other", "u-2")); err != nil {
		t.Fatalf("insert other: %v", err)
	}
	// Stale index entry for a session that is already gone.
	if _, err := tx.Delete(ctx, "c"); err != nil {
		t.Fatalf("delete c: %v", err)
	}

	n, err := tx.DeleteAllForUser(ctx, "u-1")
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if n != 2 {
		t.Fatalf("removed %d sessions, want 2", n)
	}
	for _, id := range []string{"a", "b"} {
		if _, err := tx.Get(ctx, id, false); !errors.Is(err, ErrNotFound) {
			t.Fatalf("session %s still present: %v", id, err)
		}
	}
	if _, err := tx.Get(ctx, "other", false); err != nil {
		t.Fatalf("other user's session removed: %v", err)
	}

	n, err = tx.DeleteAllForUser(ctx, "nobody")
	if err != nil || n != 0 {
		t.Fatalf("delete all for unknown user = %d, %v", n, err)
	}
}

func newRedisIndexTest(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisBackend(rdb, RedisConfig{}), mr
}

func sessionExpiring(id, userID string, in time.Duration) *Session {
	return &Session{ID: id, UserID: userID, Expiration: time.Now().Add(in).Truncate(time.Second).UTC()}
}

func TestRedisUserIndexExpiresWithSessions(t *testing.T) {
	backend, mr := newRedisIndexTest(t)
	ctx := context.Background()
	tx := begin(t, backend)

	for i := 0; i < 50; i++ {
		if err := tx.Insert(ctx, sessionExpiring(fmt.Sprintf("sid-%d", i), "u1", time.Minute)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if ttl := mr.TTL("as:u:u1"); ttl < time.Minute {
		t.Fatalf("user index ttl %s shorter than its sessions", ttl)
	}

	mr.FastForward(time.Hour)
	if mr.Exists("as:u:u1") {
		members, _ := mr.Members("as:u:u1")
		t.Fatalf("user index outlived its sessions with %d members", len(members))
	}
}

func TestRedisInsertPrunesExpiredIndexEntries(t *testing.T) {
	backend, mr := newRedisIndexTest(t)
	ctx := context.Background()
	tx := begin(t, backend)

	if err := tx.Insert(ctx, sessionExpiring("short", "u1", time.Minute)); err != nil {
		t.Fatalf("insert short: %v", err)
	}
	if err := tx.Insert(ctx, sessionExpiring("long", "u1", time.Hour)); err != nil {
		t.Fatalf("insert long: %v", err)
	}
	mr.FastForward(5 * time.Minute)
	if err := tx.Insert(ctx, sessionExpiring("fresh", "u1", time.Hour)); err != nil {
		t.Fatalf("insert fresh: %v", err)
	}

	members, err := mr.Members("as:u:u1")
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	sort.Strings(members)
	if len(members) != 2 || members[0] != "fresh" || members[1] != "long" {
		t.Fatalf("unexpected index members %v", members)
	}
}

func TestRedisUpdateExtendsUserIndex(t *testing.T) {
	backend, mr := newRedisIndexTest(t)
	ctx := context.Background()
	tx := begin(t, backend)

	if err := tx.Insert(ctx, sessionExpiring("sid", "u1", time.Minute)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.UpdateExpiration(ctx, "sid", time.Now().Add(2*time.Hour).Truncate(time.Second).UTC()); err != nil {
		t.Fatalf("update: %v", err)
	}
	if ttl := mr.TTL("as:u:u1"); ttl < time.Hour {
		t.Fatalf("renewal did not extend the user index, ttl %s", ttl)
	}

	mr.FastForward(30 * time.Minute)
	if n, err := tx.DeleteAllForUser(ctx, "u1"); err != nil || n != 1 {
		t.Fatalf("renewed session must stay revocable, got %d, %v", n, err)
	}
}

func TestRedisDeleteAllForUserLeavesNoIndex(t *testing.T) {
	backend, mr := newRedisIndexTest(t)
	ctx := context.Background()
	tx := begin(t, backend)

	if err := tx.Insert(ctx, testSession("a", "u1")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n, err := tx.DeleteAllForUser(ctx, "u1"); err != nil || n != 1 {
		t.Fatalf("delete all = %d, %v", n, err)
	}
	if mr.Exists("as:u:u1") || mr.Exists("as:s:a") {
		t.Fatal("revocation left keys behind")
	}

	// a renewal racing the revocation must not resurrect the session
	if err := tx.UpdateExpiration(ctx, "a", time.Now().Add(time.Hour).UTC()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if mr.Exists("as:u:u1") {
		t.Fatal("failed renewal recreated the user index")
	}

	// sessions created after revocation are indexed afresh
	if err := tx.Insert(ctx, testSession("b", "u1")); err != nil {
		t.Fatalf("insert b: %v", err)
	}
	if n, err := tx.DeleteAllForUser(ctx, "u1"); err != nil || n != 1 {
		t.Fatalf("second delete all = %d, %v", n, err)
	}
}

func TestRedisLockBlocksSecondReader(t *testing.T) {
	backend, _, done := newRedisBackendTest(t, RedisConfig{LockWait: 50 * time.Millisecond})
	defer done()
	ctx := context.Background()

	setup := begin(t, backend)
	if err := setup.Insert(ctx, testSession("sid-1", "u-1")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := setup.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	first := begin(t, backend)
	if _, err := first.Get(ctx, "sid-1", true); err != nil {
		t.Fatalf("first locked get: %v", err)
	}
	// Re-reading under a lock the tx already holds must not deadlock.
	if _, err := first.Get(ctx, "sid-1", true); err != nil {
		t.Fatalf("re-entrant locked get: %v", err)
	}

	second := begin(t, backend)
	if _, err := second.Get(ctx, "sid-1", true); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	if !errors.Is(ErrLockTimeout, ErrUnavailable) {
		t.Fatal("lock timeout must be a store availability failure")
	}
	// Unlocked reads are not blocked.
	if _, err := second.Get(ctx, "sid-1", false); err != nil {
		t.Fatalf("plain get while locked: %v", err)
	}

	if err := first.Commit(ctx); err != nil {
		t.Fatalf("commit first: %v", err)
	}
	if _, err := second.Get(ctx, "sid-1", true); err != nil {
		t.Fatalf("locked get after release: %v", err)
	}
	if err := second.Rollback(ctx); err != nil {
		t.Fatalf("rollback second: %v", err)
	}
}

func TestRedisLockSerializesRenewals(t *testing.T) {
	backend, _, done := newRedisBackendTest(t, RedisConfig{LockWait: 2 * time.Second})
	defer done()
	ctx := context.Background()

	base := testSession("sid-1", "u-1")
	setup := begin(t, backend)
	if err := setup.Insert(ctx, base); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = setup.Commit(ctx)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := backend.Begin(ctx)
			if err != nil {
				errs <- err
				return
			}
			defer tx.Rollback(ctx)

			s, err := tx.Get(ctx, "sid-1", true)
			if err != nil {
				errs <- err
				return
			}
			if err := tx.UpdateExpiration(ctx, s.ID, s.Expiration.Add(time.Second)); err != nil {
				errs <- err
				return
			}
			errs <- tx.Commit(ctx)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("worker error: %v", err)
		}
	}

	tx := begin(t, backend)
	got, err := tx.Get(ctx, "sid-1", false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := base.Expiration.Add(workers * time.Second)
	if !got.Expiration.Equal(want) {
		t.Fatalf("expiration = %v, want %v (lost update)", got.Expiration, want)
	}
}

func TestRedisFinishedTxRejectsWork(t *testing.T) {
	backend, _, done := newRedisBackendTest(t, RedisConfig{})
	defer done()
	ctx := context.Background()
	tx := begin(t, backend)

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := tx.Insert(ctx, testSession("sid", "u")); !errors.Is(err, ErrTxDone) {
		t.Fatalf("expected ErrTxDone, got %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback after commit should be a no-op: %v", err)
	}
}

func TestRedisUnavailable(t *testing.T) {
	backend, _, done := newRedisBackendTest(t, RedisConfig{})
	done()
	ctx := context.Background()

	if err := backend.Ping(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from ping, got %v", err)
	}
	tx := begin(t, backend)
	if _, err := tx.Get(ctx, "sid", false); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from get, got %v", err)
	}
}
