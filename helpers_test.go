package sessionauth

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/sessionauth/jwt"
	"github.com/MrEthical07/sessionauth/password"
	"github.com/MrEthical07/sessionauth/permission"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "correct-horse-battery"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type mockUserStore struct {
	mu      sync.Mutex
	users   map[string]User
	failAll error
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: map[string]User{}}
}

func (s *mockUserStore) ReadByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return nil, s.failAll
	}
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (s *mockUserStore) ReadByUsername(_ context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return nil, s.failAll
	}
	for _, u := range s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *mockUserStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return ErrUsernameTaken
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *mockUserStore) Update(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	if _, ok := s.users[u.ID]; !ok {
		return ErrUserNotFound
	}
	s.users[u.ID] = *u
	return nil
}

func (s *mockUserStore) List(_ context.Context, q ListUsersQuery) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if q.Offset >= len(out) {
		return nil, nil
	}
	out = out[q.Offset:]
	if q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

type testEnv struct {
	engine *Engine
	mr     *miniredis.Miniredis
	users  *mockUserStore
	clock  *testClock
	codec  *jwt.Codec
	sink   *ChannelSink
	hasher *password.Bcrypt
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = testSecret
	cfg.Metrics.Enabled = true
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Logging.Level = "panic"
	return cfg
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	mr, rdb := newTestRedis(t)
	clock := newTestClock()
	users := newMockUserStore()
	sink := NewChannelSink(64)
	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt failed: %v", err)
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithPasswordHasher(hasher).
		WithAuditSink(sink).
		WithLogger(NewLogger(cfg.Logging)).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	codec, err := jwt.NewCodec(jwt.Config{
		SigningMethod: jwt.MethodHS256,
		Secret:        []byte(testSecret),
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	return &testEnv{
		engine: engine,
		mr:     mr,
		users:  users,
		clock:  clock,
		codec:  codec,
		sink:   sink,
		hasher: hasher,
	}
}

func (env *testEnv) addUser(t *testing.T, username string, role permission.Role) *User {
	t.Helper()

	hash, err := env.hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	u := &User{
		ID:           "id-" + strings.ReplaceAll(username, " ", "-"),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := env.users.Create(context.Background(), u); err != nil {
		t.Fatalf("Create user failed: %v", err)
	}
	return u
}

// login opens a session for username and returns its token.
func (env *testEnv) login(t *testing.T, username string) string {
	t.Helper()

	ctx := context.Background()
	req := env.engine.NewRequest("")
	defer req.Close(ctx)

	res, err := env.engine.Login(ctx, req, username, testPassword)
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", username, err)
	}
	return res.Token
}

// request opens a request scope authenticated as username.
func (env *testEnv) request(t *testing.T, username string) *Request {
	t.Helper()

	req := env.engine.NewRequest(env.login(t, username))
	t.Cleanup(func() { req.Close(context.Background()) })
	return req
}

func (env *testEnv) expiration(t *testing.T, token string) time.Time {
	t.Helper()

	claims, err := env.codec.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return claims.ExpiresAt.Time.UTC()
}

func (env *testEnv) drainAudit() []AuditEvent {
	env.engine.Close()
	var out []AuditEvent
	for {
		select {
		case ev := <-env.sink.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}
