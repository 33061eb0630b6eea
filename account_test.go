package sessionauth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/sessionauth/permission"
)

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", permission.RoleUser)
	inactive := env.addUser(t, "bob", permission.RoleUser)
	inactive.Active = false
	if err := env.users.Update(context.Background(), inactive); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "success", username: "alice", password: testPassword},
		{name: "wrong password", username: "alice", password: "wrong-password-1", wantErr: ErrInvalidCredentials},
		{name: "unknown user", username: "nobody", password: testPassword, wantErr: ErrInvalidCredentials},
		{name: "inactive", username: "bob", password: testPassword, wantErr: ErrAccountInactive},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			req := env.engine.NewRequest("")
			defer req.Close(ctx)

			res, err := env.engine.Login(ctx, req, tc.username, tc.password)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				if !errors.Is(err, ErrAuthentication) {
					t.Fatalf("login failures must be authentication errors, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Login failed: %v", err)
			}
			if res.Token == "" || res.SessionID == "" {
				t.Fatal("expected token and session id")
			}
			if exp := env.expiration(t, res.Token); !exp.Equal(res.Expiration) {
				t.Fatalf("token exp %v != session expiration %v", exp, res.Expiration)
			}
			if issued, ok := req.IssuedToken(); !ok || issued != res.Token {
				t.Fatal("login token must be handed to the transport")
			}
		})
	}
}

func TestLoginRejectsAuthenticatedRequest(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", permission.RoleUser)
	ctx := context.Background()

	req := env.request(t, "alice")
	if _, err := env.engine.Login(ctx, req, "alice", testPassword); !errors.Is(err, ErrAlreadyAuthenticated) {
		t.Fatalf("expected ErrAlreadyAuthenticated, got %v", err)
	}
	if _, err := env.engine.SignUp(ctx, req, "carol", testPassword); !errors.Is(err, ErrAlreadyAuthenticated) {
		t.Fatalf("expected ErrAlreadyAuthenticated from SignUp, got %v", err)
	}
}

func TestLoginWithStaleTokenProceeds(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", permission.RoleUser)
	ctx := context.Background()

	stale := env.login(t, "alice")
	env.clock.Advance(2 * time.Hour)

	req := env.engine.NewRequest(stale)
	defer req.Close(ctx)
	if _, err := env.engine.Login(ctx, req, "alice", testPassword); err != nil {
		t.Fatalf("Login with expired token failed: %v", err)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", permission.RoleUser)
	ctx := context.Background()

	token := env.login(t, "alice")
	req := env.engine.NewRequest(token)
	defer req.Close(ctx)

	removed, err := env.engine.Logout(ctx, req)
	if err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if !removed {
		t.Fatal("expected session to be removed")
	}
	if !req.TokenCleared() {
		t.Fatal("logout must clear the client token")
	}
	if _, err := req.Identity().Current(ctx); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication after logout, got %v", err)
	}

	again := env.engine.NewRequest(token)
	defer again.Close(ctx)
	if _, err := env.engine.Logout(ctx, again); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication for a logged out token, got %v", err)
	}
}

func TestSignUp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := env.engine.NewRequest("")
	defer req.Close(ctx)

	u, err := env.engine.SignUp(ctx, req, "carol", testPassword)
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if u.Role != permission.RoleUser || !u.Active || u.ID == "" {
		t.Fatalf("unexpected user %+v", u)
	}
	if u.PasswordHash == testPassword {
		t.Fatal("password must be hashed")
	}

	if _, err := env.engine.SignUp(ctx, req, "carol", testPassword); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if _, err := env.engine.SignUp(ctx, req, "dave", "short"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for short password, got %v", err)
	}

	if _, err := env.engine.Login(ctx, req, "carol", testPassword); err != nil {
		t.Fatalf("Login after SignUp failed: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "root", permission.RoleSuperAdmin)
	env.addUser(t, "ann", permission.RoleAdmin)
	env.addUser(t, "alice", permission.RoleUser)
	env.addUser(t, "bob", permission.RoleUser)
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   string
		target  string
		wantErr error
	}{
		{name: "self", actor: "alice", target: "alice"},
		{name: "peer user", actor: "alice", target: "bob", wantErr: ErrAuthorization},
		{name: "admin on user", actor: "ann", target: "bob"},
		{name: "admin on super admin", actor: "ann", target: "root", wantErr: ErrAuthorization},
		{name: "super admin on admin", actor: "root", target: "ann"},
		{name: "unknown target", actor: "ann", target: "nobody", wantErr: ErrUserNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := env.request(t, tc.actor)
			err := env.engine.ChangePassword(ctx, req, tc.target, "another-password-42")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ChangePassword failed: %v", err)
			}
			u, _ := env.users.ReadByUsername(ctx, tc.target)
			ok, err := env.hasher.Verify("another-password-42", u.PasswordHash)
			if err != nil || !ok {
				t.Fatalf("new password does not verify: ok=%v err=%v", ok, err)
			}
			// Restore for subsequent cases that log in as this user.
			hash, _ := env.hasher.Hash(testPassword)
			u.PasswordHash = hash
			_ = env.users.Update(ctx, u)
		})
	}
}

func TestAccountAuditTrail(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", permission.RoleUser)
	ctx := context.Background()

	bad := env.engine.NewRequest("")
	_, _ = env.engine.Login(ctx, bad, "alice", "wrong-password-1")
	bad.Close(ctx)

	req := env.request(t, "alice")
	if _, err := env.engine.Logout(ctx, req); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	var got []string
	for _, ev := range env.drainAudit() {
		got = append(got, ev.EventType)
		if ev.EventType == auditEventLoginFailure && ev.Error != string(auditErrInvalidCredentials) {
			t.Fatalf("unexpected login failure code %q", ev.Error)
		}
	}
	want := []string{auditEventLoginFailure, auditEventLoginSuccess, auditEventLogout}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestLoginThrottle(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Throttle.MaxAttempts = 2
		cfg.Throttle.Window = time.Minute
	})
	env.addUser(t, "alice", permission.RoleUser)
	ctx := context.Background()

	login := func(pass string) error {
		req := env.engine.NewRequest("")
		defer req.Close(ctx)
		_, err := env.engine.Login(ctx, req, "alice", pass)
		return err
	}

	for i := 0; i < 2; i++ {
		if err := login("wrong-password-1"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if err := login(testPassword); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}

	env.mr.FastForward(time.Minute + time.Second)
	if err := login(testPassword); err != nil {
		t.Fatalf("Login after window failed: %v", err)
	}

	// success clears the counter
	if err := login("wrong-password-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := login(testPassword); err != nil {
		t.Fatalf("Login after reset failed: %v", err)
	}
}

func TestLoginThrottleHoldsUnderParallelGuesses(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Throttle.MaxAttempts = 2
		cfg.Throttle.Window = time.Minute
	})
	env.addUser(t, "alice", permission.RoleUser)
	ctx := context.Background()

	var verified, throttled atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := env.engine.NewRequest("")
			defer req.Close(ctx)
			_, err := env.engine.Login(ctx, req, "alice", "wrong-guess-123")
			switch {
			case errors.Is(err, ErrInvalidCredentials):
				verified.Add(1)
			case errors.Is(err, ErrTooManyAttempts):
				throttled.Add(1)
			default:
				t.Errorf("unexpected login error %v", err)
			}
		}()
	}
	wg.Wait()

	if got := verified.Load(); got != 2 {
		t.Fatalf("expected 2 guesses to reach password verification, got %d", got)
	}
	if got := throttled.Load(); got != 28 {
		t.Fatalf("expected 28 throttled guesses, got %d", got)
	}
}

func TestLoginThrottleDisabled(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Throttle.Enabled = false
	})
	env.addUser(t, "alice", permission.RoleUser)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		req := env.engine.NewRequest("")
		_, err := env.engine.Login(ctx, req, "alice", "wrong-password-1")
		req.Close(ctx)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
}
