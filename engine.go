package sessionauth

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	internalaudit "github.com/MrEthical07/sessionauth/internal/audit"
	"github.com/MrEthical07/sessionauth/internal/flows"
	"github.com/MrEthical07/sessionauth/internal/rate"
	"github.com/MrEthical07/sessionauth/jwt"
	"github.com/MrEthical07/sessionauth/permission"
	"github.com/MrEthical07/sessionauth/session"
)

// Engine holds the process-wide, immutable parts of the authentication core.
// Per-request state lives in [Request]. Build one with [New].
type Engine struct {
	config   Config
	logger   logrus.FieldLogger
	now      func() time.Time
	backend  session.Backend
	sessions *session.Manager
	codec    *jwt.Codec
	resolver *permission.Resolver
	users    UserStore
	hasher   PasswordHasher
	throttle *rate.Limiter
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	flows    flows.Service
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Resolver returns the role resolver built from the configured hierarchy.
func (e *Engine) Resolver() *permission.Resolver {
	return e.resolver
}

func (e *Engine) Logger() logrus.FieldLogger {
	return e.logger
}

// Ping checks the session backend.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.backend.Ping(ctx); err != nil {
		return persistence(err)
	}
	return nil
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.metrics.Value(MetricAuditDropped)
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) flowDeps() flows.Deps {
	return flows.Deps{
		Resolve: flows.ResolveDeps{
			ExtractSessionID: e.codec.ExtractSessionID,
			Issue:            e.codec.Issue,
			Sessions:         e.sessions,
		},
		Login: flows.LoginDeps{
			LookupUser:     e.lookupLoginUser,
			UserNotFound:   ErrUserNotFound,
			VerifyPassword: e.hasher.Verify,
			Issue:          e.codec.Issue,
			Sessions:       e.sessions,
		},
		Logout: flows.LogoutDeps{Sessions: e.sessions},
		Revoke: flows.RevokeDeps{Sessions: e.sessions},
	}
}

func (e *Engine) lookupLoginUser(ctx context.Context, username string) (*flows.LoginUser, error) {
	u, err := e.users.ReadByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return &flows.LoginUser{ID: u.ID, PasswordHash: u.PasswordHash, Active: u.Active}, nil
}
