package sessionauth

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	internalaudit "github.com/MrEthical07/sessionauth/internal/audit"
	"github.com/MrEthical07/sessionauth/internal/flows"
	"github.com/MrEthical07/sessionauth/internal/rate"
	"github.com/MrEthical07/sessionauth/jwt"
	"github.com/MrEthical07/sessionauth/password"
	"github.com/MrEthical07/sessionauth/permission"
	"github.com/MrEthical07/sessionauth/session"
)

// Builder assembles an [Engine]. Each Builder builds at most one engine.
type Builder struct {
	config Config

	backend session.Backend
	redis   redis.UniversalClient

	users     UserStore
	hasher    PasswordHasher
	logger    logrus.FieldLogger
	auditSink AuditSink

	now   func() time.Time
	newID func() (string, error)

	built bool
}

// New starts a builder with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis stores sessions in Redis using the Session section of the config.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSessionBackend sets the session backend directly. It takes precedence
// over WithRedis.
func (b *Builder) WithSessionBackend(backend session.Backend) *Builder {
	b.backend = backend
	return b
}

func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

// WithPasswordHasher overrides the hasher derived from the Password section.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithSessionIDGenerator replaces the random session id source.
func (b *Builder) WithSessionIDGenerator(newID func() (string, error)) *Builder {
	b.newID = newID
	return b
}

// WithClock replaces time.Now for session expiry and token verification.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	logger := b.logger
	if logger == nil {
		logger = NewLogger(cfg.Logging)
	}

	// -------- SESSION BACKEND --------
	backend := b.backend
	if backend == nil {
		if b.redis == nil {
			return nil, errors.New("session backend or redis client required")
		}
		backend = session.NewRedisBackend(b.redis, session.RedisConfig{
			Prefix:   cfg.Session.RedisPrefix,
			LockTTL:  cfg.Session.LockTTL,
			LockWait: cfg.Session.LockWait,
		})
	}

	sessions, err := session.NewManager(session.Config{
		TTL:              cfg.Session.TTL,
		RefreshThreshold: cfg.Session.RefreshThreshold,
		Now:              now,
		NewID:            b.newID,
	})
	if err != nil {
		return nil, err
	}

	// -------- TOKEN CODEC --------
	codec, err := jwt.NewCodec(cfg.codecConfig(now))
	if err != nil {
		return nil, err
	}

	// -------- ROLE GRAPH --------
	graph, err := cfg.roleGraph()
	if err != nil {
		return nil, err
	}

	// -------- PASSWORDS --------
	hasher := b.hasher
	if hasher == nil {
		h, err := password.New(cfg.passwordConfig())
		if err != nil {
			return nil, err
		}
		hasher = h
	}

	engine := &Engine{
		config:   cfg,
		logger:   logger.WithField("component", "sessionauth"),
		now:      now,
		backend:  backend,
		sessions: sessions,
		codec:    codec,
		resolver: permission.NewResolver(graph),
		users:    b.users,
		hasher:   hasher,
		metrics:  NewMetrics(cfg.Metrics),
	}
	// -------- AUDIT --------
	if cfg.Audit.Enabled {
		engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			Now:        now,
			Logger:     engine.logger,
			OnDrop: func(ev internalaudit.Event) {
				engine.metrics.Inc(MetricAuditDropped)
				engine.logger.WithField("event_type", ev.EventType).Debug("audit event dropped")
			},
		}, b.auditSink)
	}
	// -------- LOGIN THROTTLE --------
	if cfg.Throttle.Enabled && b.redis != nil {
		engine.throttle = rate.New(b.redis, rate.Config{
			Prefix:      cfg.Session.RedisPrefix,
			MaxAttempts: cfg.Throttle.MaxAttempts,
			Window:      cfg.Throttle.Window,
		})
	}

	engine.flows = flows.New(engine.flowDeps())

	b.built = true
	return engine, nil
}
