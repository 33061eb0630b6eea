package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/session"
	"github.com/MrEthical07/sessionauth/user"
)

// runtime holds the process-wide resources behind an engine.
type runtime struct {
	engine  *sessionauth.Engine
	closers []func()
}

func (r *runtime) Close() {
	if r.engine != nil {
		r.engine.Close()
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func openPostgres(url string) (*sql.DB, error) {
	if url == "" {
		return nil, errors.New("database.postgres_url is required (env: SESSIONAUTH_DATABASE_URL)")
	}
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	return db, nil
}

// newRuntime wires storage from cfg. With memory set, sessions live in an
// embedded miniredis and users in process memory; nothing survives a restart.
func newRuntime(ctx context.Context, memory bool) (*runtime, error) {
	rt := &runtime{}
	b := sessionauth.New().WithConfig(cfg).WithLogger(logger)
	if cfg.Audit.Enabled {
		b.WithAuditSink(sessionauth.NewLogrusSink(logger))
	}

	switch {
	case memory:
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		rt.closers = append(rt.closers, mr.Close)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		b.WithRedis(client).WithUserStore(user.NewMemoryStore())
		logger.WithField("addr", mr.Addr()).Warn("using in-memory storage")

	default:
		db, err := openPostgres(cfg.Database.PostgresURL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		b.WithUserStore(user.NewPostgresStore(db))

		if cfg.Session.Backend == sessionauth.BackendPostgres {
			b.WithSessionBackend(session.NewPostgresBackend(db))
		} else {
			client := redis.NewUniversalClient(&redis.UniversalOptions{
				Addrs:    []string{cfg.Redis.Addr},
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			rt.closers = append(rt.closers, func() { _ = client.Close() })
			b.WithRedis(client)
		}
	}

	engine, err := b.Build()
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.engine = engine

	if err := engine.Ping(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}
