package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

// PostgresSchema creates the session table. Expects users(id) to exist.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS auth_sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expiration TIMESTAMP WITH TIME ZONE NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_auth_sessions_user_id ON auth_sessions(user_id);
`

const (
	pgUniqueViolation = "23505"

	insertSessionSQL = `INSERT INTO auth_sessions (id, user_id, expiration) VALUES ($1, $2, $3)`
	selectSessionSQL = `SELECT id, user_id, expiration FROM auth_sessions WHERE id = $1`
	updateSessionSQL = `UPDATE auth_sessions SET expiration = $2 WHERE id = $1`
	deleteSessionSQL = `DELETE FROM auth_sessions WHERE id = $1 RETURNING id`
	deleteForUserSQL = `DELETE FROM auth_sessions WHERE user_id = $1`
)

// PostgresBackend stores sessions in the auth_sessions table.
type PostgresBackend struct {
	db *sql.DB
}

// NewPostgresBackend wraps an open database handle.
func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// Begin starts a database transaction.
func (b *PostgresBackend) Begin(ctx context.Context) (Tx, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable(err)
	}
	return &postgresTx{tx: tx}, nil
}

// Ping checks database availability.
func (b *PostgresBackend) Ping(ctx context.Context) error {
	return unavailable(b.db.PingContext(ctx))
}

// Migrate applies [PostgresSchema].
func (b *PostgresBackend) Migrate(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, PostgresSchema)
	return unavailable(err)
}

type postgresTx struct {
	tx   *sql.Tx
	done bool
}

func (t *postgresTx) Insert(ctx context.Context, s *Session) error {
	_, err := t.tx.ExecContext(ctx, insertSessionSQL, s.ID, s.UserID, s.Expiration.UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return ErrDuplicate
		}
		return unavailable(err)
	}
	return nil
}

func (t *postgresTx) Get(ctx context.Context, id string, forUpdate bool) (*Session, error) {
	query := selectSessionSQL
	if forUpdate {
		query += " FOR UPDATE"
	}

	var s Session
	err := t.tx.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.UserID, &s.Expiration)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	s.Expiration = s.Expiration.UTC()
	return &s, nil
}

func (t *postgresTx) UpdateExpiration(ctx context.Context, id string, expiration time.Time) error {
	res, err := t.tx.ExecContext(ctx, updateSessionSQL, id, expiration.UTC())
	if err != nil {
		return unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *postgresTx) Delete(ctx context.Context, id string) (bool, error) {
	var deleted string
	err := t.tx.QueryRowContext(ctx, deleteSessionSQL, id).Scan(&deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, unavailable(err)
	}
	return true, nil
}

func (t *postgresTx) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	res, err := t.tx.ExecContext(ctx, deleteForUserSQL, userID)
	if err != nil {
		return 0, unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable(err)
	}
	return int(n), nil
}

// Flush is a no-op: statements execute immediately inside the transaction.
func (t *postgresTx) Flush(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	return nil
}

func (t *postgresTx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	return unavailable(t.tx.Commit())
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return unavailable(err)
	}
	return nil
}
