package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/permission"
)

// PostgresSchema creates the users table. Apply it before the session schema.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
);
`

const (
	pgUniqueViolation = "23505"

	userColumns = `id, username, password_hash, role, is_active, created_at`

	selectUserByIDSQL       = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	selectUserByUsernameSQL = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	insertUserSQL           = `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	updateUserSQL           = `UPDATE users SET username = $2, password_hash = $3, role = $4, is_active = $5 WHERE id = $1`
	listUsersAscSQL         = `SELECT ` + userColumns + ` FROM users ORDER BY username ASC LIMIT $1 OFFSET $2`
	listUsersDescSQL        = `SELECT ` + userColumns + ` FROM users ORDER BY username DESC LIMIT $1 OFFSET $2`
)

// PostgresStore reads and writes the users table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies [PostgresSchema].
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, PostgresSchema); err != nil {
		return persistence(err)
	}
	return nil
}

func (s *PostgresStore) ReadByID(ctx context.Context, id string) (*sessionauth.User, error) {
	return s.readOne(ctx, selectUserByIDSQL, id)
}

func (s *PostgresStore) ReadByUsername(ctx context.Context, username string) (*sessionauth.User, error) {
	return s.readOne(ctx, selectUserByUsernameSQL, username)
}

func (s *PostgresStore) readOne(ctx context.Context, query, arg string) (*sessionauth.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sessionauth.ErrUserNotFound
		}
		return nil, persistence(err)
	}
	return u, nil
}

func (s *PostgresStore) Create(ctx context.Context, u *sessionauth.User) error {
	_, err := s.db.ExecContext(ctx, insertUserSQL,
		u.ID, u.Username, u.PasswordHash, string(u.Role), u.Active, u.CreatedAt.UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return sessionauth.ErrUsernameTaken
		}
		return persistence(err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, u *sessionauth.User) error {
	res, err := s.db.ExecContext(ctx, updateUserSQL,
		u.ID, u.Username, u.PasswordHash, string(u.Role), u.Active)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return sessionauth.ErrUsernameTaken
		}
		return persistence(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistence(err)
	}
	if n == 0 {
		return sessionauth.ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, q sessionauth.ListUsersQuery) ([]sessionauth.User, error) {
	query := listUsersAscSQL
	if q.Descending {
		query = listUsersDescSQL
	}
	rows, err := s.db.QueryContext(ctx, query, q.Limit, q.Offset)
	if err != nil {
		return nil, persistence(err)
	}
	defer rows.Close()

	users := make([]sessionauth.User, 0, q.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, persistence(err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence(err)
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*sessionauth.User, error) {
	var (
		u    sessionauth.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.Active, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = permission.Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func persistence(err error) error {
	return fmt.Errorf("%w: %v", sessionauth.ErrPersistence, err)
}
