package userstore

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/MrEthical07/memoauth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps accounts in the users table created by Migrate.
//
// The pool is owned by the caller; Postgres never closes it.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) (*Postgres, error) {
	if pool == nil {
		return nil, errors.New("userstore: nil pool")
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) FindUserByEmail(ctx context.Context, email string) (memoauth.User, bool, error) {
	const q = `SELECT email, password_hash, nickname, birth_date, created_at
	             FROM users WHERE email = $1`

	var u memoauth.User
	err := s.pool.QueryRow(ctx, q, email).
		Scan(&u.Email, &u.PasswordHash, &u.Nickname, &u.BirthDate, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return memoauth.User{}, false, nil
	}
	if err != nil {
		return memoauth.User{}, false, mapErr("find user", err)
	}
	return u, true, nil
}

func (s *Postgres) UserExists(ctx context.Context, email string) (bool, error) {
	var ok bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&ok); err != nil {
		return false, mapErr("user exists", err)
	}
	return ok, nil
}

// SaveUser inserts u. The primary key on email turns a concurrent duplicate
// signup into memoauth.ErrEmailAlreadyExists.
func (s *Postgres) SaveUser(ctx context.Context, u memoauth.User) error {
	const q = `INSERT INTO users (email, password_hash, nickname, birth_date, created_at)
	           VALUES ($1, $2, $3, $4, $5)`

	if _, err := s.pool.Exec(ctx, q, u.Email, u.PasswordHash, u.Nickname, u.BirthDate, u.CreatedAt); err != nil {
		return mapErr("save user", err)
	}
	return nil
}

// Ping checks that a connection can be acquired.
func (s *Postgres) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return mapErr("ping", err)
	}
	return nil
}

func mapErr(op string, err error) error {
	if isUniqueViolation(err) {
		return memoauth.ErrEmailAlreadyExists
	}
	if isUnavailable(err) {
		return fmt.Errorf("%w: userstore %s: %v", memoauth.ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("userstore %s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" // unique_violation
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
