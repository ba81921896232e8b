package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the DDL for the refresh-session table. Deployments that manage
// migrations externally can apply it themselves instead of calling
// [PostgresStore.InitSchema].
const Schema = `
CREATE TABLE IF NOT EXISTS refresh_sessions (
	session_id   TEXT PRIMARY KEY,
	principal_id TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	expires_at   TIMESTAMPTZ NOT NULL,
	revoked_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS refresh_sessions_principal_idx
	ON refresh_sessions (principal_id) WHERE revoked_at IS NULL;
`

const uniqueViolationCode = "23505"

// PostgresStore is a Postgres-backed [Store] on a pgx connection pool.
// Revocation is a single conditional UPDATE guarded by revoked_at IS NULL,
// which gives the one-winner semantics without any in-process locking.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a [PostgresStore] on the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// InitSchema applies [Schema]. Safe to call repeatedly.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Create describes the create operation and its observable behavior.
//
// Create may return an error when input validation, dependency calls, or security checks fail.
// Create does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *PostgresStore) Create(ctx context.Context, sess *Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO refresh_sessions (session_id, principal_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		sess.SessionID, sess.PrincipalID, sess.CreatedAt, sess.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrDuplicate
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Find describes the find operation and its observable behavior.
//
// Find may return an error when input validation, dependency calls, or security checks fail.
// Find does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *PostgresStore) Find(ctx context.Context, sessionID string) (*Session, error) {
	sess := &Session{}
	err := s.pool.QueryRow(ctx,
		`SELECT session_id, principal_id, created_at, expires_at, revoked_at
		 FROM refresh_sessions WHERE session_id = $1`,
		sessionID,
	).Scan(&sess.SessionID, &sess.PrincipalID, &sess.CreatedAt, &sess.ExpiresAt, &sess.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return sess, nil
}

// Revoke describes the revoke operation and its observable behavior.
//
// Revoke may return an error when input validation, dependency calls, or security checks fail.
// Revoke does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *PostgresStore) Revoke(ctx context.Context, sessionID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE refresh_sessions SET revoked_at = $2
		 WHERE session_id = $1 AND revoked_at IS NULL`,
		sessionID, at,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Zero rows: either the row is gone or another caller won the race.
	var exists bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM refresh_sessions WHERE session_id = $1)`,
		sessionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if exists {
		return ErrAlreadyRevoked
	}
	return ErrNotFound
}

// RevokeAll describes the revokeall operation and its observable behavior.
//
// RevokeAll may return an error when input validation, dependency calls, or security checks fail.
// RevokeAll does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *PostgresStore) RevokeAll(ctx context.Context, principalID string, at time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE refresh_sessions SET revoked_at = $2
		 WHERE principal_id = $1 AND revoked_at IS NULL`,
		principalID, at,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return tag.RowsAffected(), nil
}
