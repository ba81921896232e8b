package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is an exported constant or variable used by the session store.
var ErrNotFound = errors.New("session not found")

// ErrAlreadyRevoked is an exported constant or variable used by the session store.
var ErrAlreadyRevoked = errors.New("session already revoked")

// ErrDuplicate is an exported constant or variable used by the session store.
var ErrDuplicate = errors.New("duplicate session id")

// ErrUnavailable wraps backend transport failures; callers may retry with
// backoff, the store never retries internally.
var ErrUnavailable = errors.New("session store unavailable")

// Store is the persistence contract for refresh sessions. Implementations
// must provide atomic conditional revocation: of N concurrent Revoke calls on
// the same live session, exactly one returns nil and the rest return
// ErrAlreadyRevoked.
type Store interface {
	// Create inserts a new session row. Returns ErrDuplicate if the session
	// id already exists.
	Create(ctx context.Context, sess *Session) error

	// Find returns the row by session id, or ErrNotFound. Revocation and
	// expiry policy stay with the caller; Find returns revoked and expired
	// rows as long as they still exist.
	Find(ctx context.Context, sessionID string) (*Session, error)

	// Revoke sets revoked_at = at if and only if it is currently unset.
	// Returns ErrAlreadyRevoked when another caller won the race, or
	// ErrNotFound when no such row exists.
	Revoke(ctx context.Context, sessionID string, at time.Time) error

	// RevokeAll revokes every non-revoked session belonging to a principal
	// and returns the number of rows affected.
	RevokeAll(ctx context.Context, principalID string, at time.Time) (int64, error)
}
