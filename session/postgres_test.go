package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Runs only against a real database, e.g.
// TOKENGATE_POSTGRES_DSN=postgres://localhost/tokengate_test go test ./session
func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("TOKENGATE_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TOKENGATE_POSTGRES_DSN not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("pgx pool failed: %v", err)
	}
	t.Cleanup(pool.Close)

	store := NewPostgresStore(pool)
	if err := store.InitSchema(context.Background()); err != nil {
		t.Fatalf("init schema failed: %v", err)
	}
	return store
}

func TestPostgresLifecycle(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	sid := uuid.NewString()
	principal := uuid.NewString()

	if err := store.Create(ctx, makeSession(sid, principal, time.Hour)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := store.Create(ctx, makeSession(sid, principal, time.Hour)); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	out, err := store.Find(ctx, sid)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if out.Revoked() {
		t.Fatal("fresh session must not be revoked")
	}

	if err := store.Revoke(ctx, sid, time.Now()); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if err := store.Revoke(ctx, sid, time.Now()); !errors.Is(err, ErrAlreadyRevoked) {
		t.Fatalf("expected ErrAlreadyRevoked, got %v", err)
	}
	if err := store.Revoke(ctx, uuid.NewString(), time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	sid2 := uuid.NewString()
	if err := store.Create(ctx, makeSession(sid2, principal, time.Hour)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	count, err := store.RevokeAll(ctx, principal, time.Now())
	if err != nil {
		t.Fatalf("revoke all failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 revocation, got %d", count)
	}
}
