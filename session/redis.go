package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldPrincipal = "pid"
	fieldCreated   = "created"
	fieldExpires   = "exp"
	fieldRevoked   = "revoked"
)

const (
	revokeStatusNotFound int64 = 0
	revokeStatusRevoked  int64 = 1
	revokeStatusOK       int64 = 2
)

const createSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "pid", ARGV[1], "created", ARGV[2], "exp", ARGV[3])
redis.call("PEXPIREAT", KEYS[1], tonumber(ARGV[4]))
redis.call("SADD", KEYS[2], ARGV[5])
return 1
`

var createSessionLua = redis.NewScript(createSessionScript)

const revokeSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HEXISTS", KEYS[1], "revoked") == 1 then
  return 1
end
redis.call("HSET", KEYS[1], "revoked", ARGV[1])
return 2
`

var revokeSessionLua = redis.NewScript(revokeSessionScript)

const revokeAllScript = `
local sids = redis.call("SMEMBERS", KEYS[1])
local count = 0
for _, sid in ipairs(sids) do
  local key = ARGV[1] .. sid
  if redis.call("EXISTS", key) == 1 then
    if redis.call("HEXISTS", key, "revoked") == 0 then
      redis.call("HSET", key, "revoked", ARGV[2])
      count = count + 1
    end
  else
    redis.call("SREM", KEYS[1], sid)
  end
end
return count
`

var revokeAllLua = redis.NewScript(revokeAllScript)

// RedisStore is a Redis-backed [Store]. Revocation is a Lua compare-and-set
// on the revoked_at field, so concurrent rotations of the same session see
// exactly one winner. Keys carry a TTL of expiry plus a retention grace so
// revoked and expired rows stay visible for replay detection before Redis
// garbage-collects them.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisStore creates a [RedisStore] on the given client. prefix sets the
// key namespace; retention controls how long rows outlive their expiry.
func NewRedisStore(client redis.UniversalClient, prefix string, retention time.Duration) *RedisStore {
	if retention < 0 {
		retention = 0
	}
	return &RedisStore{
		redis:     client,
		prefix:    prefix,
		retention: retention,
	}
}

func (s *RedisStore) sessionKey(sessionID string) string {
	return s.prefix + ":sess:" + sessionID
}

func (s *RedisStore) principalKey(principalID string) string {
	return s.prefix + ":pidx:" + principalID
}

// Create describes the create operation and its observable behavior.
//
// Create may return an error when input validation, dependency calls, or security checks fail.
// Create does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *RedisStore) Create(ctx context.Context, sess *Session) error {
	dropAt := sess.ExpiresAt.Add(s.retention)

	res, err := createSessionLua.Run(ctx, s.redis,
		[]string{s.sessionKey(sess.SessionID), s.principalKey(sess.PrincipalID)},
		sess.PrincipalID,
		strconv.FormatInt(sess.CreatedAt.UnixMilli(), 10),
		strconv.FormatInt(sess.ExpiresAt.UnixMilli(), 10),
		strconv.FormatInt(dropAt.UnixMilli(), 10),
		sess.SessionID,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res == 0 {
		return ErrDuplicate
	}
	return nil
}

// Find describes the find operation and its observable behavior.
//
// Find may return an error when input validation, dependency calls, or security checks fail.
// Find does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *RedisStore) Find(ctx context.Context, sessionID string) (*Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	return decodeFields(sessionID, fields)
}

// Revoke describes the revoke operation and its observable behavior.
//
// Revoke may return an error when input validation, dependency calls, or security checks fail.
// Revoke does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *RedisStore) Revoke(ctx context.Context, sessionID string, at time.Time) error {
	res, err := revokeSessionLua.Run(ctx, s.redis,
		[]string{s.sessionKey(sessionID)},
		strconv.FormatInt(at.UnixMilli(), 10),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch res {
	case revokeStatusNotFound:
		return ErrNotFound
	case revokeStatusRevoked:
		return ErrAlreadyRevoked
	case revokeStatusOK:
		return nil
	default:
		return fmt.Errorf("%w: unexpected revoke status %d", ErrUnavailable, res)
	}
}

// RevokeAll describes the revokeall operation and its observable behavior.
//
// RevokeAll may return an error when input validation, dependency calls, or security checks fail.
// RevokeAll does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *RedisStore) RevokeAll(ctx context.Context, principalID string, at time.Time) (int64, error) {
	count, err := revokeAllLua.Run(ctx, s.redis,
		[]string{s.principalKey(principalID)},
		s.prefix+":sess:",
		strconv.FormatInt(at.UnixMilli(), 10),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}

func decodeFields(sessionID string, fields map[string]string) (*Session, error) {
	createdMs, err := strconv.ParseInt(fields[fieldCreated], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt created_at", ErrUnavailable)
	}
	expiresMs, err := strconv.ParseInt(fields[fieldExpires], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt expires_at", ErrUnavailable)
	}

	sess := &Session{
		SessionID:   sessionID,
		PrincipalID: fields[fieldPrincipal],
		CreatedAt:   time.UnixMilli(createdMs),
		ExpiresAt:   time.UnixMilli(expiresMs),
	}

	if raw, ok := fields[fieldRevoked]; ok {
		revokedMs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: corrupt revoked_at", ErrUnavailable)
		}
		revokedAt := time.UnixMilli(revokedMs)
		sess.RevokedAt = &revokedAt
	}

	return sess, nil
}
