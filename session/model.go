package session

import "time"

// Session is the persisted record backing a refresh token. Rows are never
// deleted on revocation; they are retained for audit and replay detection
// until an external housekeeping process garbage-collects expired rows.
type Session struct {
	SessionID   string
	PrincipalID string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	RevokedAt   *time.Time
}

// Revoked reports whether the one-way revocation transition has happened.
func (s *Session) Revoked() bool {
	return s != nil && s.RevokedAt != nil
}

// ExpiredAt reports whether the session is past its expiry at the given
// instant.
func (s *Session) ExpiredAt(now time.Time) bool {
	return s == nil || now.After(s.ExpiresAt)
}
