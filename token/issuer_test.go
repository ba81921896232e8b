package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testIssuer(t *testing.T) (*Issuer, *Codec) {
	t.Helper()

	codec := testCodec(t)
	issuer, err := NewIssuer(IssuerConfig{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, codec)
	require.NoError(t, err)

	return issuer, codec
}

func TestNewIssuerRejectsBadTTLs(t *testing.T) {
	codec := testCodec(t)

	_, err := NewIssuer(IssuerConfig{AccessTTL: 0, RefreshTTL: time.Hour}, codec)
	require.Error(t, err)

	_, err = NewIssuer(IssuerConfig{AccessTTL: time.Hour, RefreshTTL: time.Hour}, codec)
	require.Error(t, err)

	_, err = NewIssuer(IssuerConfig{AccessTTL: time.Hour, RefreshTTL: time.Minute}, codec)
	require.Error(t, err)
}

func TestIssueAccess(t *testing.T) {
	issuer, codec := testIssuer(t)

	tokenStr, err := issuer.IssueAccess("u1", "user", "a@x.com")
	require.NoError(t, err)

	claims, err := codec.Decode(tokenStr)
	require.NoError(t, err)

	require.Equal(t, TypeAccess, claims.TokenType)
	require.Equal(t, "u1", claims.Subject)
	require.Equal(t, "user", claims.Role)
	require.Equal(t, "a@x.com", claims.Email)
	require.Empty(t, claims.SessionID)
	require.Equal(t, claims.IssuedAt.Unix(), claims.NotBefore.Unix())
	require.EqualValues(t, 900, claims.ExpiresAt.Unix()-claims.IssuedAt.Unix())
}

func TestIssueRefresh(t *testing.T) {
	issuer, codec := testIssuer(t)

	tokenStr, sessionID, expiresAt, err := issuer.IssueRefresh("u1", "user", "a@x.com")
	require.NoError(t, err)

	_, err = uuid.Parse(sessionID)
	require.NoError(t, err)

	claims, err := codec.Decode(tokenStr)
	require.NoError(t, err)

	require.Equal(t, TypeRefresh, claims.TokenType)
	require.Equal(t, sessionID, claims.SessionID)
	require.Equal(t, claims.IssuedAt.Unix(), claims.NotBefore.Unix())
	require.EqualValues(t, 604800, claims.ExpiresAt.Unix()-claims.IssuedAt.Unix())
	require.Equal(t, expiresAt.Unix(), claims.ExpiresAt.Unix())
}

func TestRefreshOutlivesAccess(t *testing.T) {
	issuer, codec := testIssuer(t)

	accessStr, err := issuer.IssueAccess("u1", "user", "a@x.com")
	require.NoError(t, err)
	refreshStr, _, _, err := issuer.IssueRefresh("u1", "user", "a@x.com")
	require.NoError(t, err)

	access, err := codec.Decode(accessStr)
	require.NoError(t, err)
	refresh, err := codec.Decode(refreshStr)
	require.NoError(t, err)

	require.Greater(t, refresh.ExpiresAt.Unix(), access.ExpiresAt.Unix())
}

func TestIssueRefreshSessionIDsAreUnique(t *testing.T) {
	issuer, _ := testIssuer(t)

	seen := make(map[string]struct{})
	for i := 0; i < 64; i++ {
		_, sessionID, _, err := issuer.IssueRefresh("u1", "user", "a@x.com")
		require.NoError(t, err)
		if _, dup := seen[sessionID]; dup {
			t.Fatalf("duplicate session id %s", sessionID)
		}
		seen[sessionID] = struct{}{}
	}
}
