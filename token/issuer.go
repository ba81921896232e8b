package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// IssuerConfig defines a public type used by tokengate APIs.
//
// IssuerConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type IssuerConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Issuer builds access and refresh claim sets for a principal and delegates
// signing to a [Codec].
type Issuer struct {
	config IssuerConfig
	codec  *Codec
}

// NewIssuer describes the newissuer operation and its observable behavior.
//
// NewIssuer may return an error when input validation, dependency calls, or security checks fail.
// NewIssuer does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewIssuer(cfg IssuerConfig, codec *Codec) (*Issuer, error) {
	if codec == nil {
		return nil, errors.New("codec is required")
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("AccessTTL must be > 0")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("RefreshTTL must be greater than AccessTTL")
	}

	return &Issuer{config: cfg, codec: codec}, nil
}

// IssueAccess mints a signed access token for the given principal fields.
// Access tokens never carry a session id.
func (i *Issuer) IssueAccess(subject, role, email string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role:      role,
		Email:     email,
		TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    i.codec.config.Issuer,
			Audience:  jwt.ClaimStrings{i.codec.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.config.AccessTTL)),
		},
	}

	return i.codec.Encode(claims)
}

// IssueRefresh mints a signed refresh token carrying a fresh random session
// id, and returns the token together with the session id and its expiry so
// the caller can persist the backing session row.
func (i *Issuer) IssueRefresh(subject, role, email string) (string, string, time.Time, error) {
	now := time.Now()
	sessionID := uuid.NewString()
	expiresAt := now.Add(i.config.RefreshTTL)

	claims := &Claims{
		Role:      role,
		Email:     email,
		TokenType: TypeRefresh,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    i.codec.config.Issuer,
			Audience:  jwt.ClaimStrings{i.codec.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	tokenStr, err := i.codec.Encode(claims)
	if err != nil {
		return "", "", time.Time{}, err
	}

	return tokenStr, sessionID, expiresAt, nil
}
