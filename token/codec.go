package token

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type discriminates access tokens from refresh tokens inside claims.
type Type string

const (
	// TypeAccess is an exported constant or variable used by the token engine.
	TypeAccess Type = "access"
	// TypeRefresh is an exported constant or variable used by the token engine.
	TypeRefresh Type = "refresh"
)

// SigningMethod defines a public type used by tokengate APIs.
//
// SigningMethod instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SigningMethod string

const (
	// MethodEd25519 is an exported constant or variable used by the token engine.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 is an exported constant or variable used by the token engine.
	MethodHS256 SigningMethod = "hs256"
)

// Structural decode failures: the string is not a valid signed token at all.
var (
	// ErrMalformed is an exported constant or variable used by the token engine.
	ErrMalformed = errors.New("malformed token")
	// ErrSignatureInvalid is an exported constant or variable used by the token engine.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrMissingClaim is an exported constant or variable used by the token engine.
	ErrMissingClaim = errors.New("missing required claim")
	// ErrClaimType is an exported constant or variable used by the token engine.
	ErrClaimType = errors.New("claim type mismatch")
)

// Policy decode failures: well-formed and correctly signed, but not for us.
var (
	// ErrAudienceMismatch is an exported constant or variable used by the token engine.
	ErrAudienceMismatch = errors.New("token audience mismatch")
	// ErrIssuerMismatch is an exported constant or variable used by the token engine.
	ErrIssuerMismatch = errors.New("token issuer mismatch")
	// ErrIssuedInFuture is an exported constant or variable used by the token engine.
	ErrIssuedInFuture = errors.New("token issued in the future")
)

// Claims is the fixed claim set carried inside a signed token. Subject, iat,
// nbf, exp, aud and iss ride on the embedded RegisteredClaims; role, email,
// type and sid are custom claims. SessionID is present on refresh tokens only.
type Claims struct {
	Role      string `json:"role"`
	Email     string `json:"email"`
	TokenType Type   `json:"type"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Config defines a public type used by tokengate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// Codec encodes and decodes the claim set into a signature-protected token
// string. It is a pure function of claims plus configured key material and is
// safe for concurrent use.
type Codec struct {
	config Config
}

// NewCodec describes the newcodec operation and its observable behavior.
//
// NewCodec may return an error when input validation, dependency calls, or security checks fail.
// NewCodec does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("issuer is required")
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, errors.New("audience is required")
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Codec{config: cfg}, nil
}

// Encode describes the encode operation and its observable behavior.
//
// Encode may return an error when input validation, dependency calls, or security checks fail.
// Encode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Codec) Encode(claims *Claims) (string, error) {
	if claims == nil {
		return "", errors.New("nil claims")
	}

	tok := jwt.NewWithClaims(c.getMethod(), claims)

	signKey, err := c.getSignKey()
	if err != nil {
		return "", err
	}

	return tok.SignedString(signKey)
}

// Decode verifies signature and structure and returns the claims. It never
// rejects on expiry; callers decide usability via [Codec.Expired].
func (c *Codec) Decode(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.getMethod().Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != c.getMethod().Alg() {
			return nil, ErrSignatureInvalid
		}
		return c.getVerifyKey()
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, ErrMalformed
	}

	if err := c.validateClaims(claims); err != nil {
		return nil, err
	}

	return claims, nil
}

// Expired reports whether the claims are past their expiry, with the
// configured leeway applied for clock-skew tolerance.
func (c *Codec) Expired(claims *Claims) bool {
	if claims == nil || claims.ExpiresAt == nil {
		return true
	}
	return time.Now().Add(-c.config.Leeway).After(claims.ExpiresAt.Time)
}

func (c *Codec) validateClaims(claims *Claims) error {
	switch {
	case claims.Subject == "",
		claims.Role == "",
		claims.TokenType == "",
		claims.ExpiresAt == nil,
		len(claims.Audience) == 0,
		claims.Issuer == "":
		return ErrMissingClaim
	}
	if claims.TokenType != TypeAccess && claims.TokenType != TypeRefresh {
		return ErrClaimType
	}
	if claims.TokenType == TypeRefresh && claims.SessionID == "" {
		return ErrMissingClaim
	}

	if !audienceContains(claims.Audience, c.config.Audience) {
		return ErrAudienceMismatch
	}
	if claims.Issuer != c.config.Issuer {
		return ErrIssuerMismatch
	}

	if claims.IssuedAt != nil {
		if claims.IssuedAt.Time.After(time.Now().Add(c.config.Leeway)) {
			return ErrIssuedInFuture
		}
	}

	return nil
}

func audienceContains(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, ErrSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenMalformed):
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return ErrClaimType
		}
		return ErrMalformed
	default:
		return ErrMalformed
	}
}

func (c *Codec) getMethod() jwt.SigningMethod {
	switch c.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (c *Codec) getSignKey() (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		return c.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(c.config.PrivateKey)
	}
}

func (c *Codec) getVerifyKey() (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		return c.config.PrivateKey, nil
	default:
		return parseEdPublicKey(c.config.PublicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
