package tokengate

import (
	"errors"

	"github.com/jmhart-dev/tokengate/session"
	"github.com/jmhart-dev/tokengate/token"
)

// Structural token errors: the presented string is not a valid signed token.
// Always fatal to the current request, never worth retrying.
var (
	// ErrMalformedToken is an exported constant or variable used by the lifecycle engine.
	ErrMalformedToken = token.ErrMalformed
	// ErrSignatureInvalid is an exported constant or variable used by the lifecycle engine.
	ErrSignatureInvalid = token.ErrSignatureInvalid
	// ErrMissingRequiredClaim is an exported constant or variable used by the lifecycle engine.
	ErrMissingRequiredClaim = token.ErrMissingClaim
	// ErrClaimTypeMismatch is an exported constant or variable used by the lifecycle engine.
	ErrClaimTypeMismatch = token.ErrClaimType
)

// Policy token errors: valid signature, but the token is not usable here.
// Safe to surface to the caller as "reauthenticate".
var (
	// ErrAudienceMismatch is an exported constant or variable used by the lifecycle engine.
	ErrAudienceMismatch = token.ErrAudienceMismatch
	// ErrIssuerMismatch is an exported constant or variable used by the lifecycle engine.
	ErrIssuerMismatch = token.ErrIssuerMismatch
	// ErrIssuedInFuture is an exported constant or variable used by the lifecycle engine.
	ErrIssuedInFuture = token.ErrIssuedInFuture
	// ErrTokenExpired is an exported constant or variable used by the lifecycle engine.
	ErrTokenExpired = errors.New("token expired")
	// ErrWrongTokenType is an exported constant or variable used by the lifecycle engine.
	ErrWrongTokenType = errors.New("wrong token type")
)

// Session-state errors: the token was fine but the persisted session was not.
var (
	// ErrSessionNotFound is an exported constant or variable used by the lifecycle engine.
	ErrSessionNotFound = session.ErrNotFound
	// ErrSessionRevoked is an exported constant or variable used by the lifecycle engine.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrSessionExpired is an exported constant or variable used by the lifecycle engine.
	ErrSessionExpired = errors.New("session expired")

	// ErrTokenReuseDetected signals that a refresh token lost the rotation
	// race because the session was already consumed, a strong sign of a
	// stolen or replayed token. Callers should treat it as cause to call
	// RevokeAllSessions for the principal.
	ErrTokenReuseDetected = errors.New("refresh token reuse detected")
)

// Infrastructure errors: retriable by the caller with backoff; the engine
// never retries internally.
var (
	// ErrStoreUnavailable is an exported constant or variable used by the lifecycle engine.
	ErrStoreUnavailable = session.ErrUnavailable
	// ErrDuplicateSession is an exported constant or variable used by the lifecycle engine.
	ErrDuplicateSession = session.ErrDuplicate
)

var (
	// ErrInvalidCredentials covers unknown email, bad password and non-active
	// principal status alike, so callers cannot probe which accounts exist or
	// are suspended.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEngineNotReady is an exported constant or variable used by the lifecycle engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
