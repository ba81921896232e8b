package tokengate

import (
	"context"

	"github.com/jmhart-dev/tokengate/token"
)

// PrincipalStatus defines a public type used by tokengate APIs.
//
// PrincipalStatus instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PrincipalStatus uint8

const (
	// PrincipalActive is an exported constant or variable used by the lifecycle engine.
	PrincipalActive PrincipalStatus = iota
	// PrincipalSuspended is an exported constant or variable used by the lifecycle engine.
	PrincipalSuspended
)

// Principal is the external identity a token represents. It is read-only to
// this engine; only active principals may obtain or use tokens.
type Principal struct {
	ID     string
	Role   string
	Email  string
	Status PrincipalStatus
}

// CredentialVerifier is the external password oracle. The engine never sees
// or stores raw password material beyond this single call.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (bool, error)
}

// PrincipalDirectory is the read-only identity lookup consumed by the engine.
// Implementations return [ErrInvalidCredentials]-safe failures by returning
// any error for unknown identities; the engine collapses them.
type PrincipalDirectory interface {
	FindByEmail(ctx context.Context, email string) (Principal, error)
	FindByID(ctx context.Context, id string) (Principal, error)
}

// Claims re-exports the signed claim set so callers of AuthenticateAccess do
// not need to import the token subpackage.
type Claims = token.Claims

// TokenPair defines a public type used by tokengate APIs.
//
// TokenPair instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult defines a public type used by tokengate APIs.
//
// LoginResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LoginResult struct {
	Principal    Principal
	AccessToken  string
	RefreshToken string
}
