// Package tokengate is the token lifecycle engine behind an API: it issues
// short-lived JWT access tokens and longer-lived refresh tokens, verifies
// access tokens statelessly, and rotates/revokes refresh sessions against a
// shared persisted store.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// tokengate is the public surface. It exposes [Engine], [Builder], [Config],
// value types and sentinel errors. Token signing and claim validation live in
// the token subpackage; session persistence lives behind the session.Store
// interface with Redis and Postgres backends.
//
// The engine never sees raw password material beyond a single call to the
// injected [CredentialVerifier], and never routes HTTP or renders responses;
// those belong to the surrounding service.
//
// # Performance contract
//
// AuthenticateAccess is the hot path. It is purely stateless: signature and
// claim checks only, never a store round-trip. Revocation granularity is
// therefore at the refresh-session level; a revoked session's outstanding
// access tokens stay valid until they expire.
package tokengate
