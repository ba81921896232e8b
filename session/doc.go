// Package session persists one row per issued refresh token and is the
// single synchronization point for rotation and revocation.
//
// The persisted row, not the token, is the source of truth: a session whose
// revoked_at is set, or whose expiry has passed, is unusable for rotation
// regardless of what the token's own claims say. revoked_at is a one-way
// transition, and Revoke is an atomic compare-and-set so that concurrent
// rotations of the same session produce exactly one winner.
package session
