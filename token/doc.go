// Package token implements signed claim encoding and decoding for the
// authentication engine: a Codec that turns a fixed claim set into a
// tamper-evident JWT and back, and an Issuer that mints access and refresh
// claim sets for a principal.
//
// Decode deliberately does not reject expired tokens. Signature and
// structural validity are one question, usability another; callers check
// expiry explicitly through Codec.Expired so they can report a precise
// "expired" error instead of a generic "invalid" one.
package token
