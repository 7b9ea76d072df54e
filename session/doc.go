// Package session provides the Redis-backed session store behind token
// validation, logout and profile caching.
//
// # Key layout
//
// For a prefix p and subject s the store owns:
//
//	p:tokens:s        set of SHA-256 digests of the subject's active tokens
//	p:session:s       hash, one JSON session record per active login (field = digest)
//	p:profile:s       JSON profile snapshot, never containing secrets
//	p:blacklist:d     "1" while the token with digest d must be rejected
//
// Raw bearer strings are never written; only digests produced by [TokenHash].
//
// # Atomicity
//
// Writes spanning several keys run inside MULTI/EXEC. Revoking every session of
// a subject is a single Lua script so that a login racing the revocation is
// either fully revoked or fully kept, never half of each.
//
// # Architecture boundaries
//
// This package does NOT parse or verify tokens. Callers verify signature and
// expiry before asking [Store.IsActive].
package session
