// Package password hashes and verifies account secrets for the reference
// account store.
//
// [Bcrypt] (golang.org/x/crypto/bcrypt) is the default; [Argon2] produces
// argon2id PHC strings. Both implement [Hasher], including NeedsRehash for
// transparent cost upgrades on the next successful login.
//
// Secret policy (length bounds, reuse) is enforced by the Authority, not here.
// Nothing in this package logs or stores plaintext.
package password
