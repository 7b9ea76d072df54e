package password

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedHash is returned by Verify when the stored hash cannot be parsed.
var ErrMalformedHash = errors.New("malformed password hash")

// Hasher hashes secrets for storage and checks candidates against them.
// Verify reports a mismatch as (false, nil); errors mean the stored hash is
// unusable.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, encoded string) (bool, error)
	NeedsRehash(encoded string) bool
}

// Algorithm names accepted by [New].
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// New returns the hasher for algorithm with its default parameters.
func New(algorithm string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", AlgorithmBcrypt:
		return NewBcrypt(DefaultBcryptCost)
	case AlgorithmArgon2id:
		return NewArgon2(DefaultArgon2Params())
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", algorithm)
	}
}
