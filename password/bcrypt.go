package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used by [New].
const DefaultBcryptCost = 12

// Bcrypt hashes with golang.org/x/crypto/bcrypt. Secrets longer than 72
// bytes are rejected rather than silently truncated.
type Bcrypt struct {
	cost int
}

func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

func (b *Bcrypt) Hash(secret string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(secret), b.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (b *Bcrypt) Verify(secret, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

// NeedsRehash reports whether encoded was produced with a lower cost.
func (b *Bcrypt) NeedsRehash(encoded string) bool {
	cost, err := bcrypt.Cost([]byte(encoded))
	return err != nil || cost < b.cost
}
