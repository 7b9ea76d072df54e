package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2Params are the argon2id cost parameters. Memory is in KiB.
type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params returns 64 MiB, 3 passes, 2 lanes, 16-byte salt and a
// 32-byte key.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

// Argon2 produces PHC strings of the form
// $argon2id$v=19$m=<KiB>,t=<passes>,p=<lanes>$<salt>$<key>.
type Argon2 struct {
	params Argon2Params
}

func NewArgon2(p Argon2Params) (*Argon2, error) {
	switch {
	case p.Memory < 8*1024:
		return nil, errors.New("argon2 memory must be >= 8192 KiB")
	case p.Time < 1:
		return nil, errors.New("argon2 time must be >= 1")
	case p.Parallelism < 1:
		return nil, errors.New("argon2 parallelism must be >= 1")
	case p.SaltLength < 16 || p.KeyLength < 16:
		return nil, errors.New("argon2 salt and key length must be >= 16")
	}
	return &Argon2{params: p}, nil
}

func (a *Argon2) Hash(secret string) (string, error) {
	salt := make([]byte, a.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(secret), salt, a.params.Time, a.params.Memory, a.params.Parallelism, a.params.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, a.params.Memory, a.params.Time, a.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (a *Argon2) Verify(secret, encoded string) (bool, error) {
	p, salt, key, err := decodeArgon2(encoded)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(secret), salt, p.Time, p.Memory, p.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(got, key) == 1, nil
}

// NeedsRehash reports whether encoded is weaker than the configured params.
func (a *Argon2) NeedsRehash(encoded string) bool {
	p, _, key, err := decodeArgon2(encoded)
	if err != nil {
		return true
	}
	return p.Memory < a.params.Memory ||
		p.Time < a.params.Time ||
		p.Parallelism < a.params.Parallelism ||
		uint32(len(key)) != a.params.KeyLength
}

func decodeArgon2(encoded string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != AlgorithmArgon2id {
		return p, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: unsupported version", ErrMalformedHash)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Parallelism); err != nil {
		return p, nil, nil, fmt.Errorf("%w: bad parameters", ErrMalformedHash)
	}
	if p.Memory < 8*1024 || p.Time < 1 || p.Parallelism < 1 {
		return p, nil, nil, fmt.Errorf("%w: parameters below minimum", ErrMalformedHash)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < 16 {
		return p, nil, nil, fmt.Errorf("%w: bad salt", ErrMalformedHash)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, fmt.Errorf("%w: bad key", ErrMalformedHash)
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))

	return p, salt, key, nil
}
