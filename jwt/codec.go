package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidSignature covers every structural failure: malformed input,
	// unexpected algorithm, unknown key, bad signature, issuer or audience mismatch.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrExpired is returned for well-signed tokens whose exp has passed.
	ErrExpired = errors.New("token expired")
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Ed25519 keys.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256 over a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

// Config configures a [Codec].
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

// Identity is the minimal subject description embedded in a token.
type Identity struct {
	ID    string
	Email string
	Name  string
}

// Claims is the decoded token payload.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the subject fields carried by the claims.
func (c *Claims) Identity() Identity {
	return Identity{ID: c.Subject, Email: c.Email, Name: c.Name}
}

// Codec signs and verifies bearer tokens. It performs no I/O and is safe for
// concurrent use once constructed.
type Codec struct {
	config Config
	method jwt.SigningMethod
	parser *jwt.Parser
}

// NewCodec validates cfg and returns a ready [Codec].
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	var method jwt.SigningMethod
	switch cfg.SigningMethod {
	case MethodHS256:
		method = jwt.SigningMethodHS256
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("hs256 requires a secret of at least 32 bytes")
		}
	case MethodEd25519:
		method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}

	return &Codec{config: cfg, method: method, parser: jwt.NewParser(options...)}, nil
}

// TTL returns the configured token lifetime.
func (c *Codec) TTL() time.Duration {
	return c.config.TTL
}

// Leeway returns the clock-skew tolerance applied by Parse.
func (c *Codec) Leeway() time.Duration {
	return c.config.Leeway
}

// Issue signs a token for ident that expires after the configured TTL. Every
// token carries a random jti, so two issues in the same second differ.
func (c *Codec) Issue(ident Identity) (string, *Claims, error) {
	if strings.TrimSpace(ident.ID) == "" {
		return "", nil, errors.New("identity requires an id")
	}
	signKey, err := c.signKey()
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	claims := &Claims{
		Email: ident.Email,
		Name:  ident.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.ID,
			ID:        uuid.NewString(),
			Issuer:    c.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.config.TTL)),
		},
	}
	if c.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
	}

	token := jwt.NewWithClaims(c.method, claims)
	if c.config.KeyID != "" {
		token.Header["kid"] = c.config.KeyID
	}

	signed, err := token.SignedString(signKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse verifies signature, algorithm, issuer, audience and expiry. Failures
// are classified as [ErrExpired] or [ErrInvalidSignature].
func (c *Codec) Parse(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrInvalidSignature
	}

	token, err := c.parser.ParseWithClaims(tokenStr, &Claims{}, c.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidSignature
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(time.Now().Add(c.config.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrInvalidSignature)
	}

	return claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != c.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(c.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := c.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return c.verifyKeyFrom(key)
	}

	if c.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != c.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	switch c.config.SigningMethod {
	case MethodHS256:
		return c.config.PrivateKey, nil
	default:
		return parseEdPublicKey(c.config.PublicKey)
	}
}

func (c *Codec) signKey() (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		return c.config.PrivateKey, nil
	default:
		if len(c.config.PrivateKey) == 0 {
			return nil, errors.New("codec is verify-only")
		}
		return parseEdPrivateKey(c.config.PrivateKey)
	}
}

func (c *Codec) verifyKeyFrom(key []byte) (interface{}, error) {
	if c.config.SigningMethod == MethodHS256 {
		return key, nil
	}
	return parseEdPublicKey(key)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
