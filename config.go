package goSession

import (
	"errors"
	"strings"
	"time"
)

// Config is the full authority configuration. Build copies it, so later
// mutation of the caller's value has no effect on a built [Authority].
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Password PasswordConfig
	Notify   NotifyConfig
	Metrics  MetricsConfig
	Sweeper  SweeperConfig
	Throttle ThrottleConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token signing and verification.
type JWTConfig struct {
	TTL           time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the Redis key namespace and the lifetimes of the
// structures the session store owns.
type SessionConfig struct {
	RedisPrefix string
	// SessionTTL is the rolling TTL of the active-token set and session hash.
	SessionTTL time.Duration
	// ProfileTTL is the profile cache entry lifetime, independent of SessionTTL.
	ProfileTTL time.Duration
	// BlacklistTTL caps every blacklist entry. It must cover the token lifetime
	// plus leeway so no revoked token can outlive its blacklist entry.
	BlacklistTTL time.Duration
	// OpTimeout bounds each session store call.
	OpTimeout time.Duration
	ScanCount int64
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig is the secret policy enforced by Register and ChangePassword.
type PasswordConfig struct {
	MinLength int
	MaxLength int
}

/*
====================================
NOTIFY CONFIG
====================================
*/

// NotifyConfig controls the asynchronous notification dispatcher.
type NotifyConfig struct {
	Enabled    bool
	BufferSize int
	// BlockWhenFull makes Emit wait for buffer space, up to the caller's
	// context, instead of dropping the event. Session operations then stall
	// behind a slow sink; leave it off unless losing events is worse.
	BlockWhenFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SWEEPER CONFIG
====================================
*/

// SweeperConfig controls the background expired-session sweep. A zero
// Interval disables it.
type SweeperConfig struct {
	Interval time.Duration
}

/*
====================================
LOGIN THROTTLE CONFIG
====================================
*/

// ThrottleConfig limits failed logins per identifier, and optionally per
// client IP, within a fixed window. MaxAttempts of zero disables it.
type ThrottleConfig struct {
	MaxAttempts int
	Window      time.Duration
	PerIP       bool
}

// DefaultConfig returns the production defaults: 24h tokens and sessions,
// 30m profile cache, 24h blacklist cap and a 500ms store timeout. Signing keys
// must still be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			TTL:           24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "gosession",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix:  "gs",
			SessionTTL:   24 * time.Hour,
			ProfileTTL:   30 * time.Minute,
			BlacklistTTL: 24*time.Hour + time.Minute,
			OpTimeout:    500 * time.Millisecond,
			ScanCount:    500,
		},
		Password: PasswordConfig{
			MinLength: 8,
			MaxLength: 72,
		},
		Notify: NotifyConfig{
			Enabled:    true,
			BufferSize: 256,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Sweeper: SweeperConfig{
			Interval: time.Hour,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks the configuration for internal consistency. Key material is
// validated later by the token codec.
func (c *Config) Validate() error {
	if c.JWT.TTL <= 0 {
		return errors.New("JWT.TTL must be > 0")
	}
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "hs256", "ed25519":
	default:
		return errors.New("JWT.SigningMethod must be hs256 or ed25519")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT.Leeway must be between 0 and 2m")
	}

	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session.RedisPrefix must not be empty")
	}
	if strings.ContainsAny(c.Session.RedisPrefix, " :*") {
		return errors.New("Session.RedisPrefix must not contain spaces, ':' or '*'")
	}
	if c.Session.SessionTTL < c.JWT.TTL {
		return errors.New("Session.SessionTTL must be >= JWT.TTL")
	}
	if c.Session.ProfileTTL <= 0 {
		return errors.New("Session.ProfileTTL must be > 0")
	}
	if c.Session.BlacklistTTL < c.JWT.TTL+c.JWT.Leeway {
		return errors.New("Session.BlacklistTTL must be >= JWT.TTL + JWT.Leeway")
	}
	if c.Session.OpTimeout <= 0 || c.Session.OpTimeout > 30*time.Second {
		return errors.New("Session.OpTimeout must be between 0 and 30s")
	}
	if c.Session.ScanCount < 0 {
		return errors.New("Session.ScanCount must be >= 0")
	}

	if c.Password.MinLength < 1 {
		return errors.New("Password.MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password.MaxLength must be >= Password.MinLength")
	}

	if c.Notify.Enabled && c.Notify.BufferSize <= 0 {
		return errors.New("Notify.BufferSize must be > 0 when notifications are enabled")
	}

	if c.Throttle.MaxAttempts < 0 {
		return errors.New("Throttle.MaxAttempts must be >= 0")
	}
	if c.Throttle.MaxAttempts > 0 && c.Throttle.Window < time.Second {
		return errors.New("Throttle.Window must be >= 1s when the throttle is enabled")
	}

	if c.Sweeper.Interval < 0 {
		return errors.New("Sweeper.Interval must be >= 0")
	}
	if c.Sweeper.Interval > 0 && c.Sweeper.Interval < time.Second {
		return errors.New("Sweeper.Interval must be >= 1s when enabled")
	}

	return nil
}
