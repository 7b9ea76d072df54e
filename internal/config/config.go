// Package config loads the gosession binary configuration from an optional
// file and GOSESSION_* environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/internal/redisclient"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key, e.g. GOSESSION_REDIS_ADDR.
const EnvPrefix = "GOSESSION"

type AppConfig struct {
	HTTP     HTTPSettings       `mapstructure:"http"`
	Log      logging.Config     `mapstructure:"log"`
	Redis    redisclient.Config `mapstructure:"redis"`
	JWT      JWTSettings        `mapstructure:"jwt"`
	Session  SessionSettings    `mapstructure:"session"`
	Password PasswordSettings   `mapstructure:"password"`
	Notify   NotifySettings     `mapstructure:"notify"`
	Sweeper  SweeperSettings    `mapstructure:"sweeper"`
	Throttle ThrottleSettings   `mapstructure:"throttle"`
}

type HTTPSettings struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsEnabled  bool          `mapstructure:"metrics_enabled"`
}

type JWTSettings struct {
	// Secret is the HS256 key, or a hex string prefixed with "hex:".
	Secret         string        `mapstructure:"secret"`
	SigningMethod  string        `mapstructure:"signing_method"`
	PrivateKeyFile string        `mapstructure:"private_key_file"`
	PublicKeyFile  string        `mapstructure:"public_key_file"`
	KeyID          string        `mapstructure:"key_id"`
	TTL            time.Duration `mapstructure:"ttl"`
	Issuer         string        `mapstructure:"issuer"`
	Audience       string        `mapstructure:"audience"`
	Leeway         time.Duration `mapstructure:"leeway"`
}

type SessionSettings struct {
	Prefix       string        `mapstructure:"prefix"`
	TTL          time.Duration `mapstructure:"ttl"`
	ProfileTTL   time.Duration `mapstructure:"profile_ttl"`
	BlacklistTTL time.Duration `mapstructure:"blacklist_ttl"`
	OpTimeout    time.Duration `mapstructure:"op_timeout"`
	ScanCount    int64         `mapstructure:"scan_count"`
}

type PasswordSettings struct {
	Algorithm string `mapstructure:"algorithm"`
	MinLength int    `mapstructure:"min_length"`
	MaxLength int    `mapstructure:"max_length"`
}

type NotifySettings struct {
	Enabled       bool `mapstructure:"enabled"`
	BufferSize    int  `mapstructure:"buffer_size"`
	BlockWhenFull bool `mapstructure:"block_when_full"`
}

type ThrottleSettings struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Window      time.Duration `mapstructure:"window"`
	PerIP       bool          `mapstructure:"per_ip"`
}

type SweeperSettings struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Load reads path (any format viper understands; empty skips the file),
// applies GOSESSION_* overrides and unmarshals the result.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	for _, key := range v.AllKeys() {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := goSession.DefaultConfig()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("http.shutdown_timeout", "15s")
	v.SetDefault("http.metrics_enabled", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("redis.in_memory", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.signing_method", d.JWT.SigningMethod)
	v.SetDefault("jwt.private_key_file", "")
	v.SetDefault("jwt.public_key_file", "")
	v.SetDefault("jwt.key_id", "")
	v.SetDefault("jwt.ttl", d.JWT.TTL.String())
	v.SetDefault("jwt.issuer", d.JWT.Issuer)
	v.SetDefault("jwt.audience", "")
	v.SetDefault("jwt.leeway", d.JWT.Leeway.String())

	v.SetDefault("session.prefix", d.Session.RedisPrefix)
	v.SetDefault("session.ttl", d.Session.SessionTTL.String())
	v.SetDefault("session.profile_ttl", d.Session.ProfileTTL.String())
	v.SetDefault("session.blacklist_ttl", d.Session.BlacklistTTL.String())
	v.SetDefault("session.op_timeout", d.Session.OpTimeout.String())
	v.SetDefault("session.scan_count", d.Session.ScanCount)

	v.SetDefault("password.algorithm", "bcrypt")
	v.SetDefault("password.min_length", d.Password.MinLength)
	v.SetDefault("password.max_length", d.Password.MaxLength)

	v.SetDefault("notify.enabled", d.Notify.Enabled)
	v.SetDefault("notify.buffer_size", d.Notify.BufferSize)
	v.SetDefault("notify.block_when_full", d.Notify.BlockWhenFull)

	v.SetDefault("sweeper.interval", d.Sweeper.Interval.String())

	v.SetDefault("throttle.max_attempts", 10)
	v.SetDefault("throttle.window", "15m")
	v.SetDefault("throttle.per_ip", false)
}

// Authority converts the loaded settings into a validated authority config,
// reading key files from disk when configured.
func (c *AppConfig) Authority() (goSession.Config, error) {
	out := goSession.DefaultConfig()

	out.JWT.SigningMethod = strings.ToLower(c.JWT.SigningMethod)
	out.JWT.TTL = c.JWT.TTL
	out.JWT.Issuer = c.JWT.Issuer
	out.JWT.Audience = c.JWT.Audience
	out.JWT.Leeway = c.JWT.Leeway
	out.JWT.KeyID = c.JWT.KeyID

	switch out.JWT.SigningMethod {
	case "ed25519":
		priv, err := readOptional(c.JWT.PrivateKeyFile)
		if err != nil {
			return goSession.Config{}, err
		}
		pub, err := readOptional(c.JWT.PublicKeyFile)
		if err != nil {
			return goSession.Config{}, err
		}
		out.JWT.PrivateKey = priv
		out.JWT.PublicKey = pub
	default:
		secret, err := decodeSecret(c.JWT.Secret)
		if err != nil {
			return goSession.Config{}, err
		}
		out.JWT.PrivateKey = secret
	}

	out.Session.RedisPrefix = c.Session.Prefix
	out.Session.SessionTTL = c.Session.TTL
	out.Session.ProfileTTL = c.Session.ProfileTTL
	out.Session.BlacklistTTL = c.Session.BlacklistTTL
	out.Session.OpTimeout = c.Session.OpTimeout
	out.Session.ScanCount = c.Session.ScanCount

	out.Password.MinLength = c.Password.MinLength
	out.Password.MaxLength = c.Password.MaxLength

	out.Notify.Enabled = c.Notify.Enabled
	out.Notify.BufferSize = c.Notify.BufferSize
	out.Notify.BlockWhenFull = c.Notify.BlockWhenFull

	out.Metrics.Enabled = c.HTTP.MetricsEnabled
	out.Metrics.EnableLatencyHistograms = c.HTTP.MetricsEnabled

	out.Sweeper.Interval = c.Sweeper.Interval

	out.Throttle.MaxAttempts = c.Throttle.MaxAttempts
	out.Throttle.Window = c.Throttle.Window
	out.Throttle.PerIP = c.Throttle.PerIP

	if err := out.Validate(); err != nil {
		return goSession.Config{}, err
	}
	return out, nil
}

func decodeSecret(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("jwt.secret is required for hs256 (set GOSESSION_JWT_SECRET)")
	}
	if rest, ok := strings.CutPrefix(s, "hex:"); ok {
		b, err := hex.DecodeString(rest)
		if err != nil {
			return nil, fmt.Errorf("jwt.secret: %w", err)
		}
		return b, nil
	}
	return []byte(s), nil
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return b, nil
}
