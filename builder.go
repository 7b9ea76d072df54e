package goSession

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Authority]. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	logger *zap.Logger

	verifier CredentialVerifier
	profiles ProfileStore
	accounts AccountStore
	sink     NotificationSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing the session store. Required. The client
// must address a single logical node; Build rejects a *redis.ClusterClient.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the operational logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithCredentialVerifier sets the identifier/secret checker used by Login and
// ChangePassword. Required.
func (b *Builder) WithCredentialVerifier(v CredentialVerifier) *Builder {
	b.verifier = v
	return b
}

// WithProfileStore sets the primary profile store. Required.
func (b *Builder) WithProfileStore(p ProfileStore) *Builder {
	b.profiles = p
	return b
}

// WithAccountStore enables Register and ChangePassword.
func (b *Builder) WithAccountStore(a AccountStore) *Builder {
	b.accounts = a
	return b
}

// WithNotificationSink sets the destination of asynchronous events.
func (b *Builder) WithNotificationSink(sink NotificationSink) *Builder {
	b.sink = sink
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the token codec, session store,
// metrics and notification dispatcher.
func (b *Builder) Build() (*Authority, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if _, ok := b.redis.(*redis.ClusterClient); ok {
		return nil, errors.New("redis cluster clients are not supported: session transactions span several hash slots")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.verifier == nil {
		return nil, errors.New("credential verifier required")
	}
	if b.profiles == nil {
		return nil, errors.New("profile store required")
	}

	codec, err := jwt.NewCodec(jwt.Config{
		TTL:           cfg.JWT.TTL,
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.JWT.SigningMethod)),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
	})
	if err != nil {
		return nil, err
	}

	store := session.NewStore(b.redis, session.Config{
		Prefix:         cfg.Session.RedisPrefix,
		OpTimeout:      cfg.Session.OpTimeout,
		BlacklistGrace: cfg.JWT.Leeway + time.Second,
		ScanCount:      cfg.Session.ScanCount,
	})

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("gosession")

	limiter := rate.New(b.redis, rate.Config{
		Prefix:      cfg.Session.RedisPrefix,
		MaxAttempts: cfg.Throttle.MaxAttempts,
		Window:      cfg.Throttle.Window,
		PerIP:       cfg.Throttle.PerIP,
	})

	a := &Authority{
		config:   cfg,
		codec:    codec,
		store:    store,
		verifier: b.verifier,
		profiles: b.profiles,
		accounts: b.accounts,
		limiter:  limiter,
		metrics:  NewMetrics(cfg.Metrics),
		logger:   logger,
	}
	a.notify = newNotifyDispatcher(cfg.Notify, b.sink, logger)

	b.built = true

	return a, nil
}
