package rate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds login throttle tuning. MaxAttempts <= 0 disables the limiter.
type Config struct {
	Prefix      string
	MaxAttempts int
	Window      time.Duration
	// PerIP adds a second counter keyed by client IP.
	PerIP bool
}

// Limiter counts failed logins per identifier (and optionally per IP) in
// fixed windows held in Redis.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter]. A nil Limiter is returned when cfg disables throttling.
func New(client redis.UniversalClient, cfg Config) *Limiter {
	if cfg.MaxAttempts <= 0 || cfg.Window <= 0 {
		return nil
	}
	return &Limiter{redis: client, config: cfg}
}

// Check reports [ErrRateLimited] once either counter has reached MaxAttempts
// within the current window.
func (l *Limiter) Check(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}

	keys := l.keys(identifier, ip)
	values, err := l.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		if n >= l.config.MaxAttempts {
			return ErrRateLimited
		}
	}
	return nil
}

// RecordFailure increments the counters. The window starts at the first
// failure and is not extended by later ones.
func (l *Limiter) RecordFailure(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}

	for _, key := range l.keys(identifier, ip) {
		count, err := l.redis.Incr(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if count == 1 {
			if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
		}
	}
	return nil
}

// Reset clears the identifier counter after a successful login. The IP
// counter is left to expire.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	if l == nil {
		return nil
	}

	if err := l.redis.Del(ctx, l.identifierKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the failure count for identifier in the current window.
func (l *Limiter) Attempts(ctx context.Context, identifier string) (int, error) {
	if l == nil {
		return 0, nil
	}

	n, err := l.redis.Get(ctx, l.identifierKey(identifier)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

func (l *Limiter) keys(identifier, ip string) []string {
	keys := []string{l.identifierKey(identifier)}
	if l.config.PerIP && ip != "" {
		keys = append(keys, l.config.Prefix+":rl:ip:"+ip)
	}
	return keys
}

// Identifiers are digested so raw emails never appear in key names.
func (l *Limiter) identifierKey(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return l.config.Prefix + ":rl:id:" + hex.EncodeToString(sum[:16])
}
