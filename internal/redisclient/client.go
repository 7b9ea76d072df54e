// Package redisclient opens the Redis connection used by the session store.
package redisclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config mirrors the redis section of the application config.
type Config struct {
	InMemory     bool          `mapstructure:"in_memory"`
	Addr         string        `mapstructure:"addr"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	TLSEnabled   bool          `mapstructure:"tls_enabled"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Options converts cfg into go-redis options.
func (c Config) Options() *redis.Options {
	opts := &redis.Options{
		Addr:         c.Addr,
		Username:     c.Username,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		MaxRetries:   1,
	}
	if c.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// Client owns the go-redis client and, in in-memory mode, the embedded server.
type Client struct {
	*redis.Client
	logger *zap.Logger
	embed  *miniredis.Miniredis
}

// Open connects and pings. With InMemory set it starts an embedded miniredis
// instead of dialing Addr, which is meant for demos and local runs only.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := cfg.Options()
	var embed *miniredis.Miniredis
	if cfg.InMemory {
		var err error
		embed, err = miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start in-memory redis: %w", err)
		}
		opts.Addr = embed.Addr()
		opts.Username = ""
		opts.Password = ""
		opts.TLSConfig = nil
		logger.Warn("using in-memory redis; sessions are lost on restart", zap.String("addr", opts.Addr))
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if embed != nil {
			embed.Close()
		}
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("redis connection established",
		zap.String("addr", opts.Addr),
		zap.Int("db", cfg.DB),
		zap.Bool("tls_enabled", opts.TLSConfig != nil),
		zap.Bool("in_memory", cfg.InMemory),
	)

	return &Client{Client: client, logger: logger, embed: embed}, nil
}

// Close closes the pool and stops the embedded server if any.
func (c *Client) Close() error {
	c.logger.Info("closing redis connection")
	err := c.Client.Close()
	if c.embed != nil {
		c.embed.Close()
	}
	if err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}
