package main

import (
	"context"
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/internal/memstore"
	"github.com/MrEthical07/goSession/internal/redisclient"
	"github.com/MrEthical07/goSession/password"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "gosession",
		Short:         "Redis-backed session and token authority",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (yaml, json or toml)")

	load := func() (*config.AppConfig, error) { return config.Load(configPath) }

	root.AddCommand(
		newServeCommand(load),
		newSweepCommand(load),
		newStatsCommand(load),
		newLoadtestCommand(load),
		newVersionCommand(),
	)
	return root
}

// runtime holds everything a subcommand needs. close releases it in reverse
// order of construction.
type runtime struct {
	cfg    *config.AppConfig
	logger *zap.Logger
	redis  *redisclient.Client
	auth   *goSession.Authority
}

func openRuntime(ctx context.Context, cfg *config.AppConfig) (*runtime, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	authCfg, err := cfg.Authority()
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("authority config: %w", err)
	}

	hasher, err := password.New(cfg.Password.Algorithm)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	users, err := memstore.New(hasher)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	rc, err := redisclient.Open(ctx, cfg.Redis, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	auth, err := goSession.New().
		WithConfig(authCfg).
		WithRedis(rc.Client).
		WithLogger(logger).
		WithCredentialVerifier(users).
		WithProfileStore(users).
		WithAccountStore(users).
		WithNotificationSink(goSession.NewZapSink(logger)).
		Build()
	if err != nil {
		_ = rc.Close()
		_ = logger.Sync()
		return nil, err
	}

	return &runtime{cfg: cfg, logger: logger, redis: rc, auth: auth}, nil
}

func (r *runtime) close() {
	r.auth.Close()
	if err := r.redis.Close(); err != nil {
		r.logger.Warn("redis close failed", zap.Error(err))
	}
	_ = r.logger.Sync()
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
