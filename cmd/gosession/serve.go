package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/internal/httpapi"
	promexport "github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand(load func() (*config.AppConfig, error)) *cobra.Command {
	var trustProxy bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the expiry sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.close()

			return serve(cmd.Context(), rt, trustProxy)
		},
	}
	cmd.Flags().BoolVar(&trustProxy, "trust-proxy", false, "take the client IP from X-Forwarded-For")
	return cmd
}

func serve(ctx context.Context, rt *runtime, trustProxy bool) error {
	opts := httpapi.Options{Logger: rt.logger, TrustProxy: trustProxy}
	if rt.cfg.HTTP.MetricsEnabled {
		opts.Metrics = promexport.NewExporter(rt.auth).Handler()
	}

	if err := rt.auth.StartSweeper(ctx, rt.cfg.Sweeper.Interval); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         rt.cfg.HTTP.Addr,
		Handler:      httpapi.New(rt.auth, opts),
		ReadTimeout:  rt.cfg.HTTP.ReadTimeout,
		WriteTimeout: rt.cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("http server listening",
			zap.String("addr", srv.Addr),
			zap.Bool("metrics", rt.cfg.HTTP.MetricsEnabled),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	rt.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
