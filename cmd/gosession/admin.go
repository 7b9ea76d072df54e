package main

import (
	"encoding/json"
	"fmt"

	"github.com/MrEthical07/goSession/internal/config"
	"github.com/spf13/cobra"
)

func newSweepCommand(load func() (*config.AppConfig, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired session records once and exit",
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

			removed, err := rt.auth.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired sessions\n", removed)
			return nil
		},
	}
}

func newStatsCommand(load func() (*config.AppConfig, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print session store counts as JSON",
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

			st, err := rt.auth.Stats(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
}
