package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alex-devdone/mission-control-sub000/internal/capacity"
	"github.com/alex-devdone/mission-control-sub000/internal/limits"
)

func newPollCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run one capacity sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			limitsClient, err := limits.New(cfg.Limits.URL, limitsTimeout(cfg))
			if err != nil {
				return err
			}
			notifier, err := buildNotifier(cfg)
			if err != nil {
				return err
			}
			monitor, err := capacity.NewMonitor(gormDB, limitsClient, notifier)
			if err != nil {
				return err
			}
			res, err := monitor.Sweep(context.Background(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Polled %d agent(s): %d depleted, %d task(s) evacuated, %d skipped\n",
				res.Polled, res.Depleted, res.Evacuated, res.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "mission-control.yaml", "path to config file")
	return cmd
}
