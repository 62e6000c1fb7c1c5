package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/alex-devdone/mission-control-sub000/internal/capacity"
	"github.com/alex-devdone/mission-control-sub000/internal/config"
	"github.com/alex-devdone/mission-control-sub000/internal/dispatch"
	"github.com/alex-devdone/mission-control-sub000/internal/limits"
	"github.com/alex-devdone/mission-control-sub000/internal/notify"
	"github.com/alex-devdone/mission-control-sub000/internal/openclaw"
	"github.com/alex-devdone/mission-control-sub000/internal/planning"
	"github.com/alex-devdone/mission-control-sub000/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestration API server",
		Long:  "Runs the REST API, the SSE stream, and the scheduled capacity poll.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "mission-control.yaml", "path to config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	ocClient, err := openclaw.New(openclaw.Opts{
		GatewayURL: cfg.Openclaw.GatewayURL,
		Token:      cfg.Openclaw.Token,
		Timeout:    openclawTimeout(cfg),
	})
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

	dispatcher, err := dispatch.NewService(gormDB, ocClient, notifier)
	if err != nil {
		return err
	}
	planner, err := planning.NewEngine(planning.EngineOpts{
		DB:         gormDB,
		Client:     ocClient,
		Notifier:   notifier,
		Dispatcher: dispatcher,
	})
	if err != nil {
		return err
	}
	monitor, err := capacity.NewMonitor(gormDB, limitsClient, notifier)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	// Scheduled capacity poll.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Limits.PollSchedule, func() {
		if _, err := monitor.Sweep(ctx, out); err != nil {
			log.Printf("serve: capacity sweep: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("serve: schedule capacity poll: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()
	fmt.Fprintf(out, "Capacity poll scheduled (%s)\n", cfg.Limits.PollSchedule)

	if port <= 0 {
		port = cfg.Server.Port
	}
	return server.Start(ctx, server.StartOpts{
		Deps: server.Deps{
			DB:         gormDB,
			Notifier:   notifier,
			Dispatcher: dispatcher,
			Planner:    planner,
			Monitor:    monitor,
		},
		Port:         port,
		AllowOrigins: cfg.Server.AllowOrigins,
		Out:          out,
	})
}

// buildNotifier assembles the broker with whatever chat pushers are
// configured.
func buildNotifier(cfg *config.Config) (*notify.Notifier, error) {
	var pushers []notify.Pusher
	if cfg.Notify.SlackBotToken != "" {
		slack, err := notify.NewSlackPusher(notify.SlackOpts{
			BotToken:  cfg.Notify.SlackBotToken,
			ChannelID: cfg.Notify.SlackChannelID,
		})
		if err != nil {
			return nil, err
		}
		pushers = append(pushers, slack)
	}
	if cfg.Notify.DiscordToken != "" {
		discord, err := notify.NewDiscordPusher(notify.DiscordOpts{
			BotToken:  cfg.Notify.DiscordToken,
			ChannelID: cfg.Notify.DiscordChannel,
		})
		if err != nil {
			return nil, err
		}
		pushers = append(pushers, discord)
	}
	return notify.NewNotifier(notify.NewBroker(), pushers...), nil
}
