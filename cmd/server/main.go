package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/eventlify-server/internal/app"
	"github.com/vovakirdan/eventlify-server/internal/config"
	applog "github.com/vovakirdan/eventlify-server/internal/log"
)

// Version is set via ldflags during build.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
	addr       string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "eventlify-server",
		Short: "Event-lify API and live attendance server",
		Long: `Serves the Event-lify REST API and the live attendance websocket.

Running without a subcommand is the same as "serve".`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config.yaml (default ./config.yaml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&flags.addr, "addr", "", "HTTP listen address")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "reset-live-counts",
		Short: "Zero every persisted live attendance count",
		Long: `Live room memberships only exist in server memory. After a crash the
persisted counts no longer match reality; this command zeroes them.
Run it only while no server is serving the same store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReset(cmd.Context(), flags)
		},
	})

	return root
}

func loadConfig(flags *globalFlags) (*config.Config, *zerolog.Logger, error) {
	bootstrap := applog.New("info", "console")

	cfg, path, err := config.Load(bootstrap, flags.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	cfg.UpdateFrom(config.Config{
		Server: config.ServerConfig{Addr: flags.addr},
		Log:    config.LogConfig{Level: flags.logLevel},
	})

	logger := applog.New(cfg.Log.Level, cfg.Log.Format)
	logger.Debug().Str("path", path).Msg("config loaded")
	return &cfg, logger, nil
}

func runServe(ctx context.Context, flags *globalFlags) error {
	cfg, logger, err := loadConfig(flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().Str("addr", cfg.Server.Addr).Str("version", Version).Msg("starting eventlify server")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func runReset(ctx context.Context, flags *globalFlags) error {
	cfg, logger, err := loadConfig(flags)
	if err != nil {
		return err
	}

	st, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.ResetLiveCounts(ctx)
	if err != nil {
		return fmt.Errorf("reset live counts: %w", err)
	}
	logger.Info().Int64("events", n).Msg("live counts reset")
	return nil
}
