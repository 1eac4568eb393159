package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kapu/shortlist-go/internal/app"
	"github.com/kapu/shortlist-go/internal/config"
	"github.com/kapu/shortlist-go/internal/service/database"
	"github.com/kapu/shortlist-go/internal/util"
)

const version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:           "shortlist",
	Short:         "Three-pick media recommendation concierge",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		logger.Info("Shortlist starting...",
			zap.String("version", version),
			zap.String("log_level", cfg.Logging.Level),
			zap.String("store", cfg.Store.Driver),
		)

		buildCtx, buildCancel := context.WithTimeout(context.Background(), 30*time.Second)
		container, err := app.Build(buildCtx, cfg, logger)
		buildCancel()
		if err != nil {
			logger.Error("Failed to assemble application services", zap.Error(err))
			return err
		}
		defer container.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := container.Server.Start(ctx); err != nil {
			logger.Error("Server error", zap.Error(err))
			return err
		}
		logger.Info("Shutdown complete")
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg := config.Parse()
		if err := cfg.Store.Validate(); err != nil {
			return err
		}

		logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		svc, err := database.NewService(database.Config{
			Driver:     cfg.Store.Driver,
			Host:       cfg.Store.Host,
			Port:       cfg.Store.Port,
			User:       cfg.Store.User,
			Password:   cfg.Store.Password,
			Database:   cfg.Store.Database,
			SSLMode:    cfg.Store.SSLMode,
			SQLitePath: cfg.Store.SQLitePath,
		}, logger)
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := svc.Migrate(); err != nil {
			return err
		}
		logger.Info("Migrations applied", zap.String("driver", svc.Driver()))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides SERVER_ADDR)")
	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
}

