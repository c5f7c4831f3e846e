package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"SafeCircle/internal/app"
	"SafeCircle/pkg/config"
	"SafeCircle/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:           "safecircle",
	Short:         "Personal safety alerting service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	var addr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and device channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg := config.GlobalConfig
			if addr != "" {
				cfg.Addr = addr
			}
			if err := logger.Init(cfg.Log, cfg.Mode); err != nil {
				return err
			}
			defer func() { _ = logger.Lg.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(cfg, logger.Lg)
			if err != nil {
				logger.Lg.Error("build app failed", zap.Error(err))
				return err
			}
			return a.Run(ctx)
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides ADDR")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newDrillCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
