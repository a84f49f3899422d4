package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eskrenkovic/session-ledger/internal/config"
	"github.com/eskrenkovic/session-ledger/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(globalFlags.configFile)
			if err != nil {
				return err
			}
			defer func() { _ = cfg.Logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := server.NewHTTPServer(ctx, cfg)
			if err != nil {
				return err
			}

			errs := make(chan error, 1)
			go func() {
				errs <- srv.Start()
			}()

			select {
			case err = <-errs:
			case <-ctx.Done():
				cfg.Logger.Info("shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if stopErr := srv.Stop(shutdownCtx); stopErr != nil {
				cfg.Logger.Error("failed to stop server", zap.Error(stopErr))
			}

			return err
		},
	}
}
