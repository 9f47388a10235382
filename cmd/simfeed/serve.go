package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gregtusar/simfeed/api"
	"github.com/gregtusar/simfeed/pkg/feed"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the feed engine and its API server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	engine, err := feed.New(cfg.Feed, logger)
	if err != nil {
		return fmt.Errorf("failed to create feed engine: %w", err)
	}

	var verifier *api.TokenVerifier
	if cfg.Auth.Enabled {
		verifier, err = api.NewTokenVerifier(cfg.Auth.PublicKeyPEM)
		if err != nil {
			return fmt.Errorf("failed to configure order auth: %w", err)
		}
	}

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start feed engine: %w", err)
	}

	apiServer := api.NewServer(engine, logger, cfg.Server, verifier)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- apiServer.Start()
	}()

	logger.WithField("symbol", cfg.Feed.Symbol).Info("Feed is running. Press Ctrl+C to stop.")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case runErr = <-serverErr:
		if runErr != nil {
			runErr = fmt.Errorf("api server failed: %w", runErr)
		}
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("API server did not shut down cleanly")
	}
	engine.Stop()

	logger.Info("Feed stopped")
	return runErr
}
