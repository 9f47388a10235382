package main

import (
	"fmt"
	"io"
	"os"

	"github.com/gregtusar/simfeed/internal/config"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	serverURL string
	cfg       *config.Config
	logger    *logrus.Logger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "simfeed",
		Short: "Simulated market data feed",
		Long: `Generates a synthetic price series with an order book, trade tape and
candles, and serves it over HTTP and websocket.`,
		SilenceUsage:      true,
		PersistentPreRunE: initialize,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "feed server URL for client commands (overrides client.server_url)")

	rootCmd.AddCommand(newServeCmd(), newWatchCmd(), newOrderCmd(), newSnapshotCmd())
	return rootCmd
}

func initialize(cmd *cobra.Command, args []string) error {
	// A missing .env file is normal outside development
	_ = godotenv.Load()

	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if serverURL != "" {
		cfg.Client.ServerURL = serverURL
	}

	logger, err = newLogger(cfg.Logging)
	return err
}

func newLogger(lc config.LoggingConfig) (*logrus.Logger, error) {
	l := logrus.New()

	switch lc.Format {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(lc.Level)
	if err != nil {
		l.WithError(err).Error("Invalid log level, using INFO")
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if lc.File != "" {
		f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.SetOutput(io.MultiWriter(os.Stderr, f))
	}

	return l, nil
}
