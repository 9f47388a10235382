package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gregtusar/simfeed/pkg/client"
	"github.com/gregtusar/simfeed/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Print the server's current snapshot as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			snap, err := client.NewClient(cfg.Client.ServerURL, nil, logger).GetSnapshot(ctx)
			if err != nil {
				return err
			}
			return printJSON(snap)
		},
	}
}

func newOrderCmd() *cobra.Command {
	var req models.OrderRequest
	var side, orderType string

	cmd := &cobra.Command{
		Use:   "order",
		Short: "Place an order against the feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Side = models.OrderSide(side)
			req.Type = models.OrderType(orderType)

			var auth client.Authenticator
			if cfg.Auth.PrivateKeyPEM != "" {
				signer, err := client.NewJWTAuthenticator(cfg.Auth.KeyName, cfg.Auth.PrivateKeyPEM)
				if err != nil {
					return err
				}
				auth = signer
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			trade, err := client.NewClient(cfg.Client.ServerURL, auth, logger).PlaceOrder(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(trade)
		},
	}

	cmd.Flags().StringVar(&side, "side", "", "buy or sell")
	cmd.Flags().StringVar(&orderType, "type", string(models.OrderTypeMarket), "market or limit")
	cmd.Flags().StringVar(&req.Quantity, "quantity", "", "order quantity")
	cmd.Flags().StringVar(&req.Price, "price", "", "limit price")
	_ = cmd.MarkFlagRequired("side")
	_ = cmd.MarkFlagRequired("quantity")
	return cmd
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the server's snapshot stream",
		RunE:  runWatch,
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := func(snap *models.Snapshot) error {
		logger.WithFields(logrus.Fields{
			"symbol":   snap.Symbol,
			"sequence": snap.Sequence,
			"price":    snap.CurrentPrice.String(),
			"change":   snap.Stats.ChangePercent.String(),
			"volume":   snap.Stats.Volume.String(),
			"trades":   len(snap.Trades),
			"running":  snap.Running,
		}).Info("Snapshot")
		return nil
	}

	delay := time.Duration(cfg.Client.ReconnectDelay) * time.Second
	for attempt := 0; ; attempt++ {
		stream, err := client.NewStreamClient(cfg.Client.ServerURL, handler, logger)
		if err != nil {
			return err
		}

		if err := stream.Connect(ctx); err != nil {
			logger.WithError(err).WithField("attempt", attempt+1).Warn("Stream connection failed")
		} else {
			attempt = 0
			select {
			case <-ctx.Done():
				return stream.Close()
			case <-stream.Done():
				logger.Warn("Stream disconnected")
			}
		}

		if attempt >= cfg.Client.MaxReconnects {
			return errors.New("giving up after repeated stream failures")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to print response: %w", err)
	}
	return nil
}
